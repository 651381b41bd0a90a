package vision

import "context"

// FakeProvider returns a canned response (or error) without any network
// traffic. Used in tests and wherever a real classifier is unavailable.
type FakeProvider struct {
	RawResponse string
	Error       error

	// LastImage holds the most recent image bytes handed to Analyze,
	// letting tests assert the upload made it through.
	LastImage []byte
}

func NewFake(raw string) *FakeProvider {
	return &FakeProvider{RawResponse: raw}
}

func (f *FakeProvider) Analyze(ctx context.Context, image []byte, contentType string) (string, error) {
	f.LastImage = image
	if f.Error != nil {
		return "", f.Error
	}
	return f.RawResponse, nil
}
