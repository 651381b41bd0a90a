package mockvision

import (
	"context"
	"testing"
	"time"

	"github.com/lilybateman/SquatchScan/internal/analysis"
	"github.com/lilybateman/SquatchScan/internal/vision"
)

func TestStart_ServesAnalyzableCompletion(t *testing.T) {
	t.Setenv("MOCK_VISION_DELAY_MS", "0")

	shutdown, baseURL, err := Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start mock vision: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	p := vision.NewOpenAI(baseURL, "unused", "mock-vision", 5*time.Second, 0)
	raw, err := p.Analyze(context.Background(), []byte("image"), "image/jpeg")
	if err != nil {
		t.Fatalf("analyze against mock: %v", err)
	}

	rec, ok := analysis.Decode(raw)
	if !ok {
		t.Fatalf("canned response should decode, raw=%q", raw)
	}
	if !rec.IsSquatchLikeHumanoid {
		t.Fatalf("canned record should be squatch-like, got %+v", rec)
	}
	if rec.BlurImage != 8 {
		t.Fatalf("canned blur = %v, want 8", rec.BlurImage)
	}
}

func TestStart_UnknownPath(t *testing.T) {
	t.Setenv("MOCK_VISION_DELAY_MS", "0")

	shutdown, baseURL, err := Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start mock vision: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	p := vision.NewOpenAI(baseURL+"/nope", "unused", "", 5*time.Second, 0)
	if _, err := p.Analyze(context.Background(), []byte("image"), ""); err == nil {
		t.Fatal("expected error for unknown upstream path")
	}
}
