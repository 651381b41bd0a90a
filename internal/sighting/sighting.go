// Package sighting records one event per analyzed image and fans it out to
// configured sinks (stdout, JSONL file, webhook). Delivery is asynchronous
// and never blocks the upload path.
package sighting

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lilybateman/SquatchScan/internal/analysis"
)

// Outcome classifies how an analysis ended.
type Outcome string

const (
	OutcomeScored        Outcome = "scored"
	OutcomeOverride      Outcome = "operator_override"
	OutcomeNoSignal      Outcome = "no_signal" // classifier output unparseable, empty record scored
	OutcomeProviderError Outcome = "provider_error"
)

// Event is the canonical sighting payload.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Outcome   Outcome   `json:"outcome"`

	Score           int    `json:"score"`
	Verdict         string `json:"verdict"`
	IsOverrideMatch bool   `json:"isOverrideMatch,omitempty"`

	Blur        float64 `json:"blur,omitempty"`
	Environment string  `json:"environment,omitempty"`
	// DescriptionPreview is only populated at sighting level "full".
	DescriptionPreview string `json:"descriptionPreview,omitempty"`
}

// BuildParams collects the inputs for one sighting event.
type BuildParams struct {
	Provider string
	Outcome  Outcome
	Record   analysis.AnalysisRecord
	Report   analysis.ScoreReport
	Level    string // metadata | full
}

// BuildEvent assembles a sighting event. At level "metadata" (the default)
// no free text from the classifier leaves the process.
func BuildEvent(params BuildParams) *Event {
	ev := &Event{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		Provider:        params.Provider,
		Outcome:         params.Outcome,
		Score:           params.Report.Score,
		Verdict:         params.Report.Verdict,
		IsOverrideMatch: params.Report.IsOverrideMatch,
		Blur:            params.Record.BlurImage,
		Environment:     params.Record.Environment,
	}

	if params.Level == "full" {
		ev.DescriptionPreview = truncate(params.Record.Description, 500)
	}

	return ev
}

// truncate cuts s to at most max bytes without splitting a multi-byte rune,
// so the preview stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
