package analysis

import (
	"bytes"
	"encoding/json"
	"strings"
)

// AnalysisRecord is the normalized description of an image, as reported by
// the vision classifier. Every field is optional: the classifier omits
// anything it could not determine, and an absent field reads as its zero
// value ("no signal"). CreatureConfidence is a pointer because absent and
// zero mean different things to the scoring rules.
type AnalysisRecord struct {
	Environment            string   `json:"environment,omitempty"`
	BlurImage              float64  `json:"blurImage,omitempty"`
	IsHumanoidFigure       bool     `json:"isHumanoidFigure,omitempty"`
	IsSquatchLikeHumanoid  bool     `json:"isSquatchLikeHumanoid,omitempty"`
	IsWearingClothes       bool     `json:"isWearingClothes,omitempty"`
	IsHairyOrFurry         bool     `json:"isHairyOrFurry,omitempty"`
	IsKnownPrimate         bool     `json:"isKnownPrimate,omitempty"`
	PrimateTypeLabel       string   `json:"primateTypeLabel,omitempty"`
	AnimalTypeLabel        string   `json:"animalTypeLabel,omitempty"`
	IsAnimalPresent        bool     `json:"isAnimalPresent,omitempty"`
	LightingLabel          string   `json:"lightingLabel,omitempty"`
	DetectedObjectLabels   []string `json:"detectedObjectLabels,omitempty"`
	CreatureConfidence     *float64 `json:"creatureConfidence,omitempty"`
	Description            string   `json:"description,omitempty"`
	IsOperatorProfileMatch bool     `json:"isOperatorProfileMatch,omitempty"`
}

// JoinedObjects returns the detected object labels joined into one
// lower-cased string. Ordering of the labels is preserved but nothing
// downstream depends on it.
func (r *AnalysisRecord) JoinedObjects() string {
	if len(r.DetectedObjectLabels) == 0 {
		return ""
	}
	return strings.ToLower(strings.Join(r.DetectedObjectLabels, " "))
}

// ScoreReport is the scoring engine's output for a single record.
type ScoreReport struct {
	// Score is the cryptid probability, always in [0,100].
	Score int `json:"score"`
	// Verdict is one of the five fixed verdict strings (or the override
	// verdict when IsOverrideMatch is set).
	Verdict string `json:"verdict"`
	// EasterEgg is reserved; no current rule populates it.
	EasterEgg string `json:"easterEgg,omitempty"`
	// IsOverrideMatch is set only on the operator-profile override path.
	IsOverrideMatch bool `json:"isOverrideMatch,omitempty"`
}

// Decode parses raw classifier output into an AnalysisRecord. Models often
// wrap their JSON in Markdown code fences, so those are stripped first.
// Decode never fails: output that still isn't valid JSON yields the empty
// record (ok=false), which scores as "no signal detected".
func Decode(raw string) (AnalysisRecord, bool) {
	var rec AnalysisRecord
	if err := json.Unmarshal(stripFences([]byte(raw)), &rec); err != nil {
		return AnalysisRecord{}, false
	}
	return rec, true
}

// stripFences removes a surrounding Markdown code fence (with or without a
// language tag) from model output.
func stripFences(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		// Strip opening fence line
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		// Strip closing fence
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}

	return s
}
