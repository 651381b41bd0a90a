// Package scoring is SquatchScan's decision core: a deterministic, fixed
// rule set that turns an AnalysisRecord into a cryptid probability score
// and a verdict. It is a pure function of its input — no state, no I/O,
// no errors — and is safe to call from any number of goroutines.
package scoring

import (
	"math"
	"strings"

	"github.com/lilybateman/SquatchScan/internal/analysis"
)

const (
	baseScore = 10
	minScore  = 0
	maxScore  = 100
)

// Verdict strings, fixed vocabulary. Thresholds are lower-exclusive:
// a score of exactly 80 is still only "Suspiciously Squatchy".
const (
	VerdictHighlyProbable = "Highly probable Squatch encounter"
	VerdictSuspicious     = "Suspiciously Squatchy"
	VerdictInconclusive   = "Inconclusive – classic blurry evidence"
	VerdictProbablyNot    = "Probably not a Squatch"
	VerdictDefinitelyNot  = "Definitely not a Squatch"

	// VerdictOverride is returned only on the operator-profile path.
	VerdictOverride = "Definitely a squatch, no explanation needed."
)

// primateVocab are the known-primate labels that suppress the humanoid
// bonuses. Matching is case-insensitive substring, so "chimp" also covers
// "chimpanzee"; both stay listed to keep the vocabulary explicit.
var primateVocab = []string{"orangutan", "gorilla", "chimpanzee", "chimp", "monkey", "gibbon", "baboon"}

// Score accumulates the rule contributions from a base of 10 and clamps the
// sum to [0,100]. Rule order only matters for the known-primate gate, which
// must be decided before the humanoid rules; everything else is additive.
func Score(rec analysis.AnalysisRecord) int {
	score := baseScore
	blur := rec.BlurImage

	// Known-primate suppression. A sharp photo of a known primate is the
	// strongest counter-evidence there is. The flag takes precedence; the
	// label penalty fires only when the flag is unset.
	primateLabel := containsAny(rec.PrimateTypeLabel, primateVocab...)
	if rec.IsKnownPrimate {
		if blur < 4 {
			score -= 70
		} else {
			score -= 50
		}
	}
	if primateLabel && !rec.IsKnownPrimate {
		if blur < 4 {
			score -= 65
		} else {
			score -= 45
		}
	}
	suppressed := rec.IsKnownPrimate || primateLabel

	// Environment. Both terms can fire on a sufficiently weird label.
	if containsAny(rec.Environment, "forest", "woods") {
		score += 15
	}
	if containsAny(rec.Environment, "indoor", "inside") {
		score -= 40
	}

	// Squatches don't wear clothes.
	if rec.IsWearingClothes {
		score -= 50
	}

	// Humanoid signal, gated by the primate suppression above.
	if !suppressed {
		if rec.IsSquatchLikeHumanoid {
			score += 45
		}
		if rec.IsHairyOrFurry && rec.IsHumanoidFigure {
			score += 35
		}
		// Generic-humanoid fallback: a figure with none of the stronger
		// flags set still counts for a little.
		if rec.IsHumanoidFigure && !rec.IsWearingClothes && !rec.IsSquatchLikeHumanoid && !rec.IsHairyOrFurry {
			score += 15
		}
	}

	// Blur is evidence. A crisp, well-lit shot is evidence of the other kind.
	if blur > 7 {
		score += 20
	}
	if blur < 3 && containsAny(rec.LightingLabel, "bright") {
		score -= 15
	}

	// Animal/creature signal.
	if rec.IsAnimalPresent {
		score += 10
	}
	if containsAny(rec.AnimalTypeLabel, "bear") {
		score += 8
	}

	// Good lighting never helped a squatch sighting.
	if containsAny(rec.LightingLabel, "bright", "well-lit") {
		score -= 10
	}

	// Classifier confidence contributes up to 15 points, rounded half away
	// from zero. Absent confidence skips the rule entirely.
	if rec.CreatureConfidence != nil {
		score += int(math.Round(*rec.CreatureConfidence * 15))
	}

	return clamp(score)
}

// Verdict maps a score to its fixed verdict string.
func Verdict(score int) string {
	switch {
	case score > 80:
		return VerdictHighlyProbable
	case score > 60:
		return VerdictSuspicious
	case score > 40:
		return VerdictInconclusive
	case score > 20:
		return VerdictProbablyNot
	default:
		return VerdictDefinitelyNot
	}
}

// Report is the engine's entry point. An operator-profile match bypasses the
// rule set entirely and pins the report at 100.
func Report(rec analysis.AnalysisRecord) analysis.ScoreReport {
	if rec.IsOperatorProfileMatch {
		return analysis.ScoreReport{
			Score:           maxScore,
			Verdict:         VerdictOverride,
			IsOverrideMatch: true,
		}
	}

	score := Score(rec)
	return analysis.ScoreReport{
		Score:   score,
		Verdict: Verdict(score),
	}
}

// containsAny reports whether the lower-cased label contains any of the
// given lower-case terms as a substring.
func containsAny(label string, terms ...string) bool {
	if label == "" {
		return false
	}
	label = strings.ToLower(label)
	for _, term := range terms {
		if strings.Contains(label, term) {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
