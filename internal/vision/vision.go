// Package vision talks to the external vision classifier that turns an
// uploaded image into a structured analysis record.
package vision

import "context"

// Provider is the interface for all upstream vision classifiers. Analyze
// returns the classifier's raw textual output; decoding it into an
// AnalysisRecord (including tolerating malformed output) is the caller's
// concern.
type Provider interface {
	Analyze(ctx context.Context, image []byte, contentType string) (string, error)
}

// analysisPrompt is the fixed instruction sent alongside every image. The
// field names must match the AnalysisRecord JSON schema exactly; the scoring
// engine treats anything the model omits as "no signal".
const analysisPrompt = `You are a wildlife image analyst. Examine the attached photo and respond with ONLY a JSON object (no prose, no code fences) using exactly these fields, omitting any you cannot determine:

{
  "environment": "short label, e.g. forest, woods, indoor, field",
  "blurImage": 0-10 blur intensity (10 = extremely blurry),
  "isHumanoidFigure": true if any humanoid figure is visible,
  "isSquatchLikeHumanoid": true if the figure is a large, non-human, ape-like humanoid,
  "isWearingClothes": true if the figure wears clothing,
  "isHairyOrFurry": true if the figure is covered in hair or fur,
  "isKnownPrimate": true if the figure is a recognizable known primate,
  "primateTypeLabel": "primate species if known, e.g. gorilla, chimpanzee",
  "animalTypeLabel": "animal species if one is present, e.g. bear, deer",
  "isAnimalPresent": true if any animal is visible,
  "lightingLabel": "short label, e.g. bright, well-lit, dark, dusk",
  "detectedObjectLabels": ["notable", "objects", "in", "frame"],
  "creatureConfidence": 0.0-1.0 confidence that an unidentified creature is present,
  "isOperatorProfileMatch": true if the subject is a human with long dark hair holding a phone up in a mirror,
  "description": "one-sentence plain description of the photo"
}`
