package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lilybateman/SquatchScan/internal/analysis"
	"github.com/lilybateman/SquatchScan/internal/history"
	"github.com/lilybateman/SquatchScan/internal/progress"
	"github.com/lilybateman/SquatchScan/internal/scoring"
	"github.com/lilybateman/SquatchScan/internal/sighting"
)

// analyzeResponse is the JSON body returned for a completed analysis.
// ProgressHint is the closing status line, so a client that polled
// /api/progress can land on the same message the cycle ends with.
type analyzeResponse struct {
	ID           string               `json:"id"`
	Report       analysis.ScoreReport `json:"report"`
	Description  string               `json:"description,omitempty"`
	ProgressHint string               `json:"progressHint"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error")
		return
	}

	prov, providerName, level, maxUploadBytes, ok := s.analyzeDeps()
	if !ok {
		log.Printf("no vision provider %q configured", providerName)
		writeAPIError(w, http.StatusInternalServerError, "SquatchScan misconfiguration: unknown vision provider", "configuration_error")
		return
	}

	// Multipart form overhead on top of the image cap.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+64*1024)

	image, contentType, err := readUploadedImage(r, maxUploadBytes)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
		return
	}

	ctx := r.Context()

	// 1) Ask the classifier to describe the image
	visionStart := time.Now()
	visionCtx, span := s.telemetry.Tracer().Start(ctx, "vision.analyze",
		trace.WithAttributes(attribute.String("squatchscan.provider", providerName)))
	raw, err := prov.Analyze(visionCtx, image, contentType)
	visionMs := float64(time.Since(visionStart)) / float64(time.Millisecond)
	if err != nil {
		span.RecordError(err)
		span.End()
		log.Printf("vision provider %q error: %v", providerName, err)
		s.sightings.Emit(ctx, sighting.BuildEvent(sighting.BuildParams{
			Provider: providerName,
			Outcome:  sighting.OutcomeProviderError,
			Level:    level,
		}))
		s.telemetry.RecordAnalysis(string(sighting.OutcomeProviderError), "", providerName, 0, visionMs)
		writeAPIError(w, http.StatusBadGateway, "Upstream vision classifier error", "provider_error")
		return
	}
	span.End()

	// 2) Decode the model output. Unparseable output is not an error:
	// it scores as an empty record.
	rec, parsed := analysis.Decode(raw)

	// 3) Score
	report := scoring.Report(rec)

	outcome := sighting.OutcomeScored
	switch {
	case report.IsOverrideMatch:
		outcome = sighting.OutcomeOverride
	case !parsed:
		outcome = sighting.OutcomeNoSignal
	}

	// 4) Emit sighting event + metrics, append to history
	ev := sighting.BuildEvent(sighting.BuildParams{
		Provider: providerName,
		Outcome:  outcome,
		Record:   rec,
		Report:   report,
		Level:    level,
	})
	s.sightings.Emit(ctx, ev)
	s.telemetry.RecordAnalysis(string(outcome), report.Verdict, providerName, report.Score, visionMs)

	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	if s.store != nil {
		if err := s.store.Append(ctx, history.Entry{
			ID:              id,
			CreatedAt:       time.Now().UTC(),
			Provider:        providerName,
			Score:           report.Score,
			Verdict:         report.Verdict,
			IsOverrideMatch: report.IsOverrideMatch,
			Environment:     rec.Environment,
			Blur:            rec.BlurImage,
			Description:     rec.Description,
		}); err != nil {
			log.Printf("history append failed: %v", err)
		}
	}

	// 5) Respond
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(analyzeResponse{
		ID:           id,
		Report:       report,
		Description:  rec.Description,
		ProgressHint: progress.Message(progress.Count - 1),
	}); err != nil {
		log.Printf("failed to write analyze response: %v", err)
	}
}

// readUploadedImage pulls the "image" part out of a multipart upload.
func readUploadedImage(r *http.Request, maxBytes int64) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, "", errors.New("invalid multipart body")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", errors.New("missing image field")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, "", errors.New("failed to read image")
	}
	if int64(len(data)) > maxBytes {
		return nil, "", errors.New("image too large")
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}

	return data, header.Header.Get("Content-Type"), nil
}
