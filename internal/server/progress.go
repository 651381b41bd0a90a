package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/lilybateman/SquatchScan/internal/progress"
)

type progressResponse struct {
	Step    int    `json:"step"`
	Message string `json:"message"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error")
		return
	}

	// Invalid or negative steps clamp to 0 so the cycler's precondition
	// holds no matter what the query string carries.
	step := 0
	if raw := r.URL.Query().Get("step"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			step = n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(progressResponse{
		Step:    step,
		Message: progress.Message(step),
	}); err != nil {
		log.Printf("failed to write progress response: %v", err)
	}
}
