package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/lilybateman/SquatchScan/internal/history"
)

func (s *Server) handleSightings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	entries := []history.Entry{}
	if s.store != nil {
		got, err := s.store.Recent(r.Context(), limit)
		if err != nil {
			log.Printf("history query failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "failed to load sightings", "history_error")
			return
		}
		if got != nil {
			entries = got
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		log.Printf("failed to write sightings response: %v", err)
	}
}
