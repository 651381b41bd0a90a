// Package mockvision runs a lightweight OpenAI-compatible server that
// answers every chat completion with a canned analysis record. Useful for
// running SquatchScan end to end without an API key.
package mockvision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

const defaultAddr = "127.0.0.1:18080"

// cannedAnalysis is deliberately wrapped in a code fence: real vision models
// do this constantly, and the fence-stripping path should stay exercised.
const cannedAnalysis = "```json\n" + `{
  "environment": "forest clearing at dusk",
  "blurImage": 8,
  "isHumanoidFigure": true,
  "isSquatchLikeHumanoid": true,
  "isHairyOrFurry": true,
  "lightingLabel": "dark",
  "detectedObjectLabels": ["trees", "large shape"],
  "creatureConfidence": 0.7,
  "description": "A blurry bipedal shape crossing a clearing between pines."
}` + "\n```"

type mock struct {
	delay time.Duration
}

// Start launches the mock vision server and returns a shutdown function plus
// the base URL (e.g. http://127.0.0.1:18080). An empty addr falls back to
// MOCK_VISION_PORT, then to 18080. MOCK_VISION_DELAY_MS simulates classifier
// latency.
func Start(addr string) (func(context.Context) error, string, error) {
	if addr == "" {
		addr = defaultAddr
		if port := os.Getenv("MOCK_VISION_PORT"); port != "" {
			addr = "127.0.0.1:" + port
		}
	}

	m := &mock{delay: 50 * time.Millisecond}
	if raw := os.Getenv("MOCK_VISION_DELAY_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
			m.delay = time.Duration(ms) * time.Millisecond
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("mock vision listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", m.chatCompletion)
	mux.HandleFunc("POST /chat/completions", m.chatCompletion)
	mux.HandleFunc("/", m.notFound)

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("mock vision server error: %v", err)
		}
	}()

	baseURL := "http://" + ln.Addr().String()
	log.Printf("mock vision provider listening on %s (delay=%s)", baseURL, m.delay)
	return srv.Shutdown, baseURL, nil
}

func (m *mock) chatCompletion(w http.ResponseWriter, r *http.Request) {
	log.Printf("mock vision request path=%s", r.URL.Path)
	time.Sleep(m.delay)

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      "chatcmpl-mockvision",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "mock-vision",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": cannedAnalysis,
				},
				"finish_reason": "stop",
			},
		},
	})
}

func (m *mock) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{
			"message": "Not found",
			"type":    "invalid_request_error",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
