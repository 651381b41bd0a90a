package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/lilybateman/SquatchScan/internal/config"
	"github.com/lilybateman/SquatchScan/internal/history"
	"github.com/lilybateman/SquatchScan/internal/sighting"
	"github.com/lilybateman/SquatchScan/internal/telemetry"
	"github.com/lilybateman/SquatchScan/internal/vision"
	"github.com/lilybateman/SquatchScan/internal/web"
)

// Server wraps the HTTP components for SquatchScan.
type Server struct {
	mux       *http.ServeMux
	cfg       *config.Config
	sightings *sighting.Emitter
	store     *history.Store // nil when history is disabled
	telemetry *telemetry.Provider

	// Guarded by mu so Reload can swap them while requests are in flight.
	mu              sync.RWMutex
	providers       map[string]vision.Provider // name -> provider
	defaultProvider string                     // name of default provider
	sightingLevel   string
	maxUploadBytes  int64
}

// New creates a SquatchScan server with all routes registered.
func New(cfg *config.Config, tel *telemetry.Provider) *Server {
	mux := http.NewServeMux()

	// Build vision providers
	provs, defaultProvider, provErr := buildProviderRegistry(cfg)
	if provErr != nil {
		log.Printf("warning: failed to build vision providers from config: %v", provErr)
		log.Printf("falling back to canned fake provider")
		provs = map[string]vision.Provider{
			"fake": vision.NewFake(`{"description": "fake provider: no classifier configured"}`),
		}
		defaultProvider = "fake"
	}

	// Build sighting sinks
	sinks := []sighting.Sink{sighting.NewStdoutSink()}
	if cfg.Sightings.File != "" {
		fileSink, err := sighting.NewFileSink(cfg.Sightings.File)
		if err != nil {
			log.Printf("warning: sighting file sink disabled: %v", err)
		} else {
			sinks = append(sinks, fileSink)
		}
	}
	if cfg.Sightings.WebhookURL != "" {
		webhookSink, err := sighting.NewWebhookSink(cfg.Sightings.WebhookURL, 2*time.Second)
		if err != nil {
			log.Printf("warning: sighting webhook sink disabled: %v", err)
		} else {
			sinks = append(sinks, webhookSink)
		}
	}

	// Build history store (optional)
	var store *history.Store
	if cfg.History.Enabled {
		st, err := history.Open(cfg.History.Path)
		if err != nil {
			log.Printf("warning: history disabled: %v", err)
		} else {
			store = st
		}
	}

	s := &Server{
		mux:             mux,
		cfg:             cfg,
		providers:       provs,
		defaultProvider: defaultProvider,
		sightings:       sighting.NewEmitter(sighting.EmitterConfig{}, sinks),
		sightingLevel:   cfg.Sightings.Level,
		store:           store,
		telemetry:       tel,
		maxUploadBytes:  cfg.Server.MaxUploadBytes,
	}

	// Routes
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/progress", s.handleProgress)
	mux.HandleFunc("/api/sightings", s.handleSightings)
	mux.Handle("/", web.Handler())

	return s
}

// Handler exposes the route mux so callers can run their own http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close drains the sighting emitter and releases the history store.
func (s *Server) Close(ctx context.Context) {
	if s == nil {
		return
	}
	if s.sightings != nil {
		s.sightings.Close(ctx)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("history close error: %v", err)
		}
	}
}

// Reload swaps in provider registry and request limits from a freshly
// loaded config. Sinks and the history store are fixed at startup.
func (s *Server) Reload(cfg *config.Config) error {
	provs, defaultProvider, err := buildProviderRegistry(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.providers = provs
	s.defaultProvider = defaultProvider
	s.sightingLevel = cfg.Sightings.Level
	s.maxUploadBytes = cfg.Server.MaxUploadBytes
	s.mu.Unlock()

	log.Printf("config reloaded: default provider %q, %d provider(s)", defaultProvider, len(provs))
	return nil
}

// analyzeDeps snapshots the mutable request-path state.
func (s *Server) analyzeDeps() (prov vision.Provider, providerName, level string, maxBytes int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	providerName = s.defaultProvider
	prov, ok = s.providers[providerName]
	return prov, providerName, s.sightingLevel, s.maxUploadBytes, ok
}

// buildProviderRegistry constructs all configured vision providers.
func buildProviderRegistry(cfg *config.Config) (map[string]vision.Provider, string, error) {
	if len(cfg.Providers) == 0 {
		return nil, "", fmt.Errorf("no providers configured")
	}

	reg := make(map[string]vision.Provider, len(cfg.Providers))

	for name, pcfg := range cfg.Providers {
		switch pcfg.Type {
		case "openai":
			apiKey := os.Getenv(pcfg.APIKeyEnv)
			if apiKey == "" {
				return nil, "", fmt.Errorf("provider %q: environment variable %s is empty", name, pcfg.APIKeyEnv)
			}
			timeout := time.Duration(pcfg.TimeoutSeconds) * time.Second
			reg[name] = vision.NewOpenAI(pcfg.BaseURL, apiKey, pcfg.Model, timeout, 0)
		case "fake":
			reg[name] = vision.NewFake(`{"description": "fake provider response"}`)
		default:
			return nil, "", fmt.Errorf("provider %q: unsupported type %q", name, pcfg.Type)
		}
	}

	defaultProvider := cfg.DefaultProvider
	if defaultProvider == "" {
		return nil, "", fmt.Errorf("default_provider is empty")
	}
	if _, ok := reg[defaultProvider]; !ok {
		return nil, "", fmt.Errorf("default_provider %q not found in providers map", defaultProvider)
	}

	return reg, defaultProvider, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

// --- JSON error envelope ---

type apiErrorBody struct {
	Error apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeAPIError writes a JSON error envelope.
func writeAPIError(w http.ResponseWriter, status int, message, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErrorBody{
		Error: apiErrorDetail{
			Message: message,
			Type:    typ,
		},
	})
}
