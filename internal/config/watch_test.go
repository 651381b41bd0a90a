package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_ReloadsOnWriteAndSkipsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squatchscan.yaml")

	valid := []byte("providers:\n  local:\n    type: fake\ndefault_provider: local\n")
	if err := os.WriteFile(path, valid, 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { changes <- cfg })
	}()

	// Let the watcher register before touching the file.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, valid, 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.DefaultProvider != "local" {
			t.Fatalf("reloaded default_provider = %q, want local", cfg.DefaultProvider)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("onChange never fired for a valid write")
	}

	// A single save can surface as several fsnotify events; drain them so the
	// quiet-period assertion below only sees the broken write.
	deadline := time.After(500 * time.Millisecond)
drain:
	for {
		select {
		case <-changes:
		case <-deadline:
			break drain
		}
	}

	// Broken YAML must be swallowed: the previous config stays active and
	// onChange is not called.
	if err := os.WriteFile(path, []byte("providers: [unclosed\n"), 0o644); err != nil {
		t.Fatalf("write broken config: %v", err)
	}

	select {
	case cfg := <-changes:
		t.Fatalf("onChange fired for an invalid config: %+v", cfg)
	case <-time.After(700 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on context cancel")
	}
}
