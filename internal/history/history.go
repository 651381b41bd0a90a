// Package history persists completed analyses to a local sqlite file so the
// UI can show recent sightings. The scoring engine itself stays stateless;
// history stores reports, never rule state.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sql/*
var f embed.FS

// Entry is one persisted analysis.
type Entry struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	Provider        string    `json:"provider"`
	Score           int       `json:"score"`
	Verdict         string    `json:"verdict"`
	IsOverrideMatch bool      `json:"isOverrideMatch,omitempty"`
	Environment     string    `json:"environment,omitempty"`
	Blur            float64   `json:"blur,omitempty"`
	Description     string    `json:"description,omitempty"`
}

// Store is a sqlite-backed sighting log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path not specified")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database %s: %w", path, err)
	}

	ddl, err := f.ReadFile("sql/ddl.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read history schema: %w", err)
	}
	if _, err := db.Exec(string(ddl)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema in %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores one completed analysis.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return errors.New("history store not initialized")
	}
	if e.ID == "" {
		return errors.New("entry id must be set")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sighting (id, created_at, provider, score, verdict, override, environment, blur, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.Provider,
		e.Score,
		e.Verdict,
		boolToInt(e.IsOverrideMatch),
		e.Environment,
		e.Blur,
		e.Description,
	)
	if err != nil {
		return fmt.Errorf("insert sighting %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history store not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, provider, score, verdict, override, environment, blur, description
		FROM sighting
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sightings: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			created  string
			override int
		)
		if err := rows.Scan(&e.ID, &created, &e.Provider, &e.Score, &e.Verdict, &override, &e.Environment, &e.Blur, &e.Description); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse sighting timestamp %q: %w", created, err)
		}
		e.CreatedAt = ts
		e.IsOverrideMatch = override != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sightings: %w", err)
	}

	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
