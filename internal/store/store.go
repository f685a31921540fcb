// Package store handles SQLite persistence of cached analysis results.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/readaid/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for cached analysis verdicts, keyed by region text.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_results (
			text_hash TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			difficulty_score REAL NOT NULL,
			confusion_probability REAL NOT NULL,
			needs_assistance INTEGER NOT NULL,
			explanation TEXT NOT NULL,
			simplified_text TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_results_updated_at ON analysis_results(updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// TextKey returns the cache key for a region text.
func TextKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// PutResult stores the latest successful result for a text.
func (s *Store) PutResult(ctx context.Context, text string, res model.AnalysisResult) error {
	needs := 0
	if res.NeedsAssistance {
		needs = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (text_hash, text, difficulty_score, confusion_probability, needs_assistance, explanation, simplified_text, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(text_hash) DO UPDATE SET
			difficulty_score = excluded.difficulty_score,
			confusion_probability = excluded.confusion_probability,
			needs_assistance = excluded.needs_assistance,
			explanation = excluded.explanation,
			simplified_text = excluded.simplified_text,
			updated_at = excluded.updated_at`,
		TextKey(text),
		text,
		res.DifficultyScore,
		res.ConfusionProbability,
		needs,
		res.Explanation,
		res.SimplifiedText,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// LookupResult returns the cached result for a text, if present.
func (s *Store) LookupResult(ctx context.Context, text string) (model.AnalysisResult, bool, error) {
	key := TextKey(text)
	var res model.AnalysisResult
	var needs int
	err := s.db.QueryRowContext(ctx,
		`SELECT difficulty_score, confusion_probability, needs_assistance, explanation, simplified_text
		 FROM analysis_results WHERE text_hash = ?`, key,
	).Scan(&res.DifficultyScore, &res.ConfusionProbability, &needs, &res.Explanation, &res.SimplifiedText)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AnalysisResult{}, false, nil
	}
	if err != nil {
		return model.AnalysisResult{}, false, err
	}
	res.NeedsAssistance = needs != 0
	if _, err := s.db.ExecContext(ctx, `UPDATE analysis_results SET hits = hits + 1 WHERE text_hash = ?`, key); err != nil {
		return model.AnalysisResult{}, false, err
	}
	return res, true, nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int
	Hits    int
}

// Stats returns entry and hit counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM analysis_results`).Scan(&st.Entries, &st.Hits)
	return st, err
}

// Prune deletes entries not updated since the cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_results WHERE updated_at < ?`, olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Clear deletes every cached entry.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_results`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
