package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tonetutor-labs/tonetutor-core/internal/config"
	_ "modernc.org/sqlite"
)

// Attempt is one recorded practice attempt.
type Attempt struct {
	ID             string
	ReferenceText  string
	RecognizedText string
	Stars          int
	ToneScore      float64
	ClarityScore   float64
	Simulated      bool
	CreatedAt      time.Time
}

// Store persists practice attempts in SQLite so learners can review
// progress across sessions. Recording is best-effort for callers; a
// storage failure must never fail an assessment.
type Store struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the attempt store. Ephemeral mode keeps nothing.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("history vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("history prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS attempts (
    id TEXT PRIMARY KEY,
    reference_text TEXT NOT NULL,
    recognized_text TEXT,
    stars INTEGER NOT NULL,
    tone_score REAL NOT NULL,
    clarity_score REAL NOT NULL,
    simulated INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record writes one attempt. An empty ID gets a fresh UUID.
func (s *Store) Record(ctx context.Context, att Attempt) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts(id, reference_text, recognized_text, stars, tone_score, clarity_score, simulated, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		att.ID, att.ReferenceText, att.RecognizedText, att.Stars, att.ToneScore, att.ClarityScore, boolToInt(att.Simulated), att.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// ListRecent returns up to limit attempts, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Attempt, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reference_text, recognized_text, stars, tone_score, clarity_score, simulated, created_at
		 FROM attempts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var simulated int
		var created string
		if err := rows.Scan(&a.ID, &a.ReferenceText, &a.RecognizedText, &a.Stars, &a.ToneScore, &a.ClarityScore, &simulated, &created); err != nil {
			return nil, err
		}
		a.Simulated = simulated != 0
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			a.CreatedAt = ts
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Prune applies configured retention.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE created_at < ?`, cutoff.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if s.cfg.MaxAttempts > 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE id IN (
			SELECT id FROM attempts ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxAttempts)
		if err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
