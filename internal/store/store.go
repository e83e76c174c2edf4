// Package store persists detected findings in PostgreSQL and reconstructs
// the masking value set for a document reference.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/config"
	"github.com/raaihank/doc-sentinel/internal/logger"
)

// ErrPersistence is returned when a findings write fails. It aborts the
// pipeline run before any masking happens.
var ErrPersistence = errors.New("persistence failed")

// Store handles findings persistence with PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewStore creates a new findings store instance
func NewStore(cfg *config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	store := &Store{
		db:     db,
		logger: log,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	log.Info("Findings store initialized successfully",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return store, nil
}

// initialize checks the database connection and bootstraps the schema
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS file_metadata (
			id BIGSERIAL PRIMARY KEY,
			file_name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS detected_findings (
			id BIGSERIAL PRIMARY KEY,
			file_name TEXT NOT NULL,
			findings JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS additional_findings (
			id BIGSERIAL PRIMARY KEY,
			file_name TEXT NOT NULL,
			additional JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detected_findings_file ON detected_findings (file_name)`,
		`CREATE INDEX IF NOT EXISTS idx_additional_findings_file ON additional_findings (file_name)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}

	return nil
}

// SaveMetadata records that a document reference was processed. Each run
// appends a new row; prior runs are never merged or replaced.
func (s *Store) SaveMetadata(ctx context.Context, docRef string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_metadata (file_name) VALUES ($1)`, docRef)
	if err != nil {
		s.logger.Error("Failed to insert file metadata",
			zap.Error(err),
			zap.String("document", docRef))
		return fmt.Errorf("%w: insert metadata: %v", ErrPersistence, err)
	}
	return nil
}

// SaveFindings appends the merged categorized findings for a document
func (s *Store) SaveFindings(ctx context.Context, docRef string, findings map[string][]string) error {
	payload, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("%w: encode findings: %v", ErrPersistence, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO detected_findings (file_name, findings) VALUES ($1, $2)`,
		docRef, payload)
	if err != nil {
		s.logger.Error("Failed to insert findings",
			zap.Error(err),
			zap.String("document", docRef),
			zap.Int("categories", len(findings)))
		return fmt.Errorf("%w: insert findings: %v", ErrPersistence, err)
	}

	s.logger.Debug("Findings inserted",
		zap.String("document", docRef),
		zap.Int("categories", len(findings)))

	return nil
}

// SaveAdditional appends the additional (free-label) findings for a document
func (s *Store) SaveAdditional(ctx context.Context, docRef string, additional map[string][]string) error {
	payload, err := json.Marshal(additional)
	if err != nil {
		return fmt.Errorf("%w: encode additional findings: %v", ErrPersistence, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO additional_findings (file_name, additional) VALUES ($1, $2)`,
		docRef, payload)
	if err != nil {
		s.logger.Error("Failed to insert additional findings",
			zap.Error(err),
			zap.String("document", docRef),
			zap.Int("labels", len(additional)))
		return fmt.Errorf("%w: insert additional findings: %v", ErrPersistence, err)
	}

	return nil
}

// MaskingValues reconstructs the masking value set for a document reference:
// the union of every value across every category of every findings row plus
// every value of every additional row. Returns an empty slice, never an
// error, when nothing is recorded.
func (s *Store) MaskingValues(ctx context.Context, docRef string) ([]string, error) {
	values := make(map[string]bool)

	var findingRows [][]byte
	err := s.db.SelectContext(ctx, &findingRows,
		`SELECT findings FROM detected_findings WHERE file_name = $1`, docRef)
	if err != nil {
		return nil, fmt.Errorf("%w: load findings: %v", ErrPersistence, err)
	}
	for _, row := range findingRows {
		var findings map[string][]string
		if err := json.Unmarshal(row, &findings); err != nil {
			return nil, fmt.Errorf("%w: decode findings row: %v", ErrPersistence, err)
		}
		for _, vals := range findings {
			for _, v := range vals {
				values[v] = true
			}
		}
	}

	var additionalRows [][]byte
	err = s.db.SelectContext(ctx, &additionalRows,
		`SELECT additional FROM additional_findings WHERE file_name = $1`, docRef)
	if err != nil {
		return nil, fmt.Errorf("%w: load additional findings: %v", ErrPersistence, err)
	}
	for _, row := range additionalRows {
		var additional map[string][]string
		if err := json.Unmarshal(row, &additional); err != nil {
			return nil, fmt.Errorf("%w: decode additional row: %v", ErrPersistence, err)
		}
		for _, vals := range additional {
			for _, v := range vals {
				values[v] = true
			}
		}
	}

	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, v)
	}

	s.logger.Debug("Masking value set loaded",
		zap.String("document", docRef),
		zap.Int("values", len(out)))

	return out, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks sensitive information in database URL for logging
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
