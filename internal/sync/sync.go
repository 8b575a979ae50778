// Package sync copies the records document between the PostgreSQL tables and
// the JSON documents used by the file backend, and keeps a status file
// describing the last full synchronisation.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"

	"materiel-inventory-api/internal/model"
	"materiel-inventory-api/internal/storage"
)

// DefaultStatusFile is the name of the status file inside the data directory.
const DefaultStatusFile = "sync_status.json"

// NeverSynced is the message reported when no status file exists.
const NeverSynced = "Jamais synchronisé"

// Status describes the outcome of the last full synchronisation.
type Status struct {
	Success   bool       `json:"success"`
	Timestamp *time.Time `json:"timestamp"`
	Message   string     `json:"message"`
}

// ImportResult counts the records an import added to or updated in the
// database.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// Integrity compares the number of records on both sides.
type Integrity struct {
	Database   int  `json:"database"`
	Documents  int  `json:"documents"`
	Consistent bool `json:"consistent"`
}

// Synchronizer moves records between a database storage and a document
// storage. Only the records collection is synchronised; the history stays with
// the backend that produced it.
type Synchronizer struct {
	Database   storage.Storage
	Documents  storage.Storage
	StatusPath string
	Clock      func() time.Time
	Logger     zerolog.Logger
}

// NewSynchronizer creates a Synchronizer writing its status to statusPath.
func NewSynchronizer(db, docs storage.Storage, statusPath string, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		Database:   db,
		Documents:  docs,
		StatusPath: statusPath,
		Clock:      time.Now,
		Logger:     logger.With().Str("component", "sync").Logger(),
	}
}

// Export replaces the records document with the database contents and returns
// the number of records written.
func (s *Synchronizer) Export(ctx context.Context) (int, error) {
	records, err := loadRecords(ctx, s.Database)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	if err := s.Documents.SaveRecords(ctx, records); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	s.Logger.Info().Int("records", len(records)).Msg("exported database to documents")
	return len(records), nil
}

// Import merges the records document into the database. Records are matched by
// id: known ids are updated in place and new ids appended. Database records
// absent from the document are kept.
func (s *Synchronizer) Import(ctx context.Context) (ImportResult, error) {
	var result ImportResult

	incoming, err := s.Documents.LoadRecords(ctx)
	if errors.Is(err, storage.ErrNoData) {
		s.Logger.Warn().Msg("no records document, nothing to import")
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("import: %w", err)
	}

	existing, err := loadRecords(ctx, s.Database)
	if err != nil {
		return result, fmt.Errorf("import: %w", err)
	}

	merged, result := Merge(existing, incoming)
	if err := s.Database.SaveRecords(ctx, merged); err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}

	s.Logger.Info().Int("added", result.Added).Int("updated", result.Updated).Msg("imported documents into database")
	return result, nil
}

// Sync runs export, import and a final export, then records the outcome in the
// status file.
func (s *Synchronizer) Sync(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"export", func(ctx context.Context) error { _, err := s.Export(ctx); return err }},
		{"import", func(ctx context.Context) error { _, err := s.Import(ctx); return err }},
		{"re-export", func(ctx context.Context) error { _, err := s.Export(ctx); return err }},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			if saveErr := s.SaveStatus(false, err.Error()); saveErr != nil {
				s.Logger.Warn().Err(saveErr).Msg("failed to save sync status")
			}
			return fmt.Errorf("%s step failed: %w", step.name, err)
		}
	}

	if err := s.SaveStatus(true, ""); err != nil {
		s.Logger.Warn().Err(err).Msg("failed to save sync status")
	}
	return nil
}

// Check counts the records on both sides.
func (s *Synchronizer) Check(ctx context.Context) (Integrity, error) {
	dbRecords, err := loadRecords(ctx, s.Database)
	if err != nil {
		return Integrity{}, fmt.Errorf("check: %w", err)
	}
	docRecords, err := loadRecords(ctx, s.Documents)
	if err != nil {
		return Integrity{}, fmt.Errorf("check: %w", err)
	}

	return Integrity{
		Database:   len(dbRecords),
		Documents:  len(docRecords),
		Consistent: len(dbRecords) == len(docRecords),
	}, nil
}

// SaveStatus atomically replaces the status file.
func (s *Synchronizer) SaveStatus(success bool, message string) error {
	now := s.Clock()
	data, err := json.MarshalIndent(Status{Success: success, Timestamp: &now, Message: message}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.StatusPath), 0o755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	return atomic.WriteFile(s.StatusPath, bytes.NewReader(data))
}

// Status reads the status file. A missing or unreadable file reports a
// synchronisation that never happened.
func (s *Synchronizer) Status() Status {
	never := Status{Message: NeverSynced}

	data, err := os.ReadFile(s.StatusPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.Logger.Warn().Err(err).Str("path", s.StatusPath).Msg("failed to read sync status")
		}
		return never
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		s.Logger.Warn().Err(err).Str("path", s.StatusPath).Msg("invalid sync status file")
		return never
	}
	return status
}

// Merge applies incoming onto existing by id. The order of existing is kept
// and new records follow in incoming order. Creation times of updated records
// are preserved when the incoming record has none.
func Merge(existing, incoming []model.Record) ([]model.Record, ImportResult) {
	var result ImportResult

	merged := make([]model.Record, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	index := make(map[string]int, len(existing))
	for i, r := range existing {
		index[r.ID] = i
	}

	for _, r := range incoming {
		if i, ok := index[r.ID]; ok {
			if r.CreatedAt.IsZero() {
				r.CreatedAt = merged[i].CreatedAt
			}
			merged[i] = r
			result.Updated++
			continue
		}
		index[r.ID] = len(merged)
		merged = append(merged, r)
		result.Added++
	}

	return merged, result
}

func loadRecords(ctx context.Context, st storage.Storage) ([]model.Record, error) {
	records, err := st.LoadRecords(ctx)
	if errors.Is(err, storage.ErrNoData) {
		return []model.Record{}, nil
	}
	return records, err
}
