package storage

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

	"materiel-inventory-api/internal/model"
)

// Default document names inside the data directory.
const (
	DefaultRecordsFile = "materiel.json"
	DefaultHistoryFile = "historique.json"
)

// FileStorage keeps both collections as JSON documents on disk. Documents are
// replaced atomically so a reader never sees a partial write.
type FileStorage struct {
	recordsPath string
	historyPath string
	now         func() time.Time
}

// NewFileStorage returns a storage rooted at dir. Empty names fall back to the
// default document names.
func NewFileStorage(dir, recordsFile, historyFile string) *FileStorage {
	if recordsFile == "" {
		recordsFile = DefaultRecordsFile
	}
	if historyFile == "" {
		historyFile = DefaultHistoryFile
	}
	return &FileStorage{
		recordsPath: filepath.Join(dir, recordsFile),
		historyPath: filepath.Join(dir, historyFile),
		now:         time.Now,
	}
}

// RecordsPath returns the location of the records document.
func (s *FileStorage) RecordsPath() string {
	return s.recordsPath
}

// LoadRecords reads the records document.
func (s *FileStorage) LoadRecords(ctx context.Context) ([]model.Record, error) {
	var doc model.RecordsDocument
	if err := s.readDocument(ctx, s.recordsPath, &doc); err != nil {
		return nil, err
	}
	if doc.Materiels == nil {
		return []model.Record{}, nil
	}
	return doc.Materiels, nil
}

// LoadHistory reads the history document.
func (s *FileStorage) LoadHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	var doc model.HistoryDocument
	if err := s.readDocument(ctx, s.historyPath, &doc); err != nil {
		return nil, err
	}
	if doc.Historique == nil {
		return []model.HistoryEntry{}, nil
	}
	return doc.Historique, nil
}

// SaveRecords writes the records document.
func (s *FileStorage) SaveRecords(ctx context.Context, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	doc := model.RecordsDocument{
		Materiels:  records,
		LastUpdate: s.now().UTC().Format(time.RFC3339Nano),
		Version:    model.RecordsDocumentVersion,
	}
	return s.writeDocument(ctx, s.recordsPath, doc)
}

// SaveHistory writes the history document.
func (s *FileStorage) SaveHistory(ctx context.Context, entries []model.HistoryEntry) error {
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	doc := model.HistoryDocument{
		Historique:        entries,
		DerniereMiseAJour: s.now().UTC().Format(time.RFC3339Nano),
	}
	return s.writeDocument(ctx, s.historyPath, doc)
}

func (s *FileStorage) readDocument(ctx context.Context, path string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoData, path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrNoData, path)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (s *FileStorage) writeDocument(ctx context.Context, path string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
