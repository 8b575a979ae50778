package storage

import (
	"context"
	"errors"

	"materiel-inventory-api/internal/model"
)

// ErrNoData is returned by loads when nothing has been stored yet. It lets
// callers tell a first run apart from a failed read.
var ErrNoData = errors.New("no stored data")

// Storage persists the record collection and the history log. Implementations
// replace the whole stored collection on every save.
type Storage interface {
	LoadRecords(ctx context.Context) ([]model.Record, error)
	LoadHistory(ctx context.Context) ([]model.HistoryEntry, error)
	SaveRecords(ctx context.Context, records []model.Record) error
	SaveHistory(ctx context.Context, entries []model.HistoryEntry) error
}
