package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"materiel-inventory-api/internal/history"
	"materiel-inventory-api/internal/model"
	"materiel-inventory-api/internal/notification"
	"materiel-inventory-api/internal/query"
	"materiel-inventory-api/internal/storage"
	"materiel-inventory-api/internal/store"
	apperrors "materiel-inventory-api/pkg/errors"
	"materiel-inventory-api/pkg/validation"
)

// Sync operations recorded in SyncStatus
const (
	OperationLoad = "load"
	OperationSave = "save"
)

// DefaultPersistTimeout bounds one save of both documents.
const DefaultPersistTimeout = 5 * time.Second

// Config holds service settings
type Config struct {
	MaxEntries     int
	Actor          string
	PersistTimeout time.Duration
	IDPrefix       string
	Clock          func() time.Time
	Location       *time.Location
}

// SyncStatus describes the outcome of the last load or save.
type SyncStatus struct {
	OK         bool      `json:"ok"`
	Operation  string    `json:"operation"`
	Time       time.Time `json:"time"`
	Error      string    `json:"error,omitempty"`
	FirstRun   bool      `json:"first_run,omitempty"`
	Records    int       `json:"records"`
	Entries    int       `json:"entries"`
	SkippedIDs []string  `json:"skipped_ids,omitempty"`
}

// MutationResult is returned by every store-mutating operation. Sync reports
// the save that followed the mutation; a failed save does not undo it.
type MutationResult struct {
	Record model.Record       `json:"materiel"`
	Entry  model.HistoryEntry `json:"historique"`
	Sync   SyncStatus         `json:"sync"`
}

// ListParams selects a query view
type ListParams struct {
	Filter string
	Sort   query.Sort
}

// ListResult is a query view together with its stats
type ListResult struct {
	Items []model.Record `json:"items"`
	Stats model.Stats    `json:"stats"`
}

// EntryDetail is one history entry with its field-level diff
type EntryDetail struct {
	Entry   model.HistoryEntry `json:"entry"`
	Changes []history.Change   `json:"changes"`
	Summary string             `json:"summary"`
}

// InventoryService owns the record store and the history log. Every operation
// runs under one mutex, so operations never interleave.
type InventoryService struct {
	mu      sync.Mutex
	records *store.Records
	log     *history.Log
	status  SyncStatus

	storage        storage.Storage
	notifier       notification.Notifier
	logger         zerolog.Logger
	now            func() time.Time
	persistTimeout time.Duration
	idPrefix       string

	notifications sync.WaitGroup
}

// NewInventoryService creates an empty service. Call Load to read the stored
// documents. notifier may be nil.
func NewInventoryService(st storage.Storage, notifier notification.Notifier, logger zerolog.Logger, cfg Config) *InventoryService {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = store.DefaultIDPrefix
	}

	return &InventoryService{
		records: store.NewRecords(),
		log: history.NewLog(
			history.WithMaxEntries(cfg.MaxEntries),
			history.WithActor(cfg.Actor),
			history.WithClock(cfg.Clock),
			history.WithLocation(cfg.Location),
		),
		storage:        st,
		notifier:       notifier,
		logger:         logger.With().Str("component", "inventory").Logger(),
		now:            cfg.Clock,
		persistTimeout: cfg.PersistTimeout,
		idPrefix:       cfg.IDPrefix,
	}
}

// Load replaces the in-memory state with the stored documents. A failed load
// leaves an empty store so the service stays usable; the returned status tells
// a first run (nothing stored) apart from a real failure.
func (s *InventoryService) Load(ctx context.Context) SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SyncStatus{OK: true, Operation: OperationLoad, Time: s.now()}
	var problems []error

	records, err := s.storage.LoadRecords(ctx)
	switch {
	case errors.Is(err, storage.ErrNoData):
		status.FirstRun = true
		records = nil
	case err != nil:
		problems = append(problems, fmt.Errorf("records: %w", err))
		records = nil
	}

	entries, err := s.storage.LoadHistory(ctx)
	switch {
	case errors.Is(err, storage.ErrNoData):
		entries = nil
	case err != nil:
		problems = append(problems, fmt.Errorf("history: %w", err))
		entries = nil
	}

	status.SkippedIDs = s.records.Replace(records)
	s.log.Replace(entries)
	status.Records = s.records.Len()
	status.Entries = s.log.Len()

	if len(problems) > 0 {
		err := errors.Join(problems...)
		status.OK = false
		status.Error = err.Error()
		s.logger.Error().Err(err).Msg("load failed, starting with the data that could be read")
	} else {
		s.logger.Info().Int("records", status.Records).Int("entries", status.Entries).
			Bool("first_run", status.FirstRun).Msg("inventory loaded")
	}
	if len(status.SkippedIDs) > 0 {
		s.logger.Warn().Strs("ids", status.SkippedIDs).Msg("skipped records without id or with a duplicate id")
	}

	s.status = status
	return status
}

// Create adds a new record and appends a create entry.
func (s *InventoryService) Create(ctx context.Context, input model.RecordInput) (*MutationResult, error) {
	if problems := validation.ValidateRecordInput(&input); len(problems) > 0 {
		return nil, apperrors.ValidationErrorWithDetails("invalid record", problems)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.records.Create(input, s.now())
	if err != nil {
		return nil, mapStoreError(err, strings.TrimSpace(input.ID))
	}

	entry, err := s.log.Append(model.ActionCreate, record.ID, nil, &record)
	if err != nil {
		if _, undoErr := s.records.Delete(record.ID); undoErr != nil {
			s.logger.Error().Err(undoErr).Str("id", record.ID).Msg("failed to undo create")
		}
		return nil, apperrors.InternalError("failed to record history", err)
	}

	result := &MutationResult{Record: record, Entry: entry, Sync: s.persistLocked(ctx)}
	s.logger.Info().Str("id", record.ID).Msg("record created")
	s.notify(model.ActionCreate, record, fmt.Sprintf("Record %s created", record.ID))

	return result, nil
}

// Update replaces the record stored under id. input may carry a new id.
func (s *InventoryService) Update(ctx context.Context, id string, input model.RecordInput) (*MutationResult, error) {
	if problems := validation.ValidateRecordInput(&input); len(problems) > 0 {
		return nil, apperrors.ValidationErrorWithDetails("invalid record", problems)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before, after, err := s.records.Update(id, input, s.now())
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperrors.DuplicateKeyError(strings.TrimSpace(input.ID))
		}
		return nil, mapStoreError(err, id)
	}

	entry, err := s.log.Append(model.ActionUpdate, after.ID, &before, &after)
	if err != nil {
		if _, _, undoErr := s.records.Update(after.ID, model.InputFromRecord(before), before.ModifiedAt); undoErr != nil {
			s.logger.Error().Err(undoErr).Str("id", id).Msg("failed to undo update")
		}
		return nil, apperrors.InternalError("failed to record history", err)
	}

	result := &MutationResult{Record: after, Entry: entry, Sync: s.persistLocked(ctx)}

	event := s.logger.Info().Str("id", after.ID)
	if after.ID != id {
		event = event.Str("previous_id", id)
	}
	event.Int("changes", len(history.Diff(&before, &after))).Msg("record updated")

	s.notify(model.ActionUpdate, after, fmt.Sprintf("Record %s updated", after.ID))

	return result, nil
}

// Delete removes the record stored under id. Confirmation is checked by the
// caller.
func (s *InventoryService) Delete(ctx context.Context, id string) (*MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.records.Get(id)
	if err != nil {
		return nil, mapStoreError(err, id)
	}

	// The entry is appended first: the removal below cannot fail once Get
	// succeeded under the lock.
	entry, err := s.log.Append(model.ActionDelete, record.ID, &record, nil)
	if err != nil {
		return nil, apperrors.InternalError("failed to record history", err)
	}
	if _, err := s.records.Delete(id); err != nil {
		return nil, mapStoreError(err, id)
	}

	result := &MutationResult{Record: record, Entry: entry, Sync: s.persistLocked(ctx)}
	s.logger.Info().Str("id", id).Msg("record deleted")
	s.notify(model.ActionDelete, record, fmt.Sprintf("Record %s deleted", id))

	return result, nil
}

// Get returns one record
func (s *InventoryService) Get(ctx context.Context, id string) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.records.Get(id)
	if err != nil {
		return nil, mapStoreError(err, id)
	}
	return &record, nil
}

// List returns the filtered and sorted view with its stats.
func (s *InventoryService) List(ctx context.Context, params ListParams) *ListResult {
	s.mu.Lock()
	records := s.records.List()
	s.mu.Unlock()

	view := query.Recompute(records, params.Filter, params.Sort)
	return &ListResult{Items: view, Stats: query.ComputeStats(view)}
}

// Stats returns the stats of the view selected by filter.
func (s *InventoryService) Stats(ctx context.Context, filter string) model.Stats {
	return s.List(ctx, ListParams{Filter: filter, Sort: query.DefaultSort()}).Stats
}

// NextID suggests the next free generated identifier.
func (s *InventoryService) NextID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records.NextID(s.idPrefix)
}

// History returns the history entries sorted by timestamp.
func (s *InventoryService) History(ctx context.Context, order history.Order) []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.log.Chronological(order)
}

// HistoryEntry returns one entry with its diff.
func (s *InventoryService) HistoryEntry(ctx context.Context, id string) (*EntryDetail, error) {
	s.mu.Lock()
	entry, err := s.log.Get(model.EntryID(id))
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, history.ErrEntryNotFound) {
			return nil, apperrors.NotFoundError("history entry", id)
		}
		return nil, apperrors.InternalError("failed to read history", err)
	}

	changes := history.Diff(entry.Details.Before, entry.Details.After)
	if changes == nil {
		changes = []history.Change{}
	}

	return &EntryDetail{Entry: entry, Changes: changes, Summary: history.Summary(entry)}, nil
}

// Sync saves both documents now.
func (s *InventoryService) Sync(ctx context.Context) (SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.persistLocked(ctx)
	if !status.OK {
		return status, apperrors.PersistenceError("failed to save inventory", errors.New(status.Error))
	}
	return status, nil
}

// SyncStatus returns the outcome of the last load or save.
func (s *InventoryService) SyncStatus(ctx context.Context) SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Close waits for pending notifications.
func (s *InventoryService) Close() {
	s.notifications.Wait()
}

// persistLocked saves records then history. The save outlives a cancelled
// request but not the persist timeout. Callers hold s.mu.
func (s *InventoryService) persistLocked(ctx context.Context) SyncStatus {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	status := SyncStatus{
		OK:        true,
		Operation: OperationSave,
		Time:      s.now(),
		Records:   s.records.Len(),
		Entries:   s.log.Len(),
	}

	var problems []error
	if err := s.storage.SaveRecords(ctx, s.records.List()); err != nil {
		problems = append(problems, fmt.Errorf("records: %w", err))
	}
	if err := s.storage.SaveHistory(ctx, s.log.Entries()); err != nil {
		problems = append(problems, fmt.Errorf("history: %w", err))
	}

	if len(problems) > 0 {
		err := errors.Join(problems...)
		status.OK = false
		status.Error = err.Error()
		s.logger.Error().Err(err).Msg("save failed, in-memory changes kept")
	}

	s.status = status
	return status
}

func (s *InventoryService) notify(action model.Action, record model.Record, message string) {
	if s.notifier == nil {
		return
	}

	level := notification.LevelInfo
	if action == model.ActionDelete {
		level = notification.LevelWarning
	}
	n := notification.Notification{
		Level:     level,
		Action:    string(action),
		RecordID:  record.ID,
		Message:   message,
		Timestamp: s.now(),
		Metadata: map[string]string{
			"type":   record.Type,
			"modele": record.Model,
			"statut": record.Status,
		},
	}

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		if err := s.notifier.SendNotification(context.Background(), n); err != nil {
			s.logger.Warn().Err(err).Str("id", n.RecordID).Str("action", n.Action).
				Msg("failed to send notification")
		}
	}()
}

func mapStoreError(err error, id string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFoundError("record", id)
	case errors.Is(err, store.ErrDuplicateKey):
		return apperrors.DuplicateKeyError(id)
	case errors.Is(err, store.ErrInvalidInput):
		return apperrors.ValidationErrorWithDetails("invalid record", map[string]string{"id": "id is required"})
	}
	return apperrors.InternalError("inventory operation failed", err)
}
