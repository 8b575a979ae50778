package history

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"materiel-inventory-api/internal/model"
)

// ErrEntryNotFound is returned when no entry carries the requested id.
var ErrEntryNotFound = errors.New("history entry not found")

// Defaults used when the log is built without explicit settings.
const (
	DefaultMaxEntries = 1000
	DefaultActor      = "Web Interface"
	DisplayDateLayout = "02/01/2006 15:04:05"
)

// Order selects the direction of Chronological.
type Order string

const (
	NewestFirst Order = "desc"
	OldestFirst Order = "asc"
)

// ParseOrder maps a query parameter to an Order, defaulting to NewestFirst.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(NewestFirst):
		return NewestFirst, nil
	case string(OldestFirst):
		return OldestFirst, nil
	}
	return "", fmt.Errorf("invalid history order %q", s)
}

// Option configures a Log.
type Option func(*Log)

// WithMaxEntries sets the eviction ceiling.
func WithMaxEntries(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxEntries = n
		}
	}
}

// WithActor sets the actor stamped on every appended entry.
func WithActor(actor string) Option {
	return func(l *Log) {
		if strings.TrimSpace(actor) != "" {
			l.actor = actor
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLocation sets the time zone used for display dates.
func WithLocation(loc *time.Location) Option {
	return func(l *Log) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// Log is an append-only, size-bounded sequence of history entries. Entries
// only leave the log through eviction of the oldest ones.
//
// Log is not safe for concurrent use; callers serialize access.
type Log struct {
	entries    []model.HistoryEntry
	maxEntries int
	actor      string
	now        func() time.Time
	loc        *time.Location
	newID      func() (uuid.UUID, error)
}

// NewLog builds an empty log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		maxEntries: DefaultMaxEntries,
		actor:      DefaultActor,
		now:        time.Now,
		loc:        time.Local,
		newID:      uuid.NewV7,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxEntries returns the eviction ceiling.
func (l *Log) MaxEntries() int {
	return l.maxEntries
}

// Append records one mutation. Snapshots are copied so later changes to the
// caller's values never reach the log.
func (l *Log) Append(action model.Action, recordID string, before, after *model.Record) (model.HistoryEntry, error) {
	if !action.Valid() {
		return model.HistoryEntry{}, fmt.Errorf("invalid history action %q", action)
	}

	// UUIDv7 is time ordered with a random tail, so entries created within
	// the same clock tick still get distinct ids.
	id, err := l.newID()
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("failed to generate history entry id: %w", err)
	}

	now := l.now()
	entry := model.HistoryEntry{
		EntryID:     model.EntryID(id.String()),
		Timestamp:   now,
		DisplayDate: now.In(l.loc).Format(DisplayDateLayout),
		Action:      action,
		RecordID:    recordID,
		Actor:       l.actor,
		Details: model.Snapshots{
			Before: cloneRecord(before),
			After:  cloneRecord(after),
		},
	}

	l.entries = append(l.entries, entry)
	l.evict()

	return entry, nil
}

// evict keeps the newest maxEntries entries.
func (l *Log) evict() {
	if excess := len(l.entries) - l.maxEntries; excess > 0 {
		kept := make([]model.HistoryEntry, l.maxEntries)
		copy(kept, l.entries[excess:])
		l.entries = kept
	}
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l *Log) Entries() []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Get returns the entry with the given id.
func (l *Log) Get(id model.EntryID) (model.HistoryEntry, error) {
	for _, e := range l.entries {
		if e.EntryID == id {
			return e, nil
		}
	}
	return model.HistoryEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// Chronological returns the entries sorted by timestamp. Entries sharing a
// timestamp keep their insertion order in both directions.
func (l *Log) Chronological(order Order) []model.HistoryEntry {
	out := l.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		if order == OldestFirst {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Replace loads entries, keeping only the newest maxEntries of them.
func (l *Log) Replace(entries []model.HistoryEntry) {
	l.entries = make([]model.HistoryEntry, len(entries))
	copy(l.entries, entries)
	l.evict()
}

func cloneRecord(r *model.Record) *model.Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// EmptyValue is displayed in diffs in place of an empty field.
const EmptyValue = "vide"

// TrackedFields lists, in display order, the fields compared by Diff.
var TrackedFields = []string{
	"type", "usage", "modele", "marque", "numero_serie",
	"quantite", "statut", "lieu", "affectation",
}

// Change describes one field that differs between two snapshots.
type Change struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// String renders the change as "field: old → new".
func (c Change) String() string {
	return fmt.Sprintf("%s: %s → %s", c.Field, displayValue(c.Old), displayValue(c.New))
}

func displayValue(v string) string {
	if v == "" {
		return EmptyValue
	}
	return v
}

// Diff compares the tracked fields of two snapshots. A nil snapshot compares
// as a record with every field empty.
func Diff(before, after *model.Record) []Change {
	var b, a model.Record
	if before != nil {
		b = *before
	}
	if after != nil {
		a = *after
	}

	var changes []Change
	for _, field := range TrackedFields {
		oldValue, newValue := fieldValue(b, field, before != nil), fieldValue(a, field, after != nil)
		if oldValue != newValue {
			changes = append(changes, Change{Field: field, Old: oldValue, New: newValue})
		}
	}
	return changes
}

// Describe renders every change of Diff(before, after).
func Describe(before, after *model.Record) []string {
	changes := Diff(before, after)
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.String()
	}
	return out
}

// Summary returns a one-line description of an entry.
func Summary(e model.HistoryEntry) string {
	switch {
	case e.Action == model.ActionUpdate && e.Details.Before != nil && e.Details.After != nil:
		return strings.Join(Describe(e.Details.Before, e.Details.After), "; ")
	case e.Action == model.ActionCreate && e.Details.After != nil:
		return fmt.Sprintf("Nouveau: %s - %s", orNA(e.Details.After.Type), orNA(e.Details.After.Model))
	case e.Action == model.ActionDelete && e.Details.Before != nil:
		return fmt.Sprintf("Supprimé: %s - %s", orNA(e.Details.Before.Type), orNA(e.Details.Before.Model))
	}
	return ""
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

func fieldValue(r model.Record, field string, present bool) string {
	switch field {
	case "type":
		return r.Type
	case "usage":
		return r.Usage
	case "modele":
		return r.Model
	case "marque":
		return r.Brand
	case "numero_serie":
		return r.SerialNumber
	case "quantite":
		if !present {
			return ""
		}
		return strconv.Itoa(r.Quantity)
	case "statut":
		return r.Status
	case "lieu":
		return r.Location
	case "affectation":
		return r.Assignment
	}
	return ""
}
