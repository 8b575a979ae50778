package store

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"materiel-inventory-api/internal/model"
)

// Custom errors for better error handling
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("record with this id already exists")
	ErrInvalidInput = errors.New("record id is required")
)

// DefaultIDPrefix is the prefix of generated record identifiers.
const DefaultIDPrefix = "ID-RT-"

var trailingNumber = regexp.MustCompile(`(\d+)$`)

// Records owns the canonical record collection. Records keep their insertion
// order, which is the order every derived view starts from.
//
// Records is not safe for concurrent use; callers serialize access.
type Records struct {
	items []model.Record
	index map[string]int
}

// NewRecords returns an empty store.
func NewRecords() *Records {
	return &Records{index: make(map[string]int)}
}

// Create normalizes input and inserts it as a new record.
func (s *Records) Create(input model.RecordInput, now time.Time) (model.Record, error) {
	record := input.Normalize()
	if record.ID == "" {
		return model.Record{}, ErrInvalidInput
	}
	if _, exists := s.index[record.ID]; exists {
		return model.Record{}, fmt.Errorf("%w: %s", ErrDuplicateKey, record.ID)
	}

	record.CreatedAt = now
	record.ModifiedAt = now

	s.index[record.ID] = len(s.items)
	s.items = append(s.items, record)

	return record, nil
}

// Update replaces the record stored under id. The record keeps its position
// and creation time; it is re-keyed when input carries a different id.
func (s *Records) Update(id string, input model.RecordInput, now time.Time) (before, after model.Record, err error) {
	pos, ok := s.index[id]
	if !ok {
		return model.Record{}, model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	record := input.Normalize()
	if record.ID == "" {
		return model.Record{}, model.Record{}, ErrInvalidInput
	}
	if record.ID != id {
		if _, taken := s.index[record.ID]; taken {
			return model.Record{}, model.Record{}, fmt.Errorf("%w: %s", ErrDuplicateKey, record.ID)
		}
	}

	before = s.items[pos]
	record.CreatedAt = before.CreatedAt
	record.ModifiedAt = now

	s.items[pos] = record
	if record.ID != id {
		delete(s.index, id)
		s.index[record.ID] = pos
	}

	return before, record, nil
}

// Delete removes the record stored under id and returns it.
func (s *Records) Delete(id string) (model.Record, error) {
	pos, ok := s.index[id]
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	removed := s.items[pos]
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.items); i++ {
		s.index[s.items[i].ID] = i
	}

	return removed, nil
}

// Get returns the record stored under id.
func (s *Records) Get(id string) (model.Record, error) {
	pos, ok := s.index[id]
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.items[pos], nil
}

// List returns a copy of all records in insertion order.
func (s *Records) List() []model.Record {
	out := make([]model.Record, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of stored records.
func (s *Records) Len() int {
	return len(s.items)
}

// Replace discards the current contents and loads records. Records without an
// id and later duplicates of an id are skipped; their ids are returned.
func (s *Records) Replace(records []model.Record) (skipped []string) {
	s.items = make([]model.Record, 0, len(records))
	s.index = make(map[string]int, len(records))

	for _, r := range records {
		if r.ID == "" {
			skipped = append(skipped, r.ID)
			continue
		}
		if _, exists := s.index[r.ID]; exists {
			skipped = append(skipped, r.ID)
			continue
		}
		s.index[r.ID] = len(s.items)
		s.items = append(s.items, r)
	}

	return skipped
}

// NextID returns prefix followed by one more than the largest trailing number
// found among ids starting with prefix.
func (s *Records) NextID(prefix string) string {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}

	highest := 0
	for _, r := range s.items {
		if !strings.HasPrefix(r.ID, prefix) {
			continue
		}
		m := trailingNumber.FindStringSubmatch(r.ID)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}

	return prefix + strconv.Itoa(highest+1)
}
