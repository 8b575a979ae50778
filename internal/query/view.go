package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"materiel-inventory-api/internal/model"
)

// Direction is the sort direction of a view.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sort keys, named after the record JSON fields.
const (
	KeyID           = "id"
	KeyType         = "type"
	KeyUsage        = "usage"
	KeyModel        = "modele"
	KeyBrand        = "marque"
	KeySerialNumber = "numero_serie"
	KeyQuantity     = "quantite"
	KeyStatus       = "statut"
	KeyLocation     = "lieu"
	KeyAssignment   = "affectation"
)

// FilterSeparator splits a filter into sub-filters that must all match.
const FilterSeparator = ";"

var sortKeys = map[string]bool{
	KeyID: true, KeyType: true, KeyUsage: true, KeyModel: true, KeyBrand: true,
	KeySerialNumber: true, KeyQuantity: true, KeyStatus: true, KeyLocation: true,
	KeyAssignment: true,
}

// Sort selects the ordering of a view.
type Sort struct {
	Key       string
	Direction Direction
}

// DefaultSort orders by id, ascending.
func DefaultSort() Sort {
	return Sort{Key: KeyID, Direction: Ascending}
}

// ParseSort validates a key and direction taken from a request. Empty values
// fall back to DefaultSort.
func ParseSort(key, direction string) (Sort, error) {
	s := DefaultSort()

	if key = strings.TrimSpace(key); key != "" {
		if !sortKeys[key] {
			return Sort{}, fmt.Errorf("unknown sort key %q", key)
		}
		s.Key = key
	}

	switch Direction(strings.ToLower(strings.TrimSpace(direction))) {
	case "", Ascending:
		s.Direction = Ascending
	case Descending:
		s.Direction = Descending
	default:
		return Sort{}, fmt.Errorf("invalid sort direction %q", direction)
	}

	return s, nil
}

// Toggle returns the sort that results from selecting key: the same key
// flips the direction, a new key starts ascending.
func (s Sort) Toggle(key string) Sort {
	if s.Key == key {
		if s.Direction == Ascending {
			return Sort{Key: key, Direction: Descending}
		}
		return Sort{Key: key, Direction: Ascending}
	}
	return Sort{Key: key, Direction: Ascending}
}

// ParseFilter splits filter text into trimmed, lower-cased, non-empty
// sub-filters.
func ParseFilter(text string) []string {
	var terms []string
	for _, part := range strings.Split(strings.ToLower(text), FilterSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			terms = append(terms, part)
		}
	}
	return terms
}

// Matches reports whether every term is a substring of the record's
// searchable text.
func Matches(r model.Record, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := searchText(r)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// Recompute derives the filtered and sorted view of records. records is not
// modified.
func Recompute(records []model.Record, filterText string, s Sort) []model.Record {
	terms := ParseFilter(filterText)

	view := make([]model.Record, 0, len(records))
	for _, r := range records {
		if Matches(r, terms) {
			view = append(view, r)
		}
	}

	Apply(view, s)
	return view
}

// Apply sorts view in place. Records with equal keys keep their order.
func Apply(view []model.Record, s Sort) {
	if s.Key == "" {
		s = DefaultSort()
	}
	desc := s.Direction == Descending

	if s.Key == KeyQuantity {
		sort.SliceStable(view, func(i, j int) bool {
			if desc {
				return view[i].Quantity > view[j].Quantity
			}
			return view[i].Quantity < view[j].Quantity
		})
		return
	}

	// A Collator keeps internal buffers, so each call builds its own.
	col := collate.New(language.French)
	keys := make([]string, len(view))
	for i, r := range view {
		keys[i] = strings.ToLower(textValue(r, s.Key))
	}
	sort.Stable(&byKey{records: view, keys: keys, col: col, desc: desc})
}

type byKey struct {
	records []model.Record
	keys    []string
	col     *collate.Collator
	desc    bool
}

func (b *byKey) Len() int { return len(b.records) }

func (b *byKey) Less(i, j int) bool {
	c := b.col.CompareString(b.keys[i], b.keys[j])
	if b.desc {
		return c > 0
	}
	return c < 0
}

func (b *byKey) Swap(i, j int) {
	b.records[i], b.records[j] = b.records[j], b.records[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}

func textValue(r model.Record, key string) string {
	switch key {
	case KeyID:
		return r.ID
	case KeyType:
		return r.Type
	case KeyUsage:
		return r.Usage
	case KeyModel:
		return r.Model
	case KeyBrand:
		return r.Brand
	case KeySerialNumber:
		return r.SerialNumber
	case KeyQuantity:
		return strconv.Itoa(r.Quantity)
	case KeyStatus:
		return r.Status
	case KeyLocation:
		return r.Location
	case KeyAssignment:
		return r.Assignment
	}
	return ""
}

func searchText(r model.Record) string {
	values := []string{
		r.ID, r.Type, r.Usage, r.Model, r.Brand, r.SerialNumber,
		strconv.Itoa(r.Quantity), r.Status, r.Location, r.Assignment,
		formatTime(r.CreatedAt), formatTime(r.ModifiedAt),
	}
	return strings.ToLower(strings.Join(values, " "))
}

// searchTimeLayout renders timestamps in UTC with millisecond precision so
// filters typed against the stored ISO text keep matching.
const searchTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(searchTimeLayout)
}
