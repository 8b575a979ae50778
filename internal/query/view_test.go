package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"materiel-inventory-api/internal/model"
)

func sample() []model.Record {
	return []model.Record{
		{ID: "R1", Type: "Camion", Status: "En service", Quantity: 3},
		{ID: "R2", Type: "camion", Status: "En panne", Quantity: 1},
		{ID: "R3", Type: "Échelle", Status: "En service", Quantity: 10},
		{ID: "R4", Type: "Echelle", Status: "", Quantity: 2},
		{ID: "R5", Type: "Zodiac", Status: "En service", Quantity: 5},
	}
}

func viewIDs(view []model.Record) []string {
	out := make([]string, len(view))
	for i, r := range view {
		out[i] = r.ID
	}
	return out
}

func TestParseFilter(t *testing.T) {
	assert.Equal(t, []string{"en service", "camion"}, ParseFilter(" En Service ; ;CAMION "))
	assert.Empty(t, ParseFilter(" ; "))
}

func TestRecompute_Filter(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{"empty filter keeps everything", "", []string{"R1", "R2", "R3", "R4", "R5"}},
		{"case insensitive", "CAMION", []string{"R1", "R2"}},
		{"all sub-filters must match", "camion;en service", []string{"R1"}},
		{"matches quantity text", "10", []string{"R3"}},
		{"no match", "pompe", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, viewIDs(Recompute(sample(), tt.filter, DefaultSort())))
		})
	}
}

func TestRecompute_FilterIsCommutativeAndIdempotent(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"camion", "en service"},
		{"échelle", "10"},
		{"r", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.a+";"+tt.b, func(t *testing.T) {
			ab := Recompute(sample(), tt.a+";"+tt.b, DefaultSort())
			ba := Recompute(sample(), tt.b+";"+tt.a, DefaultSort())
			assert.Equal(t, viewIDs(ab), viewIDs(ba))

			twice := Recompute(ab, tt.a+";"+tt.b, DefaultSort())
			assert.Equal(t, viewIDs(ab), viewIDs(twice))

			// a repeated sub-filter narrows nothing further
			assert.Equal(t, viewIDs(ab), viewIDs(Recompute(sample(), tt.a+";"+tt.b+";"+tt.a, DefaultSort())))
		})
	}
}

func TestApply_DescendingReversesAscending(t *testing.T) {
	for _, key := range []string{KeyID, KeyQuantity} {
		t.Run(key, func(t *testing.T) {
			asc := Recompute(sample(), "", Sort{Key: key, Direction: Ascending})
			desc := Recompute(sample(), "", Sort{Key: key, Direction: Descending})

			reversed := viewIDs(asc)
			for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
				reversed[i], reversed[j] = reversed[j], reversed[i]
			}
			assert.Equal(t, reversed, viewIDs(desc))
		})
	}
}

func TestRecompute_DoesNotModifyInput(t *testing.T) {
	records := sample()
	Recompute(records, "", Sort{Key: KeyQuantity, Direction: Descending})
	assert.Equal(t, []string{"R1", "R2", "R3", "R4", "R5"}, viewIDs(records))
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		sort Sort
		want []string
	}{
		{"quantity numeric ascending", Sort{KeyQuantity, Ascending}, []string{"R2", "R4", "R1", "R5", "R3"}},
		{"quantity numeric descending", Sort{KeyQuantity, Descending}, []string{"R3", "R5", "R1", "R4", "R2"}},
		// accents and case sort with their base letter; ties keep insertion order
		{"type ascending", Sort{KeyType, Ascending}, []string{"R1", "R2", "R4", "R3", "R5"}},
		{"status descending", Sort{KeyStatus, Descending}, []string{"R1", "R3", "R5", "R2", "R4"}},
		{"empty sort means id", Sort{}, []string{"R1", "R2", "R3", "R4", "R5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := sample()
			Apply(view, tt.sort)
			assert.Equal(t, tt.want, viewIDs(view))
		})
	}
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSort(), s)

	s, err = ParseSort("quantite", "DESC")
	require.NoError(t, err)
	assert.Equal(t, Sort{Key: KeyQuantity, Direction: Descending}, s)

	_, err = ParseSort("created", "")
	assert.Error(t, err)

	_, err = ParseSort("id", "up")
	assert.Error(t, err)
}

func TestSort_Toggle(t *testing.T) {
	s := DefaultSort()

	s = s.Toggle(KeyID)
	assert.Equal(t, Sort{KeyID, Descending}, s)
	s = s.Toggle(KeyID)
	assert.Equal(t, Sort{KeyID, Ascending}, s)

	s = Sort{KeyID, Descending}.Toggle(KeyType)
	assert.Equal(t, Sort{KeyType, Ascending}, s)
}

func TestMatches_Timestamps(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	r := model.Record{ID: "R1", CreatedAt: time.Date(2024, 3, 1, 11, 0, 0, 0, paris)}

	assert.True(t, Matches(r, ParseFilter("2024-03-01")))
	assert.True(t, Matches(r, ParseFilter("2024-03-01T10:00:00.000Z")))
	assert.False(t, Matches(r, ParseFilter("11:00:00")))
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, model.Stats{Total: 5, Active: 3, Undefined: 1}, ComputeStats(sample()))
	assert.Equal(t, model.Stats{}, ComputeStats(nil))
}
