package history

import (
	"strconv"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"materiel-inventory-api/internal/model"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// tick returns a clock advancing one second per call.
func tick() func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestLog_Append(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	l := NewLog(WithClock(func() time.Time { return base }), WithActor("Caserne"), WithLocation(paris))

	record := model.Record{ID: "R1", Type: "Camion"}
	entry, err := l.Append(model.ActionCreate, "R1", nil, &record)
	require.NoError(t, err)

	_, err = uuid.Parse(string(entry.EntryID))
	assert.NoError(t, err)
	assert.Equal(t, "Caserne", entry.Actor)
	assert.Equal(t, "01/03/2024 11:00:00", entry.DisplayDate)
	assert.Nil(t, entry.Details.Before)

	// snapshots are copies
	record.Type = "changed"
	got, err := l.Get(entry.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "Camion", got.Details.After.Type)
}

func TestLog_AppendRejectsUnknownAction(t *testing.T) {
	l := NewLog()

	_, err := l.Append("vendre", "R1", nil, nil)
	assert.Error(t, err)
	assert.Zero(t, l.Len())
}

func TestLog_Eviction(t *testing.T) {
	l := NewLog(WithMaxEntries(3), WithClock(tick()))

	for i := 1; i <= 5; i++ {
		_, err := l.Append(model.ActionCreate, "R"+strconv.Itoa(i), nil, &model.Record{})
		require.NoError(t, err)
	}

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "R3", entries[0].RecordID)
	assert.Equal(t, "R5", entries[2].RecordID)
}

func TestLog_Chronological(t *testing.T) {
	same := func() time.Time { return base }
	l := NewLog(WithClock(same))
	for _, id := range []string{"A", "B"} {
		_, err := l.Append(model.ActionCreate, id, nil, &model.Record{ID: id})
		require.NoError(t, err)
	}
	l.now = func() time.Time { return base.Add(time.Minute) }
	_, err := l.Append(model.ActionDelete, "A", &model.Record{ID: "A"}, nil)
	require.NoError(t, err)

	recordIDs := func(entries []model.HistoryEntry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.RecordID + ":" + string(e.Action)
		}
		return out
	}

	assert.Equal(t, []string{"A:supprimer", "A:ajouter", "B:ajouter"}, recordIDs(l.Chronological(NewestFirst)))
	assert.Equal(t, []string{"A:ajouter", "B:ajouter", "A:supprimer"}, recordIDs(l.Chronological(OldestFirst)))
}

func TestLog_GetUnknown(t *testing.T) {
	_, err := NewLog().Get("missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestLog_Replace(t *testing.T) {
	l := NewLog(WithMaxEntries(2))
	l.Replace([]model.HistoryEntry{{EntryID: "1"}, {EntryID: "2"}, {EntryID: "3"}})

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, model.EntryID("2"), entries[0].EntryID)
}

func TestParseOrder(t *testing.T) {
	order, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, NewestFirst, order)

	order, err = ParseOrder(" ASC ")
	require.NoError(t, err)
	assert.Equal(t, OldestFirst, order)

	_, err = ParseOrder("sideways")
	assert.Error(t, err)
}

func TestDiffAndSummary(t *testing.T) {
	before := &model.Record{ID: "R1", Type: "Camion", Model: "FPT", Quantity: 1, Status: "En service"}
	after := &model.Record{ID: "R1", Type: "Camion", Model: "FPT", Quantity: 3, Status: "", Location: "Garage"}

	changes := Diff(before, after)
	assert.Equal(t, []Change{
		{Field: "quantite", Old: "1", New: "3"},
		{Field: "statut", Old: "En service", New: ""},
		{Field: "lieu", Old: "", New: "Garage"},
	}, changes)
	assert.Equal(t, []string{"quantite: 1 → 3", "statut: En service → vide", "lieu: vide → Garage"}, Describe(before, after))

	assert.Empty(t, Diff(before, before))

	tests := []struct {
		name  string
		entry model.HistoryEntry
		want  string
	}{
		{
			name:  "create",
			entry: model.HistoryEntry{Action: model.ActionCreate, Details: model.Snapshots{After: before}},
			want:  "Nouveau: Camion - FPT",
		},
		{
			name:  "delete without model",
			entry: model.HistoryEntry{Action: model.ActionDelete, Details: model.Snapshots{Before: &model.Record{Type: "Lance"}}},
			want:  "Supprimé: Lance - N/A",
		},
		{
			name:  "update",
			entry: model.HistoryEntry{Action: model.ActionUpdate, Details: model.Snapshots{Before: before, After: after}},
			want:  "quantite: 1 → 3; statut: En service → vide; lieu: vide → Garage",
		},
		{
			name:  "missing snapshot",
			entry: model.HistoryEntry{Action: model.ActionUpdate},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.entry))
		})
	}
}
