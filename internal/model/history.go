package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Action identifies the kind of mutation a history entry records. The values
// are the ones stored in existing history documents.
type Action string

const (
	ActionCreate Action = "ajouter"
	ActionUpdate Action = "modifier"
	ActionDelete Action = "supprimer"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// EntryID identifies a history entry. Older documents stored numeric ids, so
// both JSON numbers and strings decode into it.
type EntryID string

// UnmarshalJSON accepts a JSON string or number.
func (id *EntryID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EntryID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("history entry id must be a string or a number: %w", err)
	}
	*id = EntryID(n.String())
	return nil
}

// Snapshots holds the record state before and after a mutation.
type Snapshots struct {
	Before *Record `json:"ancien"`
	After  *Record `json:"nouveau"`
}

// HistoryEntry is an immutable audit record of one mutation.
type HistoryEntry struct {
	EntryID     EntryID   `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	DisplayDate string    `json:"date_lisible"`
	Action      Action    `json:"action"`
	RecordID    string    `json:"materiel_id"`
	Actor       string    `json:"utilisateur"`
	Details     Snapshots `json:"details"`
}

// HistoryDocument is the persisted layout of the history log.
type HistoryDocument struct {
	Historique        []HistoryEntry `json:"historique"`
	DerniereMiseAJour string         `json:"derniere_mise_a_jour"`
}
