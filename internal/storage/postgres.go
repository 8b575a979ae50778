package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"materiel-inventory-api/internal/model"
)

// undefinedTable is the PostgreSQL error code for a missing relation.
const undefinedTable = "42P01"

const schema = `
CREATE TABLE IF NOT EXISTS materiels (
	position     INTEGER NOT NULL,
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL DEFAULT '',
	usage        TEXT NOT NULL DEFAULT '',
	modele       TEXT NOT NULL DEFAULT '',
	marque       TEXT NOT NULL DEFAULT '',
	numero_serie TEXT NOT NULL DEFAULT '',
	quantite     INTEGER NOT NULL DEFAULT 1,
	statut       TEXT NOT NULL DEFAULT '',
	lieu         TEXT NOT NULL DEFAULT '',
	affectation  TEXT NOT NULL DEFAULT '',
	created      TIMESTAMPTZ NOT NULL,
	modified     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS historique (
	position     INTEGER NOT NULL,
	id           TEXT PRIMARY KEY,
	timestamp    TIMESTAMPTZ NOT NULL,
	date_lisible TEXT NOT NULL,
	action       TEXT NOT NULL,
	materiel_id  TEXT NOT NULL,
	utilisateur  TEXT NOT NULL,
	ancien       JSONB,
	nouveau      JSONB
);`

// PostgresStorage keeps both collections in PostgreSQL tables. Each save
// replaces a table's contents inside one transaction.
type PostgresStorage struct {
	DB      *sql.DB
	Timeout time.Duration
}

// NewPostgresStorage creates a PostgresStorage over an open connection pool.
func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{DB: db, Timeout: 10 * time.Second}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// LoadRecords reads all records in their stored order.
func (s *PostgresStorage) LoadRecords(ctx context.Context) ([]model.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	query := `
		SELECT id, type, usage, modele, marque, numero_serie, quantite, statut, lieu, affectation, created, modified
		FROM materiels
		ORDER BY position`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapQueryError("records", err)
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		var r model.Record
		if err := rows.Scan(&r.ID, &r.Type, &r.Usage, &r.Model, &r.Brand, &r.SerialNumber,
			&r.Quantity, &r.Status, &r.Location, &r.Assignment, &r.CreatedAt, &r.ModifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// LoadHistory reads all history entries in their stored order.
func (s *PostgresStorage) LoadHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	query := `
		SELECT id, timestamp, date_lisible, action, materiel_id, utilisateur, ancien, nouveau
		FROM historique
		ORDER BY position`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapQueryError("history", err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var (
			e             model.HistoryEntry
			id            string
			action        string
			before, after []byte
		)
		if err := rows.Scan(&id, &e.Timestamp, &e.DisplayDate, &action, &e.RecordID, &e.Actor, &before, &after); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.EntryID = model.EntryID(id)
		e.Action = model.Action(action)

		if e.Details.Before, err = decodeSnapshot(before); err != nil {
			return nil, fmt.Errorf("history entry %s: %w", id, err)
		}
		if e.Details.After, err = decodeSnapshot(after); err != nil {
			return nil, fmt.Errorf("history entry %s: %w", id, err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// SaveRecords replaces the stored records.
func (s *PostgresStorage) SaveRecords(ctx context.Context, records []model.Record) error {
	insert := `
		INSERT INTO materiels (position, id, type, usage, modele, marque, numero_serie, quantite, statut, lieu, affectation, created, modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	return s.replace(ctx, "materiels", insert, len(records), func(i int) ([]interface{}, error) {
		r := records[i]
		return []interface{}{i, r.ID, r.Type, r.Usage, r.Model, r.Brand, r.SerialNumber,
			r.Quantity, r.Status, r.Location, r.Assignment, r.CreatedAt, r.ModifiedAt}, nil
	})
}

// SaveHistory replaces the stored history.
func (s *PostgresStorage) SaveHistory(ctx context.Context, entries []model.HistoryEntry) error {
	insert := `
		INSERT INTO historique (position, id, timestamp, date_lisible, action, materiel_id, utilisateur, ancien, nouveau)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	return s.replace(ctx, "historique", insert, len(entries), func(i int) ([]interface{}, error) {
		e := entries[i]
		before, err := encodeSnapshot(e.Details.Before)
		if err != nil {
			return nil, err
		}
		after, err := encodeSnapshot(e.Details.After)
		if err != nil {
			return nil, err
		}
		return []interface{}{i, string(e.EntryID), e.Timestamp, e.DisplayDate, string(e.Action),
			e.RecordID, e.Actor, before, after}, nil
	})
}

func (s *PostgresStorage) replace(ctx context.Context, table, insert string, n int, args func(int) ([]interface{}, error)) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		values, argErr := args(i)
		if argErr != nil {
			return argErr
		}
		if _, err = stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return nil
}

func wrapQueryError(what string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s table missing", ErrNoData, what)
	}
	return fmt.Errorf("failed to query %s: %w", what, err)
}

func encodeSnapshot(r *model.Record) (interface{}, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot of %s: %w", r.ID, err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*model.Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var r model.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &r, nil
}
