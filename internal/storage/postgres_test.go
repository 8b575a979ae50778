package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"materiel-inventory-api/internal/model"
)

func setupTestDB(t testing.TB) (*sql.DB, sqlmock.Sqlmock, *PostgresStorage) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, NewPostgresStorage(db)
}

var recordColumns = []string{"id", "type", "usage", "modele", "marque", "numero_serie",
	"quantite", "statut", "lieu", "affectation", "created", "modified"}

func TestPostgresStorage_EnsureSchema(t *testing.T) {
	db, mock, st := setupTestDB(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS materiels")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, st.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_LoadRecords(t *testing.T) {
	db, mock, st := setupTestDB(t)
	defer db.Close()

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(recordColumns).
		AddRow("R2", "Camion", "", "FPT", "", "", 3, "En service", "", "", ts, ts).
		AddRow("R1", "Échelle", "", "", "", "", 0, "", "", "", ts, ts)
	mock.ExpectQuery(regexp.QuoteMeta("FROM materiels")).WillReturnRows(rows)

	records, err := st.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "R2", records[0].ID)
	assert.Equal(t, 3, records[0].Quantity)
	assert.Equal(t, 0, records[1].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_LoadMissingTable(t *testing.T) {
	db, mock, st := setupTestDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM materiels")).WillReturnError(&pq.Error{Code: undefinedTable})
	mock.ExpectQuery(regexp.QuoteMeta("FROM historique")).WillReturnError(errors.New("connection reset"))

	_, err := st.LoadRecords(context.Background())
	assert.ErrorIs(t, err, ErrNoData)

	_, err = st.LoadHistory(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_LoadHistory(t *testing.T) {
	db, mock, st := setupTestDB(t)
	defer db.Close()

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "timestamp", "date_lisible", "action", "materiel_id", "utilisateur", "ancien", "nouveau"}).
		AddRow("e1", ts, "01/03/2024 11:00:00", "modifier", "R1", "Web Interface",
			[]byte(`{"id":"R1","quantite":1}`), []byte(`{"id":"R1","quantite":4}`)).
		AddRow("e2", ts, "01/03/2024 11:00:00", "supprimer", "R1", "Web Interface",
			[]byte(`{"id":"R1","quantite":4}`), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM historique")).WillReturnRows(rows)

	entries, err := st.LoadHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionUpdate, entries[0].Action)
	assert.Equal(t, 4, entries[0].Details.After.Quantity)
	assert.Equal(t, model.EntryID("e2"), entries[1].EntryID)
	assert.Nil(t, entries[1].Details.After)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_SaveRecords(t *testing.T) {
	db, mock, st := setupTestDB(t)
	defer db.Close()

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []model.Record{
		{ID: "R1", Type: "Camion", Quantity: 2, CreatedAt: ts, ModifiedAt: ts},
		{ID: "R2", Type: "Lance", Quantity: 1, CreatedAt: ts, ModifiedAt: ts},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM materiels")).WillReturnResult(sqlmock.NewResult(0, 5))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO materiels"))
	for i, r := range records {
		prep.ExpectExec().
			WithArgs(i, r.ID, r.Type, "", "", "", "", r.Quantity, "", "", "", ts, ts).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	assert.NoError(t, st.SaveRecords(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_SaveRollsBackOnFailure(t *testing.T) {
	db, mock, st := setupTestDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM historique")).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO historique"))
	prep.ExpectExec().WillReturnError(errors.New("duplicate key value"))
	mock.ExpectRollback()

	after := model.Record{ID: "R1"}
	err := st.SaveHistory(context.Background(), []model.HistoryEntry{{
		EntryID: "e1",
		Action:  model.ActionCreate,
		Details: model.Snapshots{After: &after},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert into historique")
	assert.NoError(t, mock.ExpectationsWereMet())
}
