package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func clientColumns() []string {
	return []string{"id", "agency_id", "name", "contact_email", "pipeline_stage", "slack_channel_id", "created_at", "updated_at"}
}

func TestPostgresStoreGetClient(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("full record", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, name, contact_email, pipeline_stage").
			WithArgs("client-1", "agency-1").
			WillReturnRows(sqlmock.NewRows(clientColumns()).
				AddRow("client-1", "agency-1", "Acme Coffee", "ops@acme.test", "active", "C0123", now, now))

		client, err := store.GetClient(ctx, "agency-1", "client-1")
		require.NoError(t, err)
		assert.Equal(t, "Acme Coffee", client.Name)
		assert.Equal(t, "ops@acme.test", client.ContactEmail)
		assert.Equal(t, "C0123", client.SlackChannelID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null optional columns", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, name, contact_email, pipeline_stage").
			WithArgs("client-1", "agency-1").
			WillReturnRows(sqlmock.NewRows(clientColumns()).
				AddRow("client-1", "agency-1", "Acme Coffee", nil, "lead", nil, now, now))

		client, err := store.GetClient(ctx, "agency-1", "client-1")
		require.NoError(t, err)
		assert.Empty(t, client.ContactEmail)
		assert.Empty(t, client.SlackChannelID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing client", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, name, contact_email, pipeline_stage").
			WithArgs("client-z", "agency-1").
			WillReturnRows(sqlmock.NewRows(clientColumns()))

		_, err := store.GetClient(ctx, "agency-1", "client-z")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, name, contact_email, pipeline_stage").
			WithArgs("client-1", "agency-1").
			WillReturnError(errors.New("connection refused"))

		_, err := store.GetClient(ctx, "agency-1", "client-1")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStoreListClients(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("scoped to the agency", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, name, contact_email, pipeline_stage").
			WithArgs("agency-1").
			WillReturnRows(sqlmock.NewRows(clientColumns()).
				AddRow("client-a", "agency-1", "Acme Coffee", nil, "active", nil, now, now).
				AddRow("client-b", "agency-1", "Blue Harbor", "hello@blueharbor.test", "lead", nil, now, now))

		clients, err := store.ListClients(ctx, "agency-1")
		require.NoError(t, err)
		require.Len(t, clients, 2)
		assert.Equal(t, "Acme Coffee", clients[0].Name)
		assert.Equal(t, "hello@blueharbor.test", clients[1].ContactEmail)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty agency", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, agency_id, name, contact_email, pipeline_stage").
			WithArgs("agency-2").
			WillReturnRows(sqlmock.NewRows(clientColumns()))

		clients, err := store.ListClients(ctx, "agency-2")
		require.NoError(t, err)
		assert.Empty(t, clients)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStoreCreateClient(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("fills generated fields and default stage", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("INSERT INTO clients").
			WithArgs("agency-1", "Acme Coffee", "", "lead", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow("client-1", now, now))

		client := &Client{AgencyID: "agency-1", Name: "Acme Coffee"}
		require.NoError(t, store.CreateClient(ctx, client))
		assert.Equal(t, "client-1", client.ID)
		assert.Equal(t, "lead", client.PipelineStage)
		assert.Equal(t, now, client.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty name rejected before the database", func(t *testing.T) {
		store, mock := newMockStore(t)

		err := store.CreateClient(ctx, &Client{AgencyID: "agency-1"})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStoreUpdateClient(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("updates within the agency", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("UPDATE clients").
			WithArgs("client-1", "agency-1", "Acme Roasters", "", "active", "").
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

		client := &Client{ID: "client-1", AgencyID: "agency-1", Name: "Acme Roasters", PipelineStage: "active"}
		require.NoError(t, store.UpdateClient(ctx, client))
		assert.Equal(t, now, client.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing client", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("UPDATE clients").
			WithArgs("client-z", "agency-1", "Ghost", "", "lead", "").
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

		err := store.UpdateClient(ctx, &Client{ID: "client-z", AgencyID: "agency-1", Name: "Ghost", PipelineStage: "lead"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStoreDeleteClient(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes within the agency", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM clients").
			WithArgs("client-1", "agency-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.DeleteClient(ctx, "agency-1", "client-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing client", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM clients").
			WithArgs("client-z", "agency-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.DeleteClient(ctx, "agency-1", "client-z")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
