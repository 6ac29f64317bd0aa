// Package clients stores the client (customer) records an agency
// manages. Every query is scoped to an agency; there is no cross-tenant
// read path.
package clients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the client does not exist within the agency
var ErrNotFound = errors.New("client not found")

// Client is a customer account managed by an agency
type Client struct {
	ID             string    `json:"id"`
	AgencyID       string    `json:"agency_id"`
	Name           string    `json:"name"`
	ContactEmail   string    `json:"contact_email,omitempty"`
	PipelineStage  string    `json:"pipeline_stage"`
	SlackChannelID string    `json:"slack_channel_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store persists client records
type Store interface {
	GetClient(ctx context.Context, agencyID, clientID string) (*Client, error)
	ListClients(ctx context.Context, agencyID string) ([]Client, error)
	CreateClient(ctx context.Context, client *Client) error
	UpdateClient(ctx context.Context, client *Client) error
	DeleteClient(ctx context.Context, agencyID, clientID string) error
}

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed client store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetClient loads a client by id within an agency
func (s *PostgresStore) GetClient(ctx context.Context, agencyID, clientID string) (*Client, error) {
	query := `
		SELECT id, agency_id, name, contact_email, pipeline_stage, slack_channel_id, created_at, updated_at
		FROM clients
		WHERE id = $1 AND agency_id = $2
	`

	var client Client
	var contactEmail, slackChannelID sql.NullString
	err := s.db.QueryRowContext(ctx, query, clientID, agencyID).Scan(
		&client.ID,
		&client.AgencyID,
		&client.Name,
		&contactEmail,
		&client.PipelineStage,
		&slackChannelID,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	client.ContactEmail = contactEmail.String
	client.SlackChannelID = slackChannelID.String
	return &client, nil
}

// ListClients returns every client in an agency
func (s *PostgresStore) ListClients(ctx context.Context, agencyID string) ([]Client, error) {
	query := `
		SELECT id, agency_id, name, contact_email, pipeline_stage, slack_channel_id, created_at, updated_at
		FROM clients
		WHERE agency_id = $1
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var client Client
		var contactEmail, slackChannelID sql.NullString
		if err := rows.Scan(
			&client.ID,
			&client.AgencyID,
			&client.Name,
			&contactEmail,
			&client.PipelineStage,
			&slackChannelID,
			&client.CreatedAt,
			&client.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		client.ContactEmail = contactEmail.String
		client.SlackChannelID = slackChannelID.String
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

// CreateClient inserts a new client and fills in generated fields
func (s *PostgresStore) CreateClient(ctx context.Context, client *Client) error {
	if client.Name == "" {
		return fmt.Errorf("client name is required")
	}
	if client.PipelineStage == "" {
		client.PipelineStage = "lead"
	}

	query := `
		INSERT INTO clients (agency_id, name, contact_email, pipeline_stage, slack_channel_id)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''))
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		client.AgencyID,
		client.Name,
		client.ContactEmail,
		client.PipelineStage,
		client.SlackChannelID,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// UpdateClient updates a client's mutable fields within its agency
func (s *PostgresStore) UpdateClient(ctx context.Context, client *Client) error {
	query := `
		UPDATE clients
		SET name = $3, contact_email = NULLIF($4, ''), pipeline_stage = $5, slack_channel_id = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1 AND agency_id = $2
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		client.ID,
		client.AgencyID,
		client.Name,
		client.ContactEmail,
		client.PipelineStage,
		client.SlackChannelID,
	).Scan(&client.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return nil
}

// DeleteClient removes a client within its agency
func (s *PostgresStore) DeleteClient(ctx context.Context, agencyID, clientID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM clients WHERE id = $1 AND agency_id = $2`,
		clientID, agencyID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
