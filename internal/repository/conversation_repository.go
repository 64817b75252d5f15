package repository

import (
    "database/sql"

    "github.com/google/uuid"

    appErrors "github.com/unclebandit/relaydesk-backend/internal/errors"
    "github.com/unclebandit/relaydesk-backend/internal/model"
)

type ConversationRepositoryInterface interface {
    GetOrCreateActive(customerID string) (*model.Conversation, error)
    GetByID(id string) (*model.Conversation, error)
    Close(id string) error
}

type ConversationRepository struct {
    DB *sql.DB
}

// GetOrCreateActive relies on the partial unique index over
// (customer_id) WHERE status='active': at most one active conversation
// per customer, even under concurrent first-contact webhooks.
func (r *ConversationRepository) GetOrCreateActive(customerID string) (*model.Conversation, error) {
    query := `
        INSERT INTO conversations (id, customer_id, status, created_at, updated_at)
        VALUES ($1, $2, 'active', NOW(), NOW())
        ON CONFLICT (customer_id) WHERE status = 'active' DO NOTHING
        RETURNING id, customer_id, status, created_at, updated_at
    `
    var c model.Conversation
    err := r.DB.QueryRow(query, uuid.NewString(), customerID).Scan(
        &c.ID, &c.CustomerID, &c.Status, &c.CreatedAt, &c.UpdatedAt,
    )
    if err == nil {
        return &c, nil
    }
    if err != sql.ErrNoRows {
        return nil, err
    }

    query = `
        SELECT id, customer_id, status, created_at, updated_at
        FROM conversations WHERE customer_id=$1 AND status='active'
    `
    err = r.DB.QueryRow(query, customerID).Scan(&c.ID, &c.CustomerID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
    if err != nil {
        return nil, err
    }
    return &c, nil
}

func (r *ConversationRepository) GetByID(id string) (*model.Conversation, error) {
    query := `
        SELECT id, customer_id, status, created_at, updated_at
        FROM conversations WHERE id=$1
    `
    var c model.Conversation
    err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.CustomerID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewConversationNotFound(id)
        }
        return nil, err
    }
    return &c, nil
}

// Close ends a conversation; administrative action, outside the webhook path.
func (r *ConversationRepository) Close(id string) error {
    query := `UPDATE conversations SET status='closed', updated_at=NOW() WHERE id=$1`
    _, err := r.DB.Exec(query, id)
    return err
}

var _ ConversationRepositoryInterface = (*ConversationRepository)(nil)
