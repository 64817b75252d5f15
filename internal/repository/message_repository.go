package repository

import (
    "database/sql"
    "time"

    "github.com/google/uuid"

    "github.com/unclebandit/relaydesk-backend/internal/model"
)

type MessageRepositoryInterface interface {
    Create(msg *model.Message) error
    GetByID(id string) (*model.Message, error)
    UpdateDeliveryStatus(id, status string, providerMessageID *string, lastError string) error
    ListByConversation(conversationID string, offset, limit int) ([]*model.Message, error)
}

type MessageRepository struct {
    DB *sql.DB
}

const messageColumns = `id, conversation_id, sender_type, sender_user_id, sender_customer_id, type, content, file_url, provider_message_id, status, last_error, provider_ts, created_at, updated_at`

func (r *MessageRepository) Create(msg *model.Message) error {
    if msg.ID == "" {
        msg.ID = uuid.NewString()
    }
    now := time.Now()
    msg.CreatedAt = now
    msg.UpdatedAt = now

    query := `
        INSERT INTO messages
        (id, conversation_id, sender_type, sender_user_id, sender_customer_id, type, content, file_url, provider_message_id, status, last_error, provider_ts, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `
    _, err := r.DB.Exec(query,
        msg.ID,
        msg.ConversationID,
        msg.SenderType,
        msg.SenderUserID,
        msg.SenderCustomerID,
        msg.Type,
        msg.Content,
        msg.FileURL,
        msg.ProviderMessageID,
        msg.Status,
        msg.LastError,
        msg.ProviderTS,
        msg.CreatedAt,
        msg.UpdatedAt,
    )
    return err
}

func (r *MessageRepository) GetByID(id string) (*model.Message, error) {
    query := `SELECT ` + messageColumns + ` FROM messages WHERE id=$1`
    var m model.Message
    err := r.DB.QueryRow(query, id).Scan(
        &m.ID, &m.ConversationID, &m.SenderType, &m.SenderUserID, &m.SenderCustomerID,
        &m.Type, &m.Content, &m.FileURL, &m.ProviderMessageID, &m.Status,
        &m.LastError, &m.ProviderTS, &m.CreatedAt, &m.UpdatedAt,
    )
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, nil
        }
        return nil, err
    }
    return &m, nil
}

// UpdateDeliveryStatus is the only mutation allowed on a persisted
// message. The dispatcher is its single caller for outbound messages.
func (r *MessageRepository) UpdateDeliveryStatus(id, status string, providerMessageID *string, lastError string) error {
    query := `
        UPDATE messages
        SET status=$1, provider_message_id=COALESCE($2, provider_message_id), last_error=$3, updated_at=NOW()
        WHERE id=$4
    `
    _, err := r.DB.Exec(query, status, providerMessageID, lastError, id)
    return err
}

func (r *MessageRepository) ListByConversation(conversationID string, offset, limit int) ([]*model.Message, error) {
    query := `SELECT ` + messageColumns + ` FROM messages
        WHERE conversation_id=$1
        ORDER BY COALESCE(provider_ts, created_at) ASC
        LIMIT $2 OFFSET $3`
    rows, err := r.DB.Query(query, conversationID, limit, offset)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    messages := []*model.Message{}
    for rows.Next() {
        var m model.Message
        if err := rows.Scan(
            &m.ID, &m.ConversationID, &m.SenderType, &m.SenderUserID, &m.SenderCustomerID,
            &m.Type, &m.Content, &m.FileURL, &m.ProviderMessageID, &m.Status,
            &m.LastError, &m.ProviderTS, &m.CreatedAt, &m.UpdatedAt,
        ); err != nil {
            return nil, err
        }
        messages = append(messages, &m)
    }
    return messages, rows.Err()
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
