package repository

import (
    "database/sql"
    "time"

    "github.com/google/uuid"

    "github.com/unclebandit/relaydesk-backend/internal/model"
)

type NotificationRepositoryInterface interface {
    Create(n *model.Notification) (bool, error)
    ListByRecipient(recipientID string, unreadOnly bool, offset, limit int) ([]*model.Notification, error)
    MarkRead(id, recipientID string) error
}

type NotificationRepository struct {
    DB *sql.DB
}

// Create inserts one notification per (event, recipient). Re-delivery of
// an upstream event hits the unique constraint and reports created=false
// instead of duplicating the row.
func (r *NotificationRepository) Create(n *model.Notification) (bool, error) {
    if n.ID == "" {
        n.ID = uuid.NewString()
    }
    n.CreatedAt = time.Now()

    query := `
        INSERT INTO notifications (id, recipient_id, kind, event_id, customer_id, payload_ref, read, created_at)
        VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, FALSE, $7)
        ON CONFLICT (event_id, recipient_id) DO NOTHING
    `
    res, err := r.DB.Exec(query, n.ID, n.RecipientID, n.Kind, n.EventID, n.CustomerID, n.PayloadRef, n.CreatedAt)
    if err != nil {
        return false, err
    }
    rows, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return rows > 0, nil
}

func (r *NotificationRepository) ListByRecipient(recipientID string, unreadOnly bool, offset, limit int) ([]*model.Notification, error) {
    query := `
        SELECT id, recipient_id, kind, event_id, COALESCE(customer_id::text, ''), payload_ref, read, created_at
        FROM notifications WHERE recipient_id=$1
    `
    if unreadOnly {
        query += ` AND NOT read`
    }
    query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

    rows, err := r.DB.Query(query, recipientID, limit, offset)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    notifications := []*model.Notification{}
    for rows.Next() {
        var n model.Notification
        if err := rows.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.EventID, &n.CustomerID, &n.PayloadRef, &n.Read, &n.CreatedAt); err != nil {
            return nil, err
        }
        notifications = append(notifications, &n)
    }
    return notifications, rows.Err()
}

// MarkRead is scoped to the recipient so users cannot ack each other's rows.
func (r *NotificationRepository) MarkRead(id, recipientID string) error {
    query := `UPDATE notifications SET read=TRUE WHERE id=$1 AND recipient_id=$2`
    res, err := r.DB.Exec(query, id, recipientID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return sql.ErrNoRows
    }
    return nil
}

var _ NotificationRepositoryInterface = (*NotificationRepository)(nil)
