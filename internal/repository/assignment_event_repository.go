package repository

import (
    "database/sql"
    "time"

    "github.com/google/uuid"

    "github.com/unclebandit/relaydesk-backend/internal/model"
)

type AssignmentEventRepositoryInterface interface {
    Create(ev *model.AssignmentEvent) error
    ListByCustomer(customerID string) ([]*model.AssignmentEvent, error)
}

type AssignmentEventRepository struct {
    DB *sql.DB
}

func (r *AssignmentEventRepository) Create(ev *model.AssignmentEvent) error {
    if ev.ID == "" {
        ev.ID = uuid.NewString()
    }
    ev.CreatedAt = time.Now()

    query := `
        INSERT INTO assignment_events (id, customer_id, prev_assignee_id, new_assignee_id, actor_id, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
    _, err := r.DB.Exec(query, ev.ID, ev.CustomerID, ev.PrevAssigneeID, ev.NewAssigneeID, ev.ActorID, ev.Reason, ev.CreatedAt)
    return err
}

func (r *AssignmentEventRepository) ListByCustomer(customerID string) ([]*model.AssignmentEvent, error) {
    query := `
        SELECT id, customer_id, prev_assignee_id, new_assignee_id, actor_id, reason, created_at
        FROM assignment_events WHERE customer_id=$1 ORDER BY created_at DESC
    `
    rows, err := r.DB.Query(query, customerID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    events := []*model.AssignmentEvent{}
    for rows.Next() {
        var ev model.AssignmentEvent
        if err := rows.Scan(&ev.ID, &ev.CustomerID, &ev.PrevAssigneeID, &ev.NewAssigneeID, &ev.ActorID, &ev.Reason, &ev.CreatedAt); err != nil {
            return nil, err
        }
        events = append(events, &ev)
    }
    return events, rows.Err()
}

var _ AssignmentEventRepositoryInterface = (*AssignmentEventRepository)(nil)
