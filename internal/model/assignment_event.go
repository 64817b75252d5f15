// internal/model/assignment_event.go
package model

import "time"

// AssignmentEvent is an append-only audit record of ownership changes.
type AssignmentEvent struct {
    ID             string    `db:"id" json:"id"`
    CustomerID     string    `db:"customer_id" json:"customer_id"`
    PrevAssigneeID *string   `db:"prev_assignee_id" json:"prev_assignee_id,omitempty"`
    NewAssigneeID  *string   `db:"new_assignee_id" json:"new_assignee_id,omitempty"`
    ActorID        *string   `db:"actor_id" json:"actor_id,omitempty"` // nil for provider-originated changes
    Reason         string    `db:"reason" json:"reason"`
    CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
