// internal/model/customer.go
package model

import "time"

const (
    CustomerStatusUnassigned = "unassigned"
    CustomerStatusAssigned   = "assigned"
)

type Customer struct {
    ID             string     `db:"id" json:"id"`
    Phone          string     `db:"phone" json:"phone"` // E.164
    Name           string     `db:"name" json:"name"`
    Status         string     `db:"status" json:"status"`
    AssignedUserID *string    `db:"assigned_user_id" json:"assigned_user_id,omitempty"`
    NeedsResync    bool       `db:"needs_resync" json:"needs_resync"`
    FirstContactAt time.Time  `db:"first_contact_at" json:"first_contact_at"`
    LastMessageAt  *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
    CreatedAt      time.Time  `db:"created_at" json:"created_at"`
    UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAssigned reports whether the customer currently has an owner.
// Invariant: status == assigned iff assigned_user_id is set.
func (c *Customer) IsAssigned() bool {
    return c.Status == CustomerStatusAssigned && c.AssignedUserID != nil
}

func (c *Customer) DisplayName() string {
    if c.Name != "" {
        return c.Name
    }
    return c.Phone
}
