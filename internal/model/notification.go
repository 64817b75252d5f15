// internal/model/notification.go
package model

import "time"

const (
    NotificationAssignment = "assignment"
    NotificationTag        = "tag"
    NotificationNewMessage = "new_message"
    NotificationUnassigned = "unassigned_customer"
)

type Notification struct {
    ID          string    `db:"id" json:"id"`
    RecipientID string    `db:"recipient_id" json:"recipient_id"`
    Kind        string    `db:"kind" json:"kind"`
    EventID     string    `db:"event_id" json:"event_id"`
    CustomerID  string    `db:"customer_id" json:"customer_id"`
    PayloadRef  string    `db:"payload_ref" json:"payload_ref"`
    Read        bool      `db:"read" json:"read"`
    CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
