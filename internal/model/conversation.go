// internal/model/conversation.go
package model

import "time"

const (
    ConversationStatusActive = "active"
    ConversationStatusClosed = "closed"
)

type Conversation struct {
    ID         string    `db:"id" json:"id"`
    CustomerID string    `db:"customer_id" json:"customer_id"`
    Status     string    `db:"status" json:"status"`
    CreatedAt  time.Time `db:"created_at" json:"created_at"`
    UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
