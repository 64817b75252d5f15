// internal/model/message.go
package model

import "time"

const (
    SenderCustomer = "customer"
    SenderUser     = "user"
)

const (
    MessageTypeText  = "text"
    MessageTypeImage = "image"
    MessageTypeFile  = "file"
)

// Delivery statuses. Content is append-only; only the status transitions.
const (
    MessageStatusPending   = "pending"
    MessageStatusSent      = "sent"
    MessageStatusDelivered = "delivered"
    MessageStatusFailed    = "failed"
)

type Message struct {
    ID                string     `db:"id" json:"id"`
    ConversationID    string     `db:"conversation_id" json:"conversation_id"`
    SenderType        string     `db:"sender_type" json:"sender_type"`
    SenderUserID      *string    `db:"sender_user_id" json:"sender_user_id,omitempty"`
    SenderCustomerID  *string    `db:"sender_customer_id" json:"sender_customer_id,omitempty"`
    Type              string     `db:"type" json:"type"`
    Content           string     `db:"content" json:"content"`
    FileURL           string     `db:"file_url" json:"file_url,omitempty"`
    ProviderMessageID *string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
    Status            string     `db:"status" json:"status"`
    LastError         string     `db:"last_error" json:"last_error,omitempty"`
    ProviderTS        *time.Time `db:"provider_ts" json:"provider_ts,omitempty"` // display ordering only
    CreatedAt         time.Time  `db:"created_at" json:"created_at"`
    UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}
