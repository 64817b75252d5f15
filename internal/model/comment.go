// internal/model/comment.go
package model

import "time"

// InternalComment is never forwarded to the customer-facing channel.
type InternalComment struct {
    ID             string    `db:"id" json:"id"`
    ConversationID string    `db:"conversation_id" json:"conversation_id"`
    AuthorID       string    `db:"author_id" json:"author_id"`
    Content        string    `db:"content" json:"content"`
    TaggedUserIDs  []string  `db:"tagged_user_ids" json:"tagged_user_ids"`
    CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
