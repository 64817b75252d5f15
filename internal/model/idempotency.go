// internal/model/idempotency.go
package model

import "time"

const (
    IdempotencyInProgress = "in_progress"
    IdempotencyProcessed  = "processed"
)

// IdempotencyRecord collapses duplicate webhook deliveries. A row is
// claimed before processing and either finalized with a digest or
// deleted so the provider's retry can re-attempt.
type IdempotencyRecord struct {
    EventID   string    `db:"event_id" json:"event_id"`
    Status    string    `db:"status" json:"status"`
    Digest    string    `db:"digest" json:"digest"`
    CreatedAt time.Time `db:"created_at" json:"created_at"`
    UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
