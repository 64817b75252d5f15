package repository

import (
    "database/sql"
    "fmt"

    "github.com/unclebandit/relaydesk-backend/internal/model"
)

type IdempotencyRepositoryInterface interface {
    Claim(eventID string) (claimed bool, status string, err error)
    MarkProcessed(eventID, digest string) error
    Release(eventID string) error
}

type IdempotencyRepository struct {
    DB *sql.DB
}

// Claim atomically marks an event in-progress. The insert either wins
// (first sight, claimed=true) or conflicts with an existing row, in
// which case the existing status is reported and no side effects may be
// applied by the caller. A single statement closes the check-then-act
// race between concurrent deliveries of the same event.
func (r *IdempotencyRepository) Claim(eventID string) (bool, string, error) {
    insert := `
        INSERT INTO idempotency_records (event_id, status, created_at, updated_at)
        VALUES ($1, 'in_progress', NOW(), NOW())
        ON CONFLICT (event_id) DO NOTHING
        RETURNING status
    `
    // A concurrent Release between our failed insert and the status
    // read can make the row vanish; re-claim in that case.
    for attempt := 0; attempt < 3; attempt++ {
        var status string
        err := r.DB.QueryRow(insert, eventID).Scan(&status)
        if err == nil {
            return true, status, nil
        }
        if err != sql.ErrNoRows {
            return false, "", err
        }

        err = r.DB.QueryRow(`SELECT status FROM idempotency_records WHERE event_id=$1`, eventID).Scan(&status)
        if err == nil {
            return false, status, nil
        }
        if err != sql.ErrNoRows {
            return false, "", err
        }
    }
    return false, model.IdempotencyInProgress, nil
}

func (r *IdempotencyRepository) MarkProcessed(eventID, digest string) error {
    query := `UPDATE idempotency_records SET status='processed', digest=$1, updated_at=NOW() WHERE event_id=$2`
    res, err := r.DB.Exec(query, digest, eventID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return fmt.Errorf("idempotency record %s disappeared before finalize", eventID)
    }
    return nil
}

// Release rolls the claim back to absent so the provider's retry can
// re-attempt after a transient processing failure.
func (r *IdempotencyRepository) Release(eventID string) error {
    _, err := r.DB.Exec(`DELETE FROM idempotency_records WHERE event_id=$1 AND status='in_progress'`, eventID)
    return err
}

var _ IdempotencyRepositoryInterface = (*IdempotencyRepository)(nil)
