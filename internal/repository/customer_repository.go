package repository

import (
    "database/sql"
    "fmt"
    "time"

    "github.com/google/uuid"

    appErrors "github.com/unclebandit/relaydesk-backend/internal/errors"
    "github.com/unclebandit/relaydesk-backend/internal/model"
)

type CustomerRepositoryInterface interface {
    GetOrCreateByPhone(phone, name string) (*model.Customer, bool, error)
    GetByID(id string) (*model.Customer, error)
    GetByPhone(phone string) (*model.Customer, error)
    UpdateAssignment(customerID string, prevAssignee, newAssignee *string) error
    TouchLastMessage(customerID string, at time.Time) error
    SetNeedsResync(customerID string, flag bool) error
    ListNeedsResync(limit int) ([]*model.Customer, error)
    List(status string, offset, limit int) ([]*model.Customer, int, error)
}

type CustomerRepository struct {
    DB *sql.DB
}

const customerColumns = `id, phone, name, status, assigned_user_id, needs_resync, first_contact_at, last_message_at, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*model.Customer, error) {
    var c model.Customer
    err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.Status, &c.AssignedUserID,
        &c.NeedsResync, &c.FirstContactAt, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
    if err != nil {
        return nil, err
    }
    return &c, nil
}

// GetOrCreateByPhone is the single creation path for customers. The
// unique constraint on phone closes the race between concurrent
// first-contact webhooks: the loser of the insert falls through to the
// select and both callers see the same row.
func (r *CustomerRepository) GetOrCreateByPhone(phone, name string) (*model.Customer, bool, error) {
    query := `
        INSERT INTO customers (id, phone, name, status, first_contact_at, created_at, updated_at)
        VALUES ($1, $2, $3, 'unassigned', NOW(), NOW(), NOW())
        ON CONFLICT (phone) DO NOTHING
        RETURNING ` + customerColumns
    c, err := scanCustomer(r.DB.QueryRow(query, uuid.NewString(), phone, name))
    if err == nil {
        return c, true, nil
    }
    if err != sql.ErrNoRows {
        return nil, false, err
    }

    c, err = r.GetByPhone(phone)
    if err != nil {
        return nil, false, err
    }
    return c, false, nil
}

func (r *CustomerRepository) GetByID(id string) (*model.Customer, error) {
    query := `SELECT ` + customerColumns + ` FROM customers WHERE id=$1`
    c, err := scanCustomer(r.DB.QueryRow(query, id))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewCustomerNotFound(id)
        }
        return nil, err
    }
    return c, nil
}

func (r *CustomerRepository) GetByPhone(phone string) (*model.Customer, error) {
    query := `SELECT ` + customerColumns + ` FROM customers WHERE phone=$1`
    c, err := scanCustomer(r.DB.QueryRow(query, phone))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewCustomerNotFound(phone)
        }
        return nil, err
    }
    return c, nil
}

// UpdateAssignment is a compare-and-set on the previous assignee.
// Status is derived from the new assignee so the assigned/assignee
// invariant cannot diverge. Zero rows means another writer won the race.
func (r *CustomerRepository) UpdateAssignment(customerID string, prevAssignee, newAssignee *string) error {
    status := model.CustomerStatusUnassigned
    if newAssignee != nil {
        status = model.CustomerStatusAssigned
    }
    query := `
        UPDATE customers SET assigned_user_id=$1, status=$2, updated_at=NOW()
        WHERE id=$3 AND assigned_user_id IS NOT DISTINCT FROM $4
    `
    res, err := r.DB.Exec(query, newAssignee, status, customerID, prevAssignee)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        if _, err := r.GetByID(customerID); err != nil {
            return err
        }
        return appErrors.ErrStoreConflict
    }
    return nil
}

func (r *CustomerRepository) TouchLastMessage(customerID string, at time.Time) error {
    query := `UPDATE customers SET last_message_at=$1, updated_at=NOW() WHERE id=$2`
    _, err := r.DB.Exec(query, at, customerID)
    return err
}

func (r *CustomerRepository) SetNeedsResync(customerID string, flag bool) error {
    query := `UPDATE customers SET needs_resync=$1, updated_at=NOW() WHERE id=$2`
    _, err := r.DB.Exec(query, flag, customerID)
    return err
}

func (r *CustomerRepository) ListNeedsResync(limit int) ([]*model.Customer, error) {
    query := `SELECT ` + customerColumns + ` FROM customers WHERE needs_resync ORDER BY updated_at ASC LIMIT $1`
    rows, err := r.DB.Query(query, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    customers := []*model.Customer{}
    for rows.Next() {
        c, err := scanCustomer(rows)
        if err != nil {
            return nil, err
        }
        customers = append(customers, c)
    }
    return customers, rows.Err()
}

func (r *CustomerRepository) List(status string, offset, limit int) ([]*model.Customer, int, error) {
    customers := []*model.Customer{}
    query := `SELECT ` + customerColumns + ` FROM customers WHERE 1=1`
    args := []interface{}{}
    argPos := 1

    if status != "" {
        query += fmt.Sprintf(" AND status=$%d", argPos)
        args = append(args, status)
        argPos++
    }

    query += fmt.Sprintf(" ORDER BY last_message_at DESC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
    args = append(args, limit, offset)

    rows, err := r.DB.Query(query, args...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    for rows.Next() {
        c, err := scanCustomer(rows)
        if err != nil {
            return nil, 0, err
        }
        customers = append(customers, c)
    }
    if err := rows.Err(); err != nil {
        return nil, 0, err
    }

    countQuery := `SELECT COUNT(*) FROM customers WHERE 1=1`
    argsCount := []interface{}{}
    if status != "" {
        countQuery += " AND status=$1"
        argsCount = append(argsCount, status)
    }

    var total int
    if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
        return nil, 0, err
    }

    return customers, total, nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
