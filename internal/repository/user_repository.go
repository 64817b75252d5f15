package repository

import (
    "database/sql"

    "github.com/lib/pq"

    appErrors "github.com/unclebandit/relaydesk-backend/internal/errors"
    "github.com/unclebandit/relaydesk-backend/internal/model"
)

// UserRepositoryInterface is read-only: user lifecycle is owned by the
// authentication service, the relay only resolves recipients and roles.
type UserRepositoryInterface interface {
    GetByID(id string) (*model.User, error)
    GetByEmail(email string) (*model.User, error)
    ListByRoles(roles []string) ([]model.User, error)
}

type UserRepository struct {
    DB *sql.DB
}

func (r *UserRepository) GetByID(id string) (*model.User, error) {
    query := `SELECT id, email, full_name, role, is_active FROM users WHERE id=$1`
    var u model.User
    err := r.DB.QueryRow(query, id).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.IsActive)
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewUserNotFound(id)
        }
        return nil, err
    }
    return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
    query := `SELECT id, email, full_name, role, is_active FROM users WHERE email=$1`
    var u model.User
    err := r.DB.QueryRow(query, email).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.IsActive)
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewUserNotFound(email)
        }
        return nil, err
    }
    return &u, nil
}

func (r *UserRepository) ListByRoles(roles []string) ([]model.User, error) {
    query := `SELECT id, email, full_name, role, is_active FROM users WHERE role = ANY($1) AND is_active`
    rows, err := r.DB.Query(query, pq.Array(roles))
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    users := []model.User{}
    for rows.Next() {
        var u model.User
        if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.IsActive); err != nil {
            return nil, err
        }
        users = append(users, u)
    }
    return users, rows.Err()
}

var _ UserRepositoryInterface = (*UserRepository)(nil)
