// internal/model/user.go
package model

// User roles. Authorization itself happens upstream; the relay only
// needs the verified role to gate assignment changes and fanout.
const (
    RoleSalesperson = "salesperson"
    RoleManager     = "manager"
    RoleAdmin       = "admin"
)

type User struct {
    ID       string `db:"id" json:"id"`
    Email    string `db:"email" json:"email"`
    FullName string `db:"full_name" json:"full_name"`
    Role     string `db:"role" json:"role"`
    IsActive bool   `db:"is_active" json:"is_active"`
}
