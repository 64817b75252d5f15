// internal/service/actor.go
package service

import "github.com/unclebandit/relaydesk-backend/internal/model"

// Actor is the verified identity behind a request. Verification happens
// upstream (auth is an external collaborator); the relay trusts the role
// it is handed. System is set for provider-originated changes, which
// carry no user.
type Actor struct {
    UserID string
    Role   string
    System bool
}

func SystemActor() Actor {
    return Actor{System: true}
}

// CanManageAssignments gates every assignment transition.
func (a Actor) CanManageAssignments() bool {
    return a.System || a.Role == model.RoleManager || a.Role == model.RoleAdmin
}
