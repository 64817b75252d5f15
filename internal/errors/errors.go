// internal/errors/errors.go
package appErrors

import (
    "errors"
    "fmt"
)

// ErrInvalidSignature is returned when a webhook body does not match its
// HMAC signature. Never retried.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrStoreConflict marks a lost compare-and-set race on customer state.
// Callers retry it transparently.
var ErrStoreConflict = errors.New("store conflict")

// ErrSchema wraps a malformed webhook payload
type ErrSchema struct {
    Reason string
}

func (e *ErrSchema) Error() string {
    return fmt.Sprintf("schema error: %s", e.Reason)
}

func NewSchemaError(reason string) error {
    return &ErrSchema{Reason: reason}
}

// ErrForbidden is an authorization rejection; no state change, no side effects.
type ErrForbidden struct {
    ActorID string
    Action  string
}

func (e *ErrForbidden) Error() string {
    return fmt.Sprintf("actor %s is not allowed to %s", e.ActorID, e.Action)
}

func NewForbidden(actorID, action string) error {
    return &ErrForbidden{ActorID: actorID, Action: action}
}

// ErrCustomerNotFound is a sentinel error
type ErrCustomerNotFound struct {
    CustomerID string
}

func (e *ErrCustomerNotFound) Error() string {
    return fmt.Sprintf("customer %s not found", e.CustomerID)
}

// Helper constructor
func NewCustomerNotFound(id string) error {
    return &ErrCustomerNotFound{CustomerID: id}
}

type ErrConversationNotFound struct {
    ConversationID string
}

func (e *ErrConversationNotFound) Error() string {
    return fmt.Sprintf("conversation %s not found", e.ConversationID)
}

func NewConversationNotFound(id string) error {
    return &ErrConversationNotFound{ConversationID: id}
}

type ErrUserNotFound struct {
    UserID string
}

func (e *ErrUserNotFound) Error() string {
    return fmt.Sprintf("user %s not found", e.UserID)
}

func NewUserNotFound(id string) error {
    return &ErrUserNotFound{UserID: id}
}

// IsRejection reports whether err is a caller fault (4xx class) rather
// than a transient processing failure worth a provider redelivery.
func IsRejection(err error) bool {
    var schemaErr *ErrSchema
    var forbidden *ErrForbidden
    var custNF *ErrCustomerNotFound
    var convNF *ErrConversationNotFound
    var userNF *ErrUserNotFound
    return errors.Is(err, ErrInvalidSignature) ||
        errors.As(err, &schemaErr) ||
        errors.As(err, &forbidden) ||
        errors.As(err, &custNF) ||
        errors.As(err, &convNF) ||
        errors.As(err, &userNF)
}
