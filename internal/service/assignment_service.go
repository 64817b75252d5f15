// internal/service/assignment_service.go
package service

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/unclebandit/relaydesk-backend/internal/dispatch"
    appErrors "github.com/unclebandit/relaydesk-backend/internal/errors"
    "github.com/unclebandit/relaydesk-backend/internal/lock"
    "github.com/unclebandit/relaydesk-backend/internal/model"
    "github.com/unclebandit/relaydesk-backend/internal/queue"
    "github.com/unclebandit/relaydesk-backend/internal/repository"
)

// ProviderDispatcher is the slice of the outbound dispatcher the
// services drive.
type ProviderDispatcher interface {
    Send(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// AssignmentService owns the per-customer ownership state machine:
// Unassigned -> Assigned(u) -> Assigned(v) -> Unassigned. State commits
// locally first under the customer lock; the provider sync runs after
// the lock is released and is best-effort-eventual.
type AssignmentService struct {
    CustomerRepo  repository.CustomerRepositoryInterface
    UserRepo      repository.UserRepositoryInterface
    EventRepo     repository.AssignmentEventRepositoryInterface
    Notifications *NotificationService
    Dispatcher    ProviderDispatcher
    Locks         *lock.KeyedMutex
    Queue         queue.Publisher
    ResyncTopic   string
    LockTimeout   time.Duration
}

// Assign gives the customer to assigneeID. Assigning the current owner
// again is a no-op: no event, no notification, no provider call.
func (s *AssignmentService) Assign(ctx context.Context, actor Actor, customerID, assigneeID, reason string) (*model.AssignmentEvent, error) {
    if !actor.CanManageAssignments() {
        return nil, appErrors.NewForbidden(actor.UserID, "assign customers")
    }

    assignee, err := s.UserRepo.GetByID(assigneeID)
    if err != nil {
        return nil, err
    }

    customer, ev, err := s.transition(ctx, customerID, actor, reason, &assignee.ID)
    if err != nil || ev == nil {
        return ev, err
    }

    s.syncToProvider(customer, dispatch.Request{
        Kind:           dispatch.KindAssign,
        IdempotencyKey: ev.ID,
        Phone:          customer.Phone,
        AssigneeEmail:  assignee.Email,
    })
    s.Notifications.NotifyAssigned(ev.ID, customer, assignee.ID)
    return ev, nil
}

// Unassign releases the customer back to the pool and tells managers.
func (s *AssignmentService) Unassign(ctx context.Context, actor Actor, customerID, reason string) (*model.AssignmentEvent, error) {
    if !actor.CanManageAssignments() {
        return nil, appErrors.NewForbidden(actor.UserID, "unassign customers")
    }

    customer, ev, err := s.transition(ctx, customerID, actor, reason, nil)
    if err != nil || ev == nil {
        return ev, err
    }

    s.syncToProvider(customer, dispatch.Request{
        Kind:           dispatch.KindUnassign,
        IdempotencyKey: ev.ID,
        Phone:          customer.Phone,
    })
    s.Notifications.NotifyUnassigned(ev.ID, customer)
    return ev, nil
}

// ApplyProviderAssignment handles an assignment webhook. The change
// already happened on the provider side, so there is no sync-back; the
// local commit and the fanout are the whole effect. Returns the event id
// for the ingestion digest.
func (s *AssignmentService) ApplyProviderAssignment(ctx context.Context, phone string, assigneeEmail *string) (string, error) {
    customer, err := s.CustomerRepo.GetByPhone(phone)
    if err != nil {
        return "", err
    }

    var newAssignee *string
    var assigneeUser *model.User
    if assigneeEmail != nil {
        assigneeUser, err = s.UserRepo.GetByEmail(*assigneeEmail)
        if err != nil {
            return "", err
        }
        newAssignee = &assigneeUser.ID
    }

    customer, ev, err := s.transition(ctx, customer.ID, SystemActor(), "provider webhook", newAssignee)
    if err != nil {
        return "", err
    }
    if ev == nil {
        return "noop", nil // provider echoed a state we already hold
    }

    if assigneeUser != nil {
        s.Notifications.NotifyAssigned(ev.ID, customer, assigneeUser.ID)
    } else {
        s.Notifications.NotifyUnassigned(ev.ID, customer)
    }
    return ev.ID, nil
}

// Resync re-drives the provider sync for a flagged customer. Called by
// the background sweeper, never from the request path.
func (s *AssignmentService) Resync(ctx context.Context, customerID string) error {
    customer, err := s.CustomerRepo.GetByID(customerID)
    if err != nil {
        return err
    }
    if !customer.NeedsResync {
        return nil
    }

    req := dispatch.Request{
        Kind:           dispatch.KindUnassign,
        IdempotencyKey: "resync:" + customer.ID + ":" + customer.UpdatedAt.Format(time.RFC3339Nano),
        Phone:          customer.Phone,
    }
    if customer.IsAssigned() {
        assignee, err := s.UserRepo.GetByID(*customer.AssignedUserID)
        if err != nil {
            return err
        }
        req.Kind = dispatch.KindAssign
        req.AssigneeEmail = assignee.Email
    }

    if _, err := s.Dispatcher.Send(ctx, req); err != nil {
        return err
    }
    return s.CustomerRepo.SetNeedsResync(customer.ID, false)
}

// transition serializes the state change per customer and commits it via
// the store's compare-and-set. Returns a nil event for no-op
// transitions. The lock is never held across a provider call.
func (s *AssignmentService) transition(ctx context.Context, customerID string, actor Actor, reason string, newAssignee *string) (*model.Customer, *model.AssignmentEvent, error) {
    lockCtx, cancel := context.WithTimeout(ctx, s.LockTimeout)
    defer cancel()
    release, err := s.Locks.Acquire(lockCtx, customerID)
    if err != nil {
        return nil, nil, err
    }
    defer release()

    for attempt := 0; attempt < 3; attempt++ {
        customer, err := s.CustomerRepo.GetByID(customerID)
        if err != nil {
            return nil, nil, err
        }

        if equalAssignee(customer.AssignedUserID, newAssignee) {
            return customer, nil, nil // idempotent no-op
        }

        if err := s.CustomerRepo.UpdateAssignment(customerID, customer.AssignedUserID, newAssignee); err != nil {
            if errors.Is(err, appErrors.ErrStoreConflict) {
                continue // another instance moved first; re-read and retry
            }
            return nil, nil, err
        }

        ev := &model.AssignmentEvent{
            CustomerID:     customerID,
            PrevAssigneeID: customer.AssignedUserID,
            NewAssigneeID:  newAssignee,
            Reason:         reason,
        }
        if !actor.System {
            actorID := actor.UserID
            ev.ActorID = &actorID
        }
        if err := s.EventRepo.Create(ev); err != nil {
            return nil, nil, err
        }

        customer.AssignedUserID = newAssignee
        if newAssignee != nil {
            customer.Status = model.CustomerStatusAssigned
        } else {
            customer.Status = model.CustomerStatusUnassigned
        }
        return customer, ev, nil
    }
    return nil, nil, appErrors.ErrStoreConflict
}

// syncToProvider runs the outbound call after local commit. Exhausted
// retries flag the customer for the sweeper instead of rolling back:
// local state stays the system of record.
func (s *AssignmentService) syncToProvider(customer *model.Customer, req dispatch.Request) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
    defer cancel()

    if _, err := s.Dispatcher.Send(ctx, req); err != nil {
        log.Printf("⚠️ provider sync for customer %s failed: %v", customer.ID, err)
        if err := s.CustomerRepo.SetNeedsResync(customer.ID, true); err != nil {
            log.Println("⚠️ failed to flag customer for resync:", err)
        }
        if s.Queue != nil {
            if err := s.Queue.Publish(s.ResyncTopic, queue.ResyncJob{CustomerID: customer.ID}); err != nil {
                log.Println("⚠️ failed to enqueue resync job:", err)
            }
        }
    }
}

func equalAssignee(a, b *string) bool {
    if a == nil || b == nil {
        return a == b
    }
    return *a == *b
}
