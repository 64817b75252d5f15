// internal/service/notification_service.go
package service

import (
    "log"

    "github.com/unclebandit/relaydesk-backend/internal/model"
    "github.com/unclebandit/relaydesk-backend/internal/repository"
)

// Pusher mirrors created notifications to live listeners. Optional.
type Pusher interface {
    Push(recipientID string, n *model.Notification)
}

// NotificationService computes recipient sets and creates one
// notification per (event, recipient). The store's unique constraint
// makes re-fanout of an already-seen event a no-op, so duplicate
// upstream deliveries can never double-notify even past the idempotency
// store.
type NotificationService struct {
    NotificationRepo repository.NotificationRepositoryInterface
    UserRepo         repository.UserRepositoryInterface
    Hub              Pusher
}

// NotifyNewMessage targets the assignee, or every manager and admin when
// the customer has no owner yet.
func (s *NotificationService) NotifyNewMessage(eventID string, customer *model.Customer, messageID string) []*model.Notification {
    var recipients []string
    if customer.IsAssigned() {
        recipients = []string{*customer.AssignedUserID}
    } else {
        recipients = s.usersWithRoles(model.RoleManager, model.RoleAdmin)
    }
    return s.fanout(eventID, model.NotificationNewMessage, customer.ID, messageID, recipients)
}

// NotifyAssigned targets the new assignee only. The previous assignee is
// deliberately not told; see DESIGN.md.
func (s *NotificationService) NotifyAssigned(eventID string, customer *model.Customer, newAssigneeID string) []*model.Notification {
    return s.fanout(eventID, model.NotificationAssignment, customer.ID, customer.DisplayName(), []string{newAssigneeID})
}

// NotifyUnassigned tells every manager the customer needs a new owner.
func (s *NotificationService) NotifyUnassigned(eventID string, customer *model.Customer) []*model.Notification {
    recipients := s.usersWithRoles(model.RoleManager)
    return s.fanout(eventID, model.NotificationUnassigned, customer.ID, customer.DisplayName(), recipients)
}

// NotifyTags targets every tagged user except the comment's author.
func (s *NotificationService) NotifyTags(eventID string, comment *model.InternalComment, customerID string) []*model.Notification {
    recipients := make([]string, 0, len(comment.TaggedUserIDs))
    for _, id := range comment.TaggedUserIDs {
        if id != comment.AuthorID {
            recipients = append(recipients, id)
        }
    }
    return s.fanout(eventID, model.NotificationTag, customerID, comment.ID, recipients)
}

func (s *NotificationService) usersWithRoles(roles ...string) []string {
    users, err := s.UserRepo.ListByRoles(roles)
    if err != nil {
        log.Println("⚠️ failed to list notification recipients:", err)
        return nil
    }
    ids := make([]string, 0, len(users))
    for _, u := range users {
        ids = append(ids, u.ID)
    }
    return ids
}

func (s *NotificationService) fanout(eventID, kind, customerID, payloadRef string, recipients []string) []*model.Notification {
    created := []*model.Notification{}
    for _, recipientID := range recipients {
        n := &model.Notification{
            RecipientID: recipientID,
            Kind:        kind,
            EventID:     eventID,
            CustomerID:  customerID,
            PayloadRef:  payloadRef,
        }
        ok, err := s.NotificationRepo.Create(n)
        if err != nil {
            log.Println("⚠️ failed to create notification for", recipientID, ":", err)
            continue
        }
        if !ok {
            continue // already fanned out for this event
        }
        created = append(created, n)
        if s.Hub != nil {
            s.Hub.Push(recipientID, n)
        }
    }
    return created
}
