// internal/service/message_service.go
package service

import (
    "context"
    "log"
    "time"

    "github.com/unclebandit/relaydesk-backend/internal/dispatch"
    "github.com/unclebandit/relaydesk-backend/internal/lock"
    "github.com/unclebandit/relaydesk-backend/internal/model"
    "github.com/unclebandit/relaydesk-backend/internal/repository"
    "github.com/unclebandit/relaydesk-backend/internal/webhook"
)

type MessageService struct {
    CustomerRepo     repository.CustomerRepositoryInterface
    ConversationRepo repository.ConversationRepositoryInterface
    MessageRepo      repository.MessageRepositoryInterface
    Notifications    *NotificationService
    Dispatcher       ProviderDispatcher
    Locks            *lock.KeyedMutex
    LockTimeout      time.Duration
}

// RecordInbound persists a customer message from a webhook event.
// Unknown phone numbers create the customer (unassigned) and its
// conversation on the way in. Returns the message id.
func (s *MessageService) RecordInbound(ctx context.Context, evt webhook.Event) (string, error) {
    customer, _, err := s.CustomerRepo.GetOrCreateByPhone(evt.Phone, evt.ContactName)
    if err != nil {
        return "", err
    }

    lockCtx, cancel := context.WithTimeout(ctx, s.LockTimeout)
    defer cancel()
    release, err := s.Locks.Acquire(lockCtx, customer.ID)
    if err != nil {
        return "", err
    }

    msg, err := s.recordLocked(customer, evt)
    release()
    if err != nil {
        return "", err
    }

    s.Notifications.NotifyNewMessage(evt.ID, customer, msg.ID)
    return msg.ID, nil
}

func (s *MessageService) recordLocked(customer *model.Customer, evt webhook.Event) (*model.Message, error) {
    conv, err := s.ConversationRepo.GetOrCreateActive(customer.ID)
    if err != nil {
        return nil, err
    }

    providerID := evt.MessageID
    msg := &model.Message{
        ConversationID:    conv.ID,
        SenderType:        model.SenderCustomer,
        SenderCustomerID:  &customer.ID,
        Type:              evt.MessageType,
        Content:           evt.Text,
        FileURL:           evt.FileURL,
        ProviderMessageID: &providerID,
        Status:            model.MessageStatusDelivered, // it reached us; it was delivered
    }
    if !evt.Timestamp.IsZero() {
        ts := evt.Timestamp
        msg.ProviderTS = &ts
    }
    if err := s.MessageRepo.Create(msg); err != nil {
        return nil, err
    }

    // best-effort: the message row is committed; failing the event here
    // would release the idempotency claim and re-apply it on redelivery
    if err := s.CustomerRepo.TouchLastMessage(customer.ID, msg.CreatedAt); err != nil {
        log.Println("⚠️ failed to touch last_message_at for customer", customer.ID, ":", err)
    }
    return msg, nil
}

// SendOutbound persists a pending message, pushes it to the provider and
// records the delivery outcome. The message row commits before the
// provider call so a degraded provider never loses the user's action.
func (s *MessageService) SendOutbound(ctx context.Context, actor Actor, conversationID, msgType, content, fileURL string) (*model.Message, error) {
    conv, err := s.ConversationRepo.GetByID(conversationID)
    if err != nil {
        return nil, err
    }
    customer, err := s.CustomerRepo.GetByID(conv.CustomerID)
    if err != nil {
        return nil, err
    }

    lockCtx, cancel := context.WithTimeout(ctx, s.LockTimeout)
    defer cancel()
    release, err := s.Locks.Acquire(lockCtx, customer.ID)
    if err != nil {
        return nil, err
    }

    actorID := actor.UserID
    msg := &model.Message{
        ConversationID: conv.ID,
        SenderType:     model.SenderUser,
        SenderUserID:   &actorID,
        Type:           msgType,
        Content:        content,
        FileURL:        fileURL,
        Status:         model.MessageStatusPending,
    }
    err = s.MessageRepo.Create(msg)
    release()
    if err != nil {
        return nil, err
    }

    req := dispatch.Request{
        Kind:           dispatch.KindSendText,
        IdempotencyKey: msg.ID,
        Phone:          customer.Phone,
        Text:           content,
    }
    if msgType != model.MessageTypeText {
        req.Kind = dispatch.KindSendAttachment
        req.FileURL = fileURL
    }

    res, sendErr := s.Dispatcher.Send(ctx, req)
    if sendErr != nil {
        msg.Status = model.MessageStatusFailed
        msg.LastError = sendErr.Error()
        if err := s.MessageRepo.UpdateDeliveryStatus(msg.ID, msg.Status, nil, msg.LastError); err != nil {
            return nil, err
        }
        return msg, nil
    }

    msg.Status = model.MessageStatusSent
    var providerID *string
    if res.ProviderID != "" {
        providerID = &res.ProviderID
        msg.ProviderMessageID = providerID
    }
    if err := s.MessageRepo.UpdateDeliveryStatus(msg.ID, msg.Status, providerID, ""); err != nil {
        return nil, err
    }
    return msg, nil
}

func (s *MessageService) ListMessages(conversationID string, page, pageSize int) ([]*model.Message, error) {
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 50
    }
    if pageSize > 200 {
        pageSize = 200
    }
    if _, err := s.ConversationRepo.GetByID(conversationID); err != nil {
        return nil, err
    }
    return s.MessageRepo.ListByConversation(conversationID, (page-1)*pageSize, pageSize)
}

var _ webhook.MessageSink = (*MessageService)(nil)
