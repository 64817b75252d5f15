// internal/service/comment_service.go
package service

import (
    "context"
    "log"

    "github.com/unclebandit/relaydesk-backend/internal/dispatch"
    "github.com/unclebandit/relaydesk-backend/internal/model"
    "github.com/unclebandit/relaydesk-backend/internal/repository"
)

type CommentService struct {
    CommentRepo      repository.CommentRepositoryInterface
    ConversationRepo repository.ConversationRepositoryInterface
    CustomerRepo     repository.CustomerRepositoryInterface
    Notifications    *NotificationService
    Dispatcher       ProviderDispatcher
}

// CreateComment stores an internal comment, mirrors it to the provider's
// comment endpoint (best-effort) and notifies the tagged users. The
// comment never reaches the customer-facing channel.
func (s *CommentService) CreateComment(ctx context.Context, actor Actor, conversationID, content string, taggedUserIDs []string) (*model.InternalComment, error) {
    conv, err := s.ConversationRepo.GetByID(conversationID)
    if err != nil {
        return nil, err
    }
    customer, err := s.CustomerRepo.GetByID(conv.CustomerID)
    if err != nil {
        return nil, err
    }

    comment := &model.InternalComment{
        ConversationID: conv.ID,
        AuthorID:       actor.UserID,
        Content:        content,
        TaggedUserIDs:  taggedUserIDs,
    }
    if err := s.CommentRepo.Create(comment); err != nil {
        return nil, err
    }

    if _, err := s.Dispatcher.Send(ctx, dispatch.Request{
        Kind:           dispatch.KindComment,
        IdempotencyKey: comment.ID,
        Phone:          customer.Phone,
        Text:           content,
        TaggedUserIDs:  taggedUserIDs,
    }); err != nil {
        log.Println("⚠️ failed to mirror comment to provider:", err)
    }

    s.Notifications.NotifyTags(comment.ID, comment, customer.ID)
    return comment, nil
}

func (s *CommentService) ListComments(conversationID string) ([]*model.InternalComment, error) {
    if _, err := s.ConversationRepo.GetByID(conversationID); err != nil {
        return nil, err
    }
    return s.CommentRepo.ListByConversation(conversationID)
}
