package repository

import (
    "database/sql"
    "time"

    "github.com/google/uuid"
    "github.com/lib/pq"

    "github.com/unclebandit/relaydesk-backend/internal/model"
)

type CommentRepositoryInterface interface {
    Create(c *model.InternalComment) error
    ListByConversation(conversationID string) ([]*model.InternalComment, error)
}

type CommentRepository struct {
    DB *sql.DB
}

func (r *CommentRepository) Create(c *model.InternalComment) error {
    if c.ID == "" {
        c.ID = uuid.NewString()
    }
    c.CreatedAt = time.Now()

    query := `
        INSERT INTO internal_comments (id, conversation_id, author_id, content, tagged_user_ids, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
    _, err := r.DB.Exec(query, c.ID, c.ConversationID, c.AuthorID, c.Content, pq.Array(c.TaggedUserIDs), c.CreatedAt)
    return err
}

func (r *CommentRepository) ListByConversation(conversationID string) ([]*model.InternalComment, error) {
    query := `
        SELECT id, conversation_id, author_id, content, tagged_user_ids, created_at
        FROM internal_comments WHERE conversation_id=$1 ORDER BY created_at ASC
    `
    rows, err := r.DB.Query(query, conversationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    comments := []*model.InternalComment{}
    for rows.Next() {
        var c model.InternalComment
        var tagged pq.StringArray
        if err := rows.Scan(&c.ID, &c.ConversationID, &c.AuthorID, &c.Content, &tagged, &c.CreatedAt); err != nil {
            return nil, err
        }
        c.TaggedUserIDs = []string(tagged)
        comments = append(comments, &c)
    }
    return comments, rows.Err()
}

var _ CommentRepositoryInterface = (*CommentRepository)(nil)
