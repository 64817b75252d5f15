// internal/controller/message_controller.go
package controller

import (
    "encoding/json"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    "github.com/unclebandit/relaydesk-backend/internal/model"
    "github.com/unclebandit/relaydesk-backend/internal/service"
)

type MessageController struct {
    MessageService *service.MessageService
    CommentService *service.CommentService
}

func (c *MessageController) ListMessages(w http.ResponseWriter, r *http.Request) {
    conversationID := chi.URLParam(r, "id")
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

    messages, err := c.MessageService.ListMessages(conversationID, page, pageSize)
    if err != nil {
        writeServiceError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{"data": messages})
}

func (c *MessageController) SendMessage(w http.ResponseWriter, r *http.Request) {
    conversationID := chi.URLParam(r, "id")

    var body struct {
        Type    string `json:"type"`
        Content string `json:"content"`
        FileURL string `json:"file_url"` // already validated and scanned upstream
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    if body.Type == "" {
        body.Type = model.MessageTypeText
    }
    switch body.Type {
    case model.MessageTypeText:
        if body.Content == "" {
            http.Error(w, "content is required for text messages", http.StatusBadRequest)
            return
        }
    case model.MessageTypeImage, model.MessageTypeFile:
        if body.FileURL == "" {
            http.Error(w, "file_url is required for attachments", http.StatusBadRequest)
            return
        }
    default:
        http.Error(w, "unknown message type", http.StatusBadRequest)
        return
    }

    msg, err := c.MessageService.SendOutbound(r.Context(), actorFromRequest(r), conversationID, body.Type, body.Content, body.FileURL)
    if err != nil {
        writeServiceError(w, err)
        return
    }

    // a failed provider push is reported on the message itself, not as
    // a request failure; the UI shows the sync state
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(msg)
}

func (c *MessageController) CreateComment(w http.ResponseWriter, r *http.Request) {
    conversationID := chi.URLParam(r, "id")

    var body struct {
        Content       string   `json:"content"`
        TaggedUserIDs []string `json:"tagged_user_ids"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    if body.Content == "" {
        http.Error(w, "content is required", http.StatusBadRequest)
        return
    }

    comment, err := c.CommentService.CreateComment(r.Context(), actorFromRequest(r), conversationID, body.Content, body.TaggedUserIDs)
    if err != nil {
        writeServiceError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(comment)
}

func (c *MessageController) ListComments(w http.ResponseWriter, r *http.Request) {
    conversationID := chi.URLParam(r, "id")

    comments, err := c.CommentService.ListComments(conversationID)
    if err != nil {
        writeServiceError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{"data": comments})
}
