// internal/controller/notification_controller.go
package controller

import (
    "encoding/json"
    "log"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    "github.com/unclebandit/relaydesk-backend/internal/notify"
    "github.com/unclebandit/relaydesk-backend/internal/repository"
)

type NotificationController struct {
    NotificationRepo repository.NotificationRepositoryInterface
    Hub              *notify.Hub
}

func (c *NotificationController) ListNotifications(w http.ResponseWriter, r *http.Request) {
    actor := actorFromRequest(r)
    if actor.UserID == "" {
        http.Error(w, "missing actor", http.StatusUnauthorized)
        return
    }

    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    unreadOnly := r.URL.Query().Get("unread") == "true"

    notifications, err := c.NotificationRepo.ListByRecipient(actor.UserID, unreadOnly, (page-1)*pageSize, pageSize)
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{"data": notifications})
}

func (c *NotificationController) MarkRead(w http.ResponseWriter, r *http.Request) {
    actor := actorFromRequest(r)
    if actor.UserID == "" {
        http.Error(w, "missing actor", http.StatusUnauthorized)
        return
    }
    id := chi.URLParam(r, "id")

    if err := c.NotificationRepo.MarkRead(id, actor.UserID); err != nil {
        http.Error(w, "notification not found", http.StatusNotFound)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]string{"status": "read"})
}

// Stream holds a websocket open and mirrors new notifications to it.
func (c *NotificationController) Stream(w http.ResponseWriter, r *http.Request) {
    actor := actorFromRequest(r)
    if actor.UserID == "" {
        http.Error(w, "missing actor", http.StatusUnauthorized)
        return
    }

    if err := c.Hub.Subscribe(w, r, actor.UserID); err != nil {
        log.Println("⚠️ websocket subscribe failed:", err)
    }
}
