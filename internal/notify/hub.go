// internal/notify/hub.go
package notify

import (
    "context"
    "encoding/json"
    "log"
    "net/http"
    "sync"
    "time"

    "nhooyr.io/websocket"

    "github.com/unclebandit/relaydesk-backend/internal/model"
)

// Hub pushes freshly created notifications to connected users. It is
// strictly best-effort: the durable record is the notifications table,
// the socket is just the live mirror.
type Hub struct {
    mu    sync.Mutex
    conns map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
    return &Hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

// Subscribe upgrades the request and parks until the peer goes away.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, userID string) error {
    c, err := websocket.Accept(w, r, nil)
    if err != nil {
        return err
    }

    h.mu.Lock()
    if h.conns[userID] == nil {
        h.conns[userID] = make(map[*websocket.Conn]struct{})
    }
    h.conns[userID][c] = struct{}{}
    h.mu.Unlock()

    defer func() {
        h.mu.Lock()
        delete(h.conns[userID], c)
        if len(h.conns[userID]) == 0 {
            delete(h.conns, userID)
        }
        h.mu.Unlock()
        c.Close(websocket.StatusNormalClosure, "")
    }()

    ctx := r.Context()
    for {
        // inbound frames are ignored; reading just surfaces closure
        if _, _, err := c.Read(ctx); err != nil {
            return nil
        }
    }
}

// Push writes the notification to every open socket of the recipient.
func (h *Hub) Push(recipientID string, n *model.Notification) {
    data, err := json.Marshal(n)
    if err != nil {
        log.Println("⚠️ failed to marshal notification:", err)
        return
    }

    h.mu.Lock()
    conns := make([]*websocket.Conn, 0, len(h.conns[recipientID]))
    for c := range h.conns[recipientID] {
        conns = append(conns, c)
    }
    h.mu.Unlock()

    for _, c := range conns {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        if err := c.Write(ctx, websocket.MessageText, data); err != nil {
            c.Close(websocket.StatusAbnormalClosure, "write failed")
        }
        cancel()
    }
}
