// internal/controller/webhook_controller.go
package controller

import (
    "context"
    "encoding/json"
    "errors"
    "io"
    "log"
    "net/http"

    appErrors "github.com/unclebandit/relaydesk-backend/internal/errors"
    "github.com/unclebandit/relaydesk-backend/internal/webhook"
)

// SignatureHeader carries the provider's HMAC of the raw body.
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20

type ingestFunc func(ctx context.Context, raw []byte, signature string) (webhook.Result, error)

type WebhookController struct {
    Pipeline *webhook.Pipeline
}

func (c *WebhookController) Message(w http.ResponseWriter, r *http.Request) {
    c.handle(w, r, c.Pipeline.IngestMessage)
}

func (c *WebhookController) Assignment(w http.ResponseWriter, r *http.Request) {
    c.handle(w, r, c.Pipeline.IngestAssignment)
}

// Response codes drive the provider's retry behavior: 2xx for accepted
// and duplicate, 4xx for things a retry cannot fix, 5xx when we want the
// event redelivered.
func (c *WebhookController) handle(w http.ResponseWriter, r *http.Request, ingest ingestFunc) {
    raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
    if err != nil {
        http.Error(w, "failed to read body", http.StatusBadRequest)
        return
    }

    result, err := ingest(r.Context(), raw, r.Header.Get(SignatureHeader))
    if err != nil {
        switch {
        case errors.Is(err, appErrors.ErrInvalidSignature):
            log.Println("⚠️ invalid webhook signature")
            http.Error(w, "invalid signature", http.StatusForbidden)
        case appErrors.IsRejection(err):
            http.Error(w, err.Error(), http.StatusBadRequest)
        default:
            // transient; a 5xx asks the provider to redeliver
            log.Println("⚠️ webhook processing failed:", err)
            http.Error(w, "processing failed", http.StatusInternalServerError)
        }
        return
    }

    w.Header().Set("Content-Type", "application/json")
    switch result.Outcome {
    case webhook.Duplicate:
        json.NewEncoder(w).Encode(map[string]string{"status": "duplicate"})
    default:
        json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "ref": result.Ref})
    }
}
