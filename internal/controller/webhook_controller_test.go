package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/unclebandit/relaydesk-backend/internal/controller"
	"github.com/unclebandit/relaydesk-backend/internal/model"
	"github.com/unclebandit/relaydesk-backend/internal/webhook"
)

var webhookSecret = []byte("controller-test-secret")

type memIdempotency struct {
	mu   sync.Mutex
	rows map[string]string
}

func (m *memIdempotency) Claim(eventID string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.rows[eventID]; ok {
		return false, status, nil
	}
	m.rows[eventID] = model.IdempotencyInProgress
	return true, model.IdempotencyInProgress, nil
}

func (m *memIdempotency) MarkProcessed(eventID, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[eventID] = model.IdempotencyProcessed
	return nil
}

func (m *memIdempotency) Release(eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[eventID] == model.IdempotencyInProgress {
		delete(m.rows, eventID)
	}
	return nil
}

type countingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSink) RecordInbound(ctx context.Context, evt webhook.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "msg-ref-1", nil
}

func (s *countingSink) ApplyProviderAssignment(ctx context.Context, phone string, assigneeEmail *string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "ev-ref-1", nil
}

func newWebhookController(sink *countingSink) *controller.WebhookController {
	return &controller.WebhookController{
		Pipeline: &webhook.Pipeline{
			Secret:      webhookSecret,
			Idempotency: &memIdempotency{rows: make(map[string]string)},
			Messages:    sink,
			Assignments: sink,
		},
	}
}

func signedRequest(target string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set(controller.SignatureHeader, webhook.Sign(webhookSecret, body))
	return req
}

func messagePayload(eventID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event_id": %q,
		"contact": {"phone": "+6591234567", "firstName": "Lena"},
		"message": {
			"messageId": "pm-77",
			"timestamp": 1721900000,
			"message": {"type": "text", "text": "hi there"}
		}
	}`, eventID))
}

func TestWebhookMessageAccepted(t *testing.T) {
	sink := &countingSink{}
	c := newWebhookController(sink)

	rec := httptest.NewRecorder()
	c.Message(rec, signedRequest("/webhook/message", messagePayload("evt-1")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "accepted" || resp["ref"] != "msg-ref-1" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if sink.calls != 1 {
		t.Fatalf("expected one applied event, got %d", sink.calls)
	}
}

func TestWebhookRedeliveryIsDuplicate(t *testing.T) {
	sink := &countingSink{}
	c := newWebhookController(sink)
	body := messagePayload("evt-2")

	rec := httptest.NewRecorder()
	c.Message(rec, signedRequest("/webhook/message", body))
	if rec.Code != http.StatusOK {
		t.Fatal("first delivery should be accepted")
	}

	rec = httptest.NewRecorder()
	c.Message(rec, signedRequest("/webhook/message", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery must get a 2xx, got %d", rec.Code)
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "duplicate" {
		t.Fatalf("expected duplicate status, got %v", resp)
	}
	if sink.calls != 1 {
		t.Fatalf("redelivery was re-applied, sink saw %d calls", sink.calls)
	}
}

func TestWebhookBadSignatureForbidden(t *testing.T) {
	sink := &countingSink{}
	c := newWebhookController(sink)

	req := httptest.NewRequest(http.MethodPost, "/webhook/message", bytes.NewReader(messagePayload("evt-3")))
	req.Header.Set(controller.SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	c.Message(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if sink.calls != 0 {
		t.Fatal("unverified payload reached the sink")
	}
}

func TestWebhookMalformedPayloadBadRequest(t *testing.T) {
	sink := &countingSink{}
	c := newWebhookController(sink)

	body := []byte(`{"event_id": "evt-4", "contact": {"phone": "12345"}}`)
	rec := httptest.NewRecorder()
	c.Message(rec, signedRequest("/webhook/message", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if sink.calls != 0 {
		t.Fatal("invalid payload reached the sink")
	}
}

func TestWebhookAssignmentAccepted(t *testing.T) {
	sink := &countingSink{}
	c := newWebhookController(sink)

	body := []byte(`{
		"event_id": "evt-5",
		"contact": {"phone": "+6591234567", "assignee": {"email": "alice@relaydesk.local"}}
	}`)
	rec := httptest.NewRecorder()
	c.Assignment(rec, signedRequest("/webhook/assignment", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if sink.calls != 1 {
		t.Fatalf("expected one applied event, got %d", sink.calls)
	}
}
