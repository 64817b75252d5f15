package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unclebandit/relaydesk-backend/internal/dispatch"
	"github.com/unclebandit/relaydesk-backend/internal/lock"
	"github.com/unclebandit/relaydesk-backend/internal/model"
	"github.com/unclebandit/relaydesk-backend/internal/service"
	"github.com/unclebandit/relaydesk-backend/internal/webhook"
)

type messageFixture struct {
	svc        *service.MessageService
	customers  *mockCustomerRepo
	convs      *mockConversationRepo
	messages   *mockMessageRepo
	notifRepo  *mockNotificationRepo
	dispatcher *mockDispatcher
}

func newMessageFixture() *messageFixture {
	customers := newMockCustomerRepo()
	users := &mockUserRepo{users: testUsers}
	convs := newMockConversationRepo()
	messages := &mockMessageRepo{}
	notifRepo := newMockNotificationRepo()
	dispatcher := &mockDispatcher{result: dispatch.Result{ProviderID: "mid-1"}}

	svc := &service.MessageService{
		CustomerRepo:     customers,
		ConversationRepo: convs,
		MessageRepo:      messages,
		Notifications: &service.NotificationService{
			NotificationRepo: notifRepo,
			UserRepo:         users,
		},
		Dispatcher:  dispatcher,
		Locks:       lock.NewKeyedMutex(),
		LockTimeout: time.Second,
	}
	return &messageFixture{
		svc:        svc,
		customers:  customers,
		convs:      convs,
		messages:   messages,
		notifRepo:  notifRepo,
		dispatcher: dispatcher,
	}
}

func inboundEvent(eventID, phone string) webhook.Event {
	return webhook.Event{
		ID:          eventID,
		Kind:        webhook.EventNewMessage,
		Phone:       phone,
		ContactName: "Lena",
		MessageID:   "pm-77",
		Text:        "hi there",
		MessageType: model.MessageTypeText,
		Timestamp:   time.Unix(1721900000, 0).UTC(),
	}
}

func TestRecordInboundFirstContact(t *testing.T) {
	f := newMessageFixture()

	ref, err := f.svc.RecordInbound(context.Background(), inboundEvent("evt-1", "+6591234567"))
	if err != nil {
		t.Fatal(err)
	}

	customer, err := f.customers.GetByPhone("+6591234567")
	if err != nil {
		t.Fatal("first contact must create the customer:", err)
	}
	if customer.IsAssigned() {
		t.Fatal("new customers start unassigned")
	}
	if customer.LastMessageAt == nil {
		t.Fatal("last message timestamp not touched")
	}

	msg, err := f.messages.GetByID(ref)
	if err != nil || msg == nil {
		t.Fatal("returned ref does not resolve to the stored message")
	}
	if msg.Status != model.MessageStatusDelivered || msg.SenderType != model.SenderCustomer {
		t.Fatalf("unexpected message record: %+v", msg)
	}
	if msg.ProviderMessageID == nil || *msg.ProviderMessageID != "pm-77" {
		t.Fatal("provider message id not stored")
	}
	if msg.ProviderTS == nil {
		t.Fatal("provider timestamp not stored")
	}

	conv, err := f.convs.GetByID(msg.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if conv.Status != model.ConversationStatusActive || conv.CustomerID != customer.ID {
		t.Fatalf("conversation not opened for the customer: %+v", conv)
	}

	// no owner yet, so the manager pool gets told: maya and the admin,
	// never the salespeople
	recipients := f.notifRepo.recipients()
	if len(recipients) != 2 {
		t.Fatalf("expected 2 notifications, got %v", recipients)
	}
	for _, r := range recipients {
		if r == "u-alice" || r == "u-ben" {
			t.Fatal("salespeople must not be notified for unassigned customers")
		}
	}
}

func TestRecordInboundAssignedCustomerNotifiesOwner(t *testing.T) {
	f := newMessageFixture()
	f.customers.add(&model.Customer{
		Phone:          "+6591234567",
		Name:           "Lena",
		Status:         model.CustomerStatusAssigned,
		AssignedUserID: strPtr("u-alice"),
	})

	if _, err := f.svc.RecordInbound(context.Background(), inboundEvent("evt-2", "+6591234567")); err != nil {
		t.Fatal(err)
	}

	recipients := f.notifRepo.recipients()
	if len(recipients) != 1 || recipients[0] != "u-alice" {
		t.Fatalf("only the owner should be notified, got %v", recipients)
	}
}

func TestRecordInboundSameEventNeverDoubleNotifies(t *testing.T) {
	f := newMessageFixture()

	evt := inboundEvent("evt-3", "+6591234567")
	if _, err := f.svc.RecordInbound(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	before := len(f.notifRepo.recipients())

	// a redelivery that slipped past the idempotency store still cannot
	// double-notify: the (event, recipient) constraint absorbs it
	if _, err := f.svc.RecordInbound(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if got := len(f.notifRepo.recipients()); got != before {
		t.Fatalf("duplicate event fanned out again: %d -> %d", before, got)
	}
}

func TestRecordInboundTouchFailureDoesNotFailEvent(t *testing.T) {
	f := newMessageFixture()
	f.customers.touchErrs = 1

	ref, err := f.svc.RecordInbound(context.Background(), inboundEvent("evt-9", "+6591234567"))
	if err != nil {
		t.Fatal("a failed last-message touch must not fail the event (it would trigger a redelivery that re-applies it):", err)
	}
	if msg, _ := f.messages.GetByID(ref); msg == nil {
		t.Fatal("message row missing")
	}
	if len(f.messages.msgs) != 1 {
		t.Fatalf("expected exactly one message row, got %d", len(f.messages.msgs))
	}
	if len(f.notifRepo.recipients()) == 0 {
		t.Fatal("fanout must still run when the touch fails")
	}
}

func TestRecordInboundReusesActiveConversation(t *testing.T) {
	f := newMessageFixture()

	ref1, err := f.svc.RecordInbound(context.Background(), inboundEvent("evt-4", "+6591234567"))
	if err != nil {
		t.Fatal(err)
	}
	ref2, err := f.svc.RecordInbound(context.Background(), inboundEvent("evt-5", "+6591234567"))
	if err != nil {
		t.Fatal(err)
	}

	m1, _ := f.messages.GetByID(ref1)
	m2, _ := f.messages.GetByID(ref2)
	if m1.ConversationID != m2.ConversationID {
		t.Fatal("second message opened a second conversation")
	}
}

func newOutboundFixture(t *testing.T) (*messageFixture, *model.Conversation) {
	t.Helper()
	f := newMessageFixture()
	customer := f.customers.add(&model.Customer{Phone: "+6591234567", Name: "Lena"})
	conv, err := f.convs.GetOrCreateActive(customer.ID)
	if err != nil {
		t.Fatal(err)
	}
	return f, conv
}

func TestSendOutboundSuccess(t *testing.T) {
	f, conv := newOutboundFixture(t)

	msg, err := f.svc.SendOutbound(context.Background(), salesActor, conv.ID, model.MessageTypeText, "hello Lena", "")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != model.MessageStatusSent {
		t.Fatal("expected sent status, got:", msg.Status)
	}
	if msg.ProviderMessageID == nil || *msg.ProviderMessageID != "mid-1" {
		t.Fatal("provider message id not recorded")
	}

	reqs := f.dispatcher.requests()
	if len(reqs) != 1 || reqs[0].Kind != dispatch.KindSendText {
		t.Fatalf("expected one send_text call, got %+v", reqs)
	}
	if reqs[0].IdempotencyKey != msg.ID {
		t.Fatal("provider call must be keyed by the local message id")
	}
}

func TestSendOutboundAttachment(t *testing.T) {
	f, conv := newOutboundFixture(t)

	msg, err := f.svc.SendOutbound(context.Background(), salesActor, conv.ID, model.MessageTypeImage, "", "https://files.local/pic.png")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != model.MessageStatusSent {
		t.Fatal("expected sent status, got:", msg.Status)
	}

	reqs := f.dispatcher.requests()
	if reqs[0].Kind != dispatch.KindSendAttachment || reqs[0].FileURL != "https://files.local/pic.png" {
		t.Fatalf("attachment request malformed: %+v", reqs[0])
	}
}

func TestSendOutboundProviderFailureKeepsMessage(t *testing.T) {
	f, conv := newOutboundFixture(t)
	f.dispatcher.failWith = &dispatch.TransientError{Err: errors.New("provider down"), Attempts: 5}

	msg, err := f.svc.SendOutbound(context.Background(), salesActor, conv.ID, model.MessageTypeText, "hello", "")
	if err != nil {
		t.Fatal("a failed delivery is an outcome, not a request error:", err)
	}
	if msg.Status != model.MessageStatusFailed {
		t.Fatal("expected failed status, got:", msg.Status)
	}
	if msg.LastError == "" {
		t.Fatal("delivery failure reason not recorded")
	}

	stored, _ := f.messages.GetByID(msg.ID)
	if stored == nil || stored.Status != model.MessageStatusFailed {
		t.Fatal("failure outcome not persisted")
	}
}

func TestSendOutboundUnknownConversation(t *testing.T) {
	f := newMessageFixture()

	if _, err := f.svc.SendOutbound(context.Background(), salesActor, "conv-missing", model.MessageTypeText, "hi", ""); err == nil {
		t.Fatal("expected an error for an unknown conversation")
	}
	if len(f.dispatcher.requests()) != 0 {
		t.Fatal("unknown conversation reached the provider")
	}
}
