package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/relaydesk-backend/internal/dispatch"
	appErrors "github.com/unclebandit/relaydesk-backend/internal/errors"
	"github.com/unclebandit/relaydesk-backend/internal/model"
)

// In-memory stand-ins for the repositories. They reproduce the database
// behaviors the services lean on: the compare-and-set on assignment, the
// one-active-conversation rule and the (event, recipient) notification
// constraint.

type mockCustomerRepo struct {
	mu        sync.Mutex
	byID      map[string]*model.Customer
	byPhone   map[string]string
	nextID    int
	conflicts int // UpdateAssignment fails this many times with ErrStoreConflict
	touchErrs int // TouchLastMessage fails this many times
}

func newMockCustomerRepo() *mockCustomerRepo {
	return &mockCustomerRepo{
		byID:    make(map[string]*model.Customer),
		byPhone: make(map[string]string),
	}
}

func (m *mockCustomerRepo) add(c *model.Customer) *model.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		m.nextID++
		c.ID = fmt.Sprintf("cust-%d", m.nextID)
	}
	if c.Status == "" {
		c.Status = model.CustomerStatusUnassigned
	}
	c.UpdatedAt = time.Now()
	m.byID[c.ID] = c
	m.byPhone[c.Phone] = c.ID
	return c
}

func (m *mockCustomerRepo) GetOrCreateByPhone(phone, name string) (*model.Customer, bool, error) {
	m.mu.Lock()
	if id, ok := m.byPhone[phone]; ok {
		c := *m.byID[id]
		m.mu.Unlock()
		return &c, false, nil
	}
	m.mu.Unlock()
	c := m.add(&model.Customer{Phone: phone, Name: name, FirstContactAt: time.Now()})
	copied := *c
	return &copied, true, nil
}

func (m *mockCustomerRepo) GetByID(id string) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, appErrors.NewCustomerNotFound(id)
	}
	copied := *c
	return &copied, nil
}

func (m *mockCustomerRepo) GetByPhone(phone string) (*model.Customer, error) {
	m.mu.Lock()
	id, ok := m.byPhone[phone]
	m.mu.Unlock()
	if !ok {
		return nil, appErrors.NewCustomerNotFound(phone)
	}
	return m.GetByID(id)
}

func (m *mockCustomerRepo) UpdateAssignment(customerID string, prevAssignee, newAssignee *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		return appErrors.ErrStoreConflict
	}
	c, ok := m.byID[customerID]
	if !ok {
		return appErrors.NewCustomerNotFound(customerID)
	}
	if !ptrEqual(c.AssignedUserID, prevAssignee) {
		return appErrors.ErrStoreConflict
	}
	c.AssignedUserID = newAssignee
	if newAssignee != nil {
		c.Status = model.CustomerStatusAssigned
	} else {
		c.Status = model.CustomerStatusUnassigned
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (m *mockCustomerRepo) TouchLastMessage(customerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.touchErrs > 0 {
		m.touchErrs--
		return errors.New("db connection reset")
	}
	if c, ok := m.byID[customerID]; ok {
		c.LastMessageAt = &at
	}
	return nil
}

func (m *mockCustomerRepo) SetNeedsResync(customerID string, flag bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[customerID]
	if !ok {
		return appErrors.NewCustomerNotFound(customerID)
	}
	c.NeedsResync = flag
	return nil
}

func (m *mockCustomerRepo) ListNeedsResync(limit int) ([]*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Customer
	for _, c := range m.byID {
		if c.NeedsResync && len(out) < limit {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockCustomerRepo) List(status string, offset, limit int) ([]*model.Customer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Customer
	for _, c := range m.byID {
		if status == "" || c.Status == status {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

type mockUserRepo struct {
	users []model.User
}

func (m *mockUserRepo) GetByID(id string) (*model.User, error) {
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, appErrors.NewUserNotFound(id)
}

func (m *mockUserRepo) GetByEmail(email string) (*model.User, error) {
	for i := range m.users {
		if m.users[i].Email == email {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, appErrors.NewUserNotFound(email)
}

func (m *mockUserRepo) ListByRoles(roles []string) ([]model.User, error) {
	var out []model.User
	for _, u := range m.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

type mockEventRepo struct {
	mu     sync.Mutex
	events []*model.AssignmentEvent
}

func (m *mockEventRepo) Create(ev *model.AssignmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = fmt.Sprintf("ev-%d", len(m.events)+1)
	ev.CreatedAt = time.Now()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockEventRepo) ListByCustomer(customerID string) ([]*model.AssignmentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AssignmentEvent
	for _, ev := range m.events {
		if ev.CustomerID == customerID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type mockNotificationRepo struct {
	mu   sync.Mutex
	rows []*model.Notification
	seen map[string]bool
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{seen: make(map[string]bool)}
}

func (m *mockNotificationRepo) Create(n *model.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := n.EventID + "|" + n.RecipientID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	n.ID = fmt.Sprintf("ntf-%d", len(m.rows)+1)
	n.CreatedAt = time.Now()
	m.rows = append(m.rows, n)
	return true, nil
}

func (m *mockNotificationRepo) ListByRecipient(recipientID string, unreadOnly bool, offset, limit int) ([]*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Notification
	for _, n := range m.rows {
		if n.RecipientID == recipientID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkRead(id, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id && n.RecipientID == recipientID {
			n.Read = true
			return nil
		}
	}
	return fmt.Errorf("notification %s not found for %s", id, recipientID)
}

func (m *mockNotificationRepo) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rows))
	for _, n := range m.rows {
		out = append(out, n.RecipientID)
	}
	return out
}

type mockConversationRepo struct {
	mu               sync.Mutex
	byID             map[string]*model.Conversation
	activeByCustomer map[string]string
	nextID           int
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{
		byID:             make(map[string]*model.Conversation),
		activeByCustomer: make(map[string]string),
	}
}

func (m *mockConversationRepo) GetOrCreateActive(customerID string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.activeByCustomer[customerID]; ok {
		c := *m.byID[id]
		return &c, nil
	}
	m.nextID++
	conv := &model.Conversation{
		ID:         fmt.Sprintf("conv-%d", m.nextID),
		CustomerID: customerID,
		Status:     model.ConversationStatusActive,
		CreatedAt:  time.Now(),
	}
	m.byID[conv.ID] = conv
	m.activeByCustomer[customerID] = conv.ID
	copied := *conv
	return &copied, nil
}

func (m *mockConversationRepo) GetByID(id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, appErrors.NewConversationNotFound(id)
	}
	copied := *c
	return &copied, nil
}

func (m *mockConversationRepo) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return appErrors.NewConversationNotFound(id)
	}
	c.Status = model.ConversationStatusClosed
	delete(m.activeByCustomer, c.CustomerID)
	return nil
}

type mockMessageRepo struct {
	mu   sync.Mutex
	msgs []*model.Message
}

func (m *mockMessageRepo) Create(msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = fmt.Sprintf("msg-%d", len(m.msgs)+1)
	msg.CreatedAt = time.Now()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mockMessageRepo) GetByID(id string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.ID == id {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockMessageRepo) UpdateDeliveryStatus(id, status string, providerMessageID *string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.ID == id {
			msg.Status = status
			if providerMessageID != nil {
				msg.ProviderMessageID = providerMessageID
			}
			msg.LastError = lastError
			return nil
		}
	}
	return fmt.Errorf("message %s not found", id)
}

func (m *mockMessageRepo) ListByConversation(conversationID string, offset, limit int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for _, msg := range m.msgs {
		if msg.ConversationID == conversationID {
			copied := *msg
			out = append(out, &copied)
		}
	}
	return out, nil
}

type mockCommentRepo struct {
	mu       sync.Mutex
	comments []*model.InternalComment
}

func (m *mockCommentRepo) Create(c *model.InternalComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = fmt.Sprintf("cmt-%d", len(m.comments)+1)
	c.CreatedAt = time.Now()
	m.comments = append(m.comments, c)
	return nil
}

func (m *mockCommentRepo) ListByConversation(conversationID string) ([]*model.InternalComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.InternalComment
	for _, c := range m.comments {
		if c.ConversationID == conversationID {
			out = append(out, c)
		}
	}
	return out, nil
}

// mockDispatcher records every request; failWith makes all sends fail.
type mockDispatcher struct {
	mu       sync.Mutex
	reqs     []dispatch.Request
	failWith error
	result   dispatch.Result
}

func (m *mockDispatcher) Send(ctx context.Context, req dispatch.Request) (dispatch.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.failWith != nil {
		return dispatch.Result{}, m.failWith
	}
	return m.result, nil
}

func (m *mockDispatcher) requests() []dispatch.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dispatch.Request, len(m.reqs))
	copy(out, m.reqs)
	return out
}

type publishedJob struct {
	topic   string
	payload any
}

type mockPublisher struct {
	mu   sync.Mutex
	jobs []publishedJob
}

func (m *mockPublisher) Publish(topic string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, publishedJob{topic: topic, payload: payload})
	return nil
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtr(s string) *string { return &s }
