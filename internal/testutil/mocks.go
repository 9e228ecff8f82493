package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/websocket"
)

// MockMemberRepository is a mock implementation of domain.MemberRepository
type MockMemberRepository struct {
	Members []*domain.Member
	ByID    map[uuid.UUID]*domain.Member

	// ExistingRefs backs MandateReferenceExists; assignments are added to it.
	ExistingRefs map[string]bool
	// ExistsFn overrides the reference lookup, e.g. to force collisions.
	ExistsFn func(reference string) (bool, error)
	// AssignFn overrides AssignMandate.
	AssignFn func(memberID uuid.UUID, reference string) error

	// Assignments records every successful AssignMandate call in order.
	Assignments   []AssignedMandate
	Notifications []*domain.Notification
}

// AssignedMandate captures one AssignMandate call
type AssignedMandate struct {
	MemberID   uuid.UUID
	Reference  string
	AssignedAt time.Time
}

// NewMockMemberRepository creates a new MockMemberRepository
func NewMockMemberRepository(members ...*domain.Member) *MockMemberRepository {
	m := &MockMemberRepository{
		ByID:         make(map[uuid.UUID]*domain.Member),
		ExistingRefs: make(map[string]bool),
	}
	for _, member := range members {
		m.Add(member)
	}
	return m
}

// Add registers a member and indexes its existing mandate reference
func (m *MockMemberRepository) Add(member *domain.Member) {
	m.Members = append(m.Members, member)
	m.ByID[member.ID] = member
	if member.Profile.MandateReference != "" {
		m.ExistingRefs[member.Profile.MandateReference] = true
	}
}

// GetAll returns all members
func (m *MockMemberRepository) GetAll(ctx context.Context) ([]*domain.Member, error) {
	return m.Members, nil
}

// GetByID retrieves a member by ID
func (m *MockMemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	if member, ok := m.ByID[id]; ok {
		return member, nil
	}
	return nil, domain.ErrMemberNotFound
}

// MandateReferenceExists checks the reference against all recorded assignments
func (m *MockMemberRepository) MandateReferenceExists(ctx context.Context, reference string) (bool, error) {
	if m.ExistsFn != nil {
		return m.ExistsFn(reference)
	}
	return m.ExistingRefs[reference], nil
}

// AssignMandate records the assignment and the notification
func (m *MockMemberRepository) AssignMandate(ctx context.Context, memberID uuid.UUID, reference string, assignedAt time.Time, notification *domain.Notification) error {
	if m.AssignFn != nil {
		if err := m.AssignFn(memberID, reference); err != nil {
			return err
		}
	}
	member, ok := m.ByID[memberID]
	if !ok {
		return domain.ErrMemberNotFound
	}
	if member.Profile.MandateReference != "" {
		return domain.ErrMandateAlreadyAssigned
	}
	if m.ExistingRefs[reference] {
		return domain.ErrMandateReferenceTaken
	}
	member.Profile.MandateReference = reference
	m.ExistingRefs[reference] = true
	m.Assignments = append(m.Assignments, AssignedMandate{MemberID: memberID, Reference: reference, AssignedAt: assignedAt})
	if notification != nil {
		m.Notifications = append(m.Notifications, notification)
	}
	return nil
}

// MockBatchRepository is a mock implementation of domain.BatchRepository
type MockBatchRepository struct {
	Batches         map[uuid.UUID]*domain.DirectDebitBatch
	PaymentsByBatch map[uuid.UUID][]*domain.DirectDebitPayment
	Notifications   []*domain.Notification
	order           []uuid.UUID

	// CreateErr makes CreateWithPayments fail without storing anything.
	CreateErr error
}

// NewMockBatchRepository creates a new MockBatchRepository
func NewMockBatchRepository() *MockBatchRepository {
	return &MockBatchRepository{
		Batches:         make(map[uuid.UUID]*domain.DirectDebitBatch),
		PaymentsByBatch: make(map[uuid.UUID][]*domain.DirectDebitPayment),
	}
}

// CreateWithPayments stores the batch, its payments and notifications together
func (m *MockBatchRepository) CreateWithPayments(ctx context.Context, batch *domain.DirectDebitBatch, payments []*domain.DirectDebitPayment, notifications []*domain.Notification) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Batches[batch.ID] = batch
	m.PaymentsByBatch[batch.ID] = payments
	m.Notifications = append(m.Notifications, notifications...)
	m.order = append(m.order, batch.ID)
	return nil
}

// GetByID retrieves a batch by ID
func (m *MockBatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DirectDebitBatch, error) {
	if batch, ok := m.Batches[id]; ok {
		return batch, nil
	}
	return nil, domain.ErrBatchNotFound
}

// GetAll returns all batches, newest first
func (m *MockBatchRepository) GetAll(ctx context.Context) ([]*domain.DirectDebitBatch, error) {
	batches := make([]*domain.DirectDebitBatch, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		batches = append(batches, m.Batches[m.order[i]])
	}
	return batches, nil
}

// UpdateState moves the batch from one state to another
func (m *MockBatchRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to domain.BatchState) error {
	batch, ok := m.Batches[id]
	if !ok {
		return domain.ErrBatchNotFound
	}
	if batch.State != from {
		return domain.ErrInvalidTransition
	}
	batch.State = to
	return nil
}

// MockPaymentRepository is a mock implementation of domain.PaymentRepository
type MockPaymentRepository struct {
	Payments map[uuid.UUID]*domain.DirectDebitPayment
	order    []uuid.UUID
}

// NewMockPaymentRepository creates a new MockPaymentRepository
func NewMockPaymentRepository(payments ...*domain.DirectDebitPayment) *MockPaymentRepository {
	m := &MockPaymentRepository{Payments: make(map[uuid.UUID]*domain.DirectDebitPayment)}
	for _, p := range payments {
		m.Payments[p.ID] = p
		m.order = append(m.order, p.ID)
	}
	return m
}

// GetByBatch returns the payments of the batch in insertion order
func (m *MockPaymentRepository) GetByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.DirectDebitPayment, error) {
	var payments []*domain.DirectDebitPayment
	for _, id := range m.order {
		if m.Payments[id].BatchID == batchID {
			payments = append(payments, m.Payments[id])
		}
	}
	return payments, nil
}

// GetByID retrieves a payment by ID
func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DirectDebitPayment, error) {
	if payment, ok := m.Payments[id]; ok {
		return payment, nil
	}
	return nil, domain.ErrPaymentNotFound
}

// UpdateStatesByBatch moves every payment of the batch in the from state
func (m *MockPaymentRepository) UpdateStatesByBatch(ctx context.Context, batchID uuid.UUID, from, to domain.PaymentState) (int64, error) {
	var changed int64
	for _, id := range m.order {
		p := m.Payments[id]
		if p.BatchID == batchID && p.State == from {
			p.State = to
			changed++
		}
	}
	return changed, nil
}

// UpdateState moves a single payment from one state to another
func (m *MockPaymentRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to domain.PaymentState) error {
	payment, ok := m.Payments[id]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if payment.State != from {
		return domain.ErrInvalidTransition
	}
	payment.State = to
	return nil
}

// MockNotificationRepository is a mock implementation of domain.NotificationRepository
type MockNotificationRepository struct {
	Notifications []*domain.Notification
}

// GetByMember returns the notifications addressed to the member
func (m *MockNotificationRepository) GetByMember(ctx context.Context, memberID uuid.UUID) ([]*domain.Notification, error) {
	var out []*domain.Notification
	for _, n := range m.Notifications {
		if n.MemberID == memberID {
			out = append(out, n)
		}
	}
	return out, nil
}

// ListUnsent returns notifications without a sent timestamp
func (m *MockNotificationRepository) ListUnsent(ctx context.Context) ([]*domain.Notification, error) {
	var out []*domain.Notification
	for _, n := range m.Notifications {
		if n.SentAt == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// MarkSent stamps the notification as delivered
func (m *MockNotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	for _, n := range m.Notifications {
		if n.ID == id {
			if n.SentAt != nil {
				return domain.ErrNotificationNotFound
			}
			n.SentAt = &sentAt
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// InitiateCall captures one InitiateDebit call
type InitiateCall struct {
	LoginID     string
	AccountIBAN string
	Order       domain.DebitOrder
}

// MockBankClient is a scriptable mock implementation of domain.BankClient
type MockBankClient struct {
	ConnectionsMap map[string]domain.BankConnection

	// InitiateResult and InitiateErr script InitiateDebit; InitiateFn wins
	// when set. Confirm and Form follow the same pattern.
	InitiateResult *domain.InitiateResult
	InitiateErr    error
	InitiateFn     func(loginID, accountIBAN string, order domain.DebitOrder) (*domain.InitiateResult, error)

	ConfirmResult *domain.InitiateResult
	ConfirmErr    error
	ConfirmFn     func(loginID, token, tan string) (*domain.InitiateResult, error)

	Form    domain.ChallengeForm
	FormErr error

	InitiateCalls []InitiateCall
	ConfirmCalls  []string
}

// ListConnections returns the scripted connection map
func (m *MockBankClient) ListConnections(ctx context.Context) (map[string]domain.BankConnection, error) {
	return m.ConnectionsMap, nil
}

// InitiateDebit records the call and returns the scripted result
func (m *MockBankClient) InitiateDebit(ctx context.Context, loginID, accountIBAN string, order domain.DebitOrder) (*domain.InitiateResult, error) {
	m.InitiateCalls = append(m.InitiateCalls, InitiateCall{LoginID: loginID, AccountIBAN: accountIBAN, Order: order})
	if m.InitiateFn != nil {
		return m.InitiateFn(loginID, accountIBAN, order)
	}
	if m.InitiateErr != nil {
		return nil, m.InitiateErr
	}
	if m.InitiateResult != nil {
		return m.InitiateResult, nil
	}
	return &domain.InitiateResult{Status: domain.InitiateCompleted}, nil
}

// ConfirmChallenge records the TAN and returns the scripted result
func (m *MockBankClient) ConfirmChallenge(ctx context.Context, loginID, token, tan string) (*domain.InitiateResult, error) {
	m.ConfirmCalls = append(m.ConfirmCalls, tan)
	if m.ConfirmFn != nil {
		return m.ConfirmFn(loginID, token, tan)
	}
	if m.ConfirmErr != nil {
		return nil, m.ConfirmErr
	}
	if m.ConfirmResult != nil {
		return m.ConfirmResult, nil
	}
	return &domain.InitiateResult{Status: domain.InitiateCompleted}, nil
}

// GetChallengeForm returns the scripted form
func (m *MockBankClient) GetChallengeForm(ctx context.Context, loginID, token string) (domain.ChallengeForm, error) {
	if m.FormErr != nil {
		return nil, m.FormErr
	}
	return m.Form, nil
}

// MockExporter is a mock implementation of domain.Exporter
type MockExporter struct {
	Payload   []byte
	Err       error
	ExportFn  func(batch domain.ExportBatch) ([]byte, error)
	LastBatch domain.ExportBatch
	Calls     int
}

// Export records the batch and returns the scripted payload
func (m *MockExporter) Export(batch domain.ExportBatch) ([]byte, error) {
	m.Calls++
	m.LastBatch = batch
	if m.ExportFn != nil {
		return m.ExportFn(batch)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Payload != nil {
		return m.Payload, nil
	}
	return []byte("<Document/>"), nil
}

// MemoryArchive is an in-memory implementation of storage.ExportArchive
type MemoryArchive struct {
	Objects map[string][]byte
	PutErr  error
}

// NewMemoryArchive creates a new MemoryArchive
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{Objects: make(map[string][]byte)}
}

// Put stores the payload under the batch key
func (m *MemoryArchive) Put(ctx context.Context, batchID uuid.UUID, payload []byte) (string, error) {
	if m.PutErr != nil {
		return "", m.PutErr
	}
	path := "batches/" + batchID.String() + ".xml"
	m.Objects[path] = payload
	return path, nil
}

// Delete removes a stored payload
func (m *MemoryArchive) Delete(ctx context.Context, objectPath string) error {
	delete(m.Objects, objectPath)
	return nil
}

// CapturePublisher collects published events for assertions
type CapturePublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

// Publish appends the event
func (p *CapturePublisher) Publish(event websocket.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of everything published so far
func (p *CapturePublisher) Events() []websocket.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]websocket.Event, len(p.events))
	copy(out, p.events)
	return out
}
