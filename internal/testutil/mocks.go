package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/cassiomorais/storepay/internal/fault"
	"github.com/cassiomorais/storepay/internal/infrastructure/confirmation"
	"github.com/cassiomorais/storepay/internal/infrastructure/gateway"
	"github.com/google/uuid"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is an in-memory payment.Repository that enforces
// receipt uniqueness like the real ledger.
type MockPaymentRepository struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]*payment.Record

	CreateFunc         func(ctx context.Context, r *payment.Record) error
	GetByReceiptIDFunc func(ctx context.Context, receiptID string) (*payment.Record, error)
	GetByOrderIDFunc   func(ctx context.Context, orderID string) (*payment.Record, error)
	ListByPayerFunc    func(ctx context.Context, payerEmail string) ([]*payment.Record, error)
	UpdateFunc         func(ctx context.Context, r *payment.Record) error
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		records: make(map[string]*payment.Record),
	}
}

// AddRecord pre-populates the mock with a record.
func (m *MockPaymentRepository) AddRecord(r *payment.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.records[r.ReceiptID] = &cp
}

// Count returns the number of stored records.
func (m *MockPaymentRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MockPaymentRepository) Create(ctx context.Context, r *payment.Record) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ReceiptID]; ok {
		return domainErrors.ErrDuplicateReceipt
	}
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.records[r.ReceiptID] = &cp
	return nil
}

func (m *MockPaymentRepository) GetByReceiptID(ctx context.Context, receiptID string) (*payment.Record, error) {
	if m.GetByReceiptIDFunc != nil {
		return m.GetByReceiptIDFunc(ctx, receiptID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[receiptID]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*payment.Record, error) {
	if m.GetByOrderIDFunc != nil {
		return m.GetByOrderIDFunc(ctx, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *payment.Record
	for _, r := range m.records {
		if r.OrderID == orderID && (latest == nil || r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, domainErrors.ErrPaymentNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockPaymentRepository) ListByPayer(ctx context.Context, payerEmail string) ([]*payment.Record, error) {
	if m.ListByPayerFunc != nil {
		return m.ListByPayerFunc(ctx, payerEmail)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*payment.Record, 0)
	for _, r := range m.records {
		if r.PayerEmail == payerEmail {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, r *payment.Record) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ReceiptID]; !ok {
		return domainErrors.ErrPaymentNotFound
	}
	cp := *r
	m.records[r.ReceiptID] = &cp
	return nil
}

// --- Order Repository Mock ---

// MockOrderRepository is an in-memory order.Repository.
type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order

	CreateFunc  func(ctx context.Context, o *order.Order) error
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	UpdateFunc  func(ctx context.Context, o *order.Order) error
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[uuid.UUID]*order.Order),
	}
}

// AddOrder pre-populates the mock with an order.
func (m *MockOrderRepository) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, o)
	}
	m.AddOrder(o)
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepository) Update(ctx context.Context, o *order.Order) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return domainErrors.ErrOrderNotFound
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory outbox that remembers inserted
// entries.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) (bool, error)
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns the inserted entries in insertion order.
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*outbox.Entry(nil), m.entries...)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*outbox.Entry
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending && len(pending) < limit {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.MarkPublished(time.Now())
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			return e.RecordFailure(), nil
		}
	}
	return false, nil
}

// --- Verification Cache Mock ---

// MockVerificationCache is an in-memory verification cache.
type MockVerificationCache struct {
	mu      sync.Mutex
	results map[string]payment.VerifyResult

	GetFunc func(ctx context.Context, receiptID string) (*payment.VerifyResult, bool, error)
	PutFunc func(ctx context.Context, receiptID string, result *payment.VerifyResult) error
}

func NewMockVerificationCache() *MockVerificationCache {
	return &MockVerificationCache{results: make(map[string]payment.VerifyResult)}
}

func (m *MockVerificationCache) Get(ctx context.Context, receiptID string) (*payment.VerifyResult, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, receiptID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[receiptID]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (m *MockVerificationCache) Put(ctx context.Context, receiptID string, result *payment.VerifyResult) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, receiptID, result)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[receiptID] = *result
	return nil
}

// Evict drops a cached entry, as expiry would.
func (m *MockVerificationCache) Evict(receiptID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, receiptID)
}

// --- Locker Mock ---

// MockLocker is an in-process lock table with the same busy semantics as
// the Redis lock manager. TTLs are ignored.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool

	WithLockFunc func(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

func (m *MockLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	if m.WithLockFunc != nil {
		return m.WithLockFunc(ctx, key, ttl, fn)
	}
	m.mu.Lock()
	if m.held[key] {
		m.mu.Unlock()
		return false, nil
	}
	m.held[key] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.held, key)
		m.mu.Unlock()
	}()
	return true, fn(ctx)
}

// --- Fault Checker Mock ---

// MockFaultChecker records the targets it was asked about.
type MockFaultChecker struct {
	mu    sync.Mutex
	calls []fault.Targets

	CheckFunc func(ctx context.Context, t fault.Targets) error
}

func (m *MockFaultChecker) Check(ctx context.Context, t fault.Targets) error {
	m.mu.Lock()
	m.calls = append(m.calls, t)
	m.mu.Unlock()
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, t)
	}
	return nil
}

// Calls returns how many checks were made.
func (m *MockFaultChecker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// --- Gateway Mock ---

// MockGateway is a mock payment gateway.
type MockGateway struct {
	mu    sync.Mutex
	calls []gateway.CancelRequest

	CancelFunc func(ctx context.Context, req gateway.CancelRequest) ([]byte, error)
}

func (m *MockGateway) Cancel(ctx context.Context, req gateway.CancelRequest) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, req)
	}
	return []byte(`{"status":200}`), nil
}

// CancelCalls returns the cancel requests seen so far.
func (m *MockGateway) CancelCalls() []gateway.CancelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.CancelRequest(nil), m.calls...)
}

// --- Confirmer Mock ---

// MockConfirmer is a mock payment confirmation client.
type MockConfirmer struct {
	mu    sync.Mutex
	calls int

	ConfirmFunc func(ctx context.Context, req confirmation.ConfirmRequest) (confirmation.Result, error)
}

func (m *MockConfirmer) Confirm(ctx context.Context, req confirmation.ConfirmRequest) (confirmation.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, req)
	}
	return confirmation.Result{Status: confirmation.StatusSuccess}, nil
}

func (m *MockConfirmer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
