package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/google/uuid"
)

// In-memory fakes mirroring the persistence semantics of the real
// repositories: compare-and-set transitions, live-code uniqueness, and
// paid_out_at as the completion guard.

type memTxRepo struct {
	mu  sync.Mutex
	txs map[string]*domain.Transaction
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{txs: map[string]*domain.Transaction{}}
}

func (r *memTxRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tx
	r.txs[tx.ID] = &cp
	return nil
}

func (r *memTxRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *memTxRepo) GetPendingWithdrawalByMemo(ctx context.Context, memo string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.Memo == memo && tx.Kind == domain.KindWithdrawal && tx.Actionable() {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *memTxRepo) Transition(ctx context.Context, id string, from []domain.Status, t gateway.StatusTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	matched := false
	for _, s := range from {
		if tx.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return &domain.StaleStateError{TransactionID: id, Current: tx.Status, Requested: t.To}
	}
	tx.Status = t.To
	if t.StatusMessage != "" {
		tx.StatusMessage = t.StatusMessage
	}
	if t.LedgerTransactionRef != "" {
		tx.LedgerTransactionRef = t.LedgerTransactionRef
	}
	if t.ExternalTransactionRef != "" {
		tx.ExternalTransactionRef = t.ExternalTransactionRef
	}
	if t.CompletedAt != nil {
		tx.CompletedAt = t.CompletedAt
	}
	tx.UpdatedAt = time.Now()
	return nil
}

func (r *memTxRepo) UpdateAmounts(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.txs[tx.ID]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	stored.AmountFee = tx.AmountFee
	stored.AmountOut = tx.AmountOut
	stored.ToAddress = tx.ToAddress
	stored.ExternalAgentID = tx.ExternalAgentID
	return nil
}

func (r *memTxRepo) List(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range r.txs {
		if len(out) == limit {
			break
		}
		cp := *tx
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memTxRepo) WithTx(tx gateway.TransactionObject) gateway.TransactionRepository { return r }

type memPayoutRepo struct {
	mu      sync.Mutex
	nextID  int64
	payouts map[int64]*domain.CashPayout
}

func newMemPayoutRepo() *memPayoutRepo {
	return &memPayoutRepo{payouts: map[int64]*domain.CashPayout{}}
}

func (r *memPayoutRepo) Create(ctx context.Context, p *domain.CashPayout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payouts {
		if existing.PickupCode == p.PickupCode && existing.PaidOutAt == nil {
			return gateway.ErrPickupCodeCollision
		}
	}
	r.nextID++
	p.ID = r.nextID
	cp := *p
	r.payouts[p.ID] = &cp
	return nil
}

func (r *memPayoutRepo) GetByTransactionID(ctx context.Context, txID string) (*domain.CashPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payouts {
		if p.TransactionID == txID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPayoutNotFound
}

func (r *memPayoutRepo) GetByCode(ctx context.Context, code string) (*domain.CashPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payouts {
		if p.PickupCode == code && p.PaidOutAt == nil {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPayoutNotFound
}

func (r *memPayoutRepo) GetAnyByCode(ctx context.Context, code string) (*domain.CashPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payouts {
		if p.PickupCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPayoutNotFound
}

func (r *memPayoutRepo) ListReady(ctx context.Context, filter domain.AgentFilter) ([]*domain.CashPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CashPayout
	now := time.Now()
	for _, p := range r.payouts {
		if p.Ready && p.PaidOutAt == nil && now.Before(p.ExpiresAt) && matchesAgent(p, filter) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPayoutRepo) ListAll(ctx context.Context, filter domain.AgentFilter) ([]*domain.CashPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CashPayout
	for _, p := range r.payouts {
		if matchesAgent(p, filter) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPayoutRepo) ListPending(ctx context.Context, now time.Time) ([]*domain.CashPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CashPayout
	for _, p := range r.payouts {
		if !p.Ready && p.PaidOutAt == nil && now.Before(p.ExpiresAt) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func matchesAgent(p *domain.CashPayout, filter domain.AgentFilter) bool {
	if filter.ID == nil {
		return true
	}
	return p.AgentID != nil && *p.AgentID == *filter.ID
}

func (r *memPayoutRepo) MarkReady(ctx context.Context, payoutID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[payoutID]
	if !ok || p.Ready || p.PaidOutAt != nil {
		return false, nil
	}
	p.Ready = true
	return true, nil
}

func (r *memPayoutRepo) Complete(ctx context.Context, payoutID int64, paidAt time.Time, paidBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[payoutID]
	if !ok || p.PaidOutAt != nil {
		return false, nil
	}
	at := paidAt
	p.PaidOutAt = &at
	p.PaidOutBy = paidBy
	return true, nil
}

func (r *memPayoutRepo) WithTx(tx gateway.TransactionObject) gateway.PayoutRepository { return r }

type memAgentRepo struct {
	agents map[int64]*domain.Agent
}

func (r *memAgentRepo) GetByID(ctx context.Context, id int64) (*domain.Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	return a, nil
}

func (r *memAgentRepo) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*domain.Agent, error) {
	for _, a := range r.agents {
		if a.PublicID == publicID {
			return a, nil
		}
	}
	return nil, domain.ErrAgentNotFound
}

func (r *memAgentRepo) ListActive(ctx context.Context) ([]*domain.Agent, error) {
	var out []*domain.Agent
	for _, a := range r.agents {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

type memIdemRepo struct {
	mu    sync.Mutex
	store map[string]gateway.CachedReceipt
}

func newMemIdemRepo() *memIdemRepo {
	return &memIdemRepo{store: map[string]gateway.CachedReceipt{}}
}

func (r *memIdemRepo) Get(ctx context.Context, key string) (*gateway.CachedReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	receipt, ok := r.store[key]
	if !ok {
		return nil, nil
	}
	cp := receipt
	return &cp, nil
}

func (r *memIdemRepo) Save(ctx context.Context, key string, receipt gateway.CachedReceipt, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[key] = receipt
	return nil
}

type fakeUow struct{}

func (fakeUow) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, gateway.TransactionKey, struct{}{}))
}

type recordedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type memPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *memPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{exchange, routingKey, body})
	return nil
}

func (p *memPublisher) recorded() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

type fakeLedger struct {
	account string
	send    func(tx *domain.Transaction) (string, error)
}

func (l *fakeLedger) ReceiveAccount() string {
	if l.account == "" {
		return "GRECEIVEACCOUNT"
	}
	return l.account
}

func (l *fakeLedger) SendPayment(ctx context.Context, tx *domain.Transaction) (string, error) {
	if l.send == nil {
		return "ledgerhash", nil
	}
	return l.send(tx)
}

type railCall struct {
	refund bool
	in     gateway.TransferInstruction
}

type fakeRail struct {
	mu          sync.Mutex
	calls       []railCall
	transferErr error
	refundErr   error
}

func (r *fakeRail) Transfer(ctx context.Context, in gateway.TransferInstruction) (*gateway.TransferConfirmation, error) {
	r.mu.Lock()
	r.calls = append(r.calls, railCall{in: in})
	r.mu.Unlock()
	if r.transferErr != nil {
		return nil, r.transferErr
	}
	return &gateway.TransferConfirmation{Raw: map[string]interface{}{"reference": "BANK-1"}}, nil
}

func (r *fakeRail) Refund(ctx context.Context, in gateway.TransferInstruction) error {
	r.mu.Lock()
	r.calls = append(r.calls, railCall{refund: true, in: in})
	r.mu.Unlock()
	return r.refundErr
}

func (r *fakeRail) refundCalls() []railCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []railCall
	for _, c := range r.calls {
		if c.refund {
			out = append(out, c)
		}
	}
	return out
}
