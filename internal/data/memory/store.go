// Package memory provides an in-memory engine.Store. It mirrors the
// transactional semantics of the PostgreSQL store closely enough for tests:
// RunAtomic serializes units of work under one mutex and rolls the state back
// on error, so partial effects are never observable.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arena-wallet-ledger/internal/domain/outbox"
	"github.com/arena-wallet-ledger/internal/domain/shared"
	"github.com/arena-wallet-ledger/internal/domain/transaction"
	"github.com/arena-wallet-ledger/internal/domain/wallet"
	"github.com/arena-wallet-ledger/internal/engine"
)

type state struct {
	wallets      map[uuid.UUID]*wallet.Wallet
	owners       map[string]uuid.UUID
	records      map[string]*transaction.Record // keyed by reference code
	nextRecordID int64
	messages     map[int64]*outbox.Message
	nextMsgID    int64
}

func newState() *state {
	return &state{
		wallets:      make(map[uuid.UUID]*wallet.Wallet),
		owners:       make(map[string]uuid.UUID),
		records:      make(map[string]*transaction.Record),
		nextRecordID: 1,
		messages:     make(map[int64]*outbox.Message),
		nextMsgID:    1,
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextRecordID = s.nextRecordID
	c.nextMsgID = s.nextMsgID
	for id, w := range s.wallets {
		cw := *w
		c.wallets[id] = &cw
	}
	for owner, id := range s.owners {
		c.owners[owner] = id
	}
	for ref, rec := range s.records {
		c.records[ref] = cloneRecord(rec)
	}
	for id, m := range s.messages {
		cm := *m
		c.messages[id] = &cm
	}
	return c
}

func cloneRecord(rec *transaction.Record) *transaction.Record {
	c := *rec
	if rec.CounterpartyWalletID != nil {
		id := *rec.CounterpartyWalletID
		c.CounterpartyWalletID = &id
	}
	if rec.BalanceAfter != nil {
		b := *rec.BalanceAfter
		c.BalanceAfter = &b
	}
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Store is an in-memory engine.Store
type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

// Stores returns repositories that lock per operation
func (s *Store) Stores() engine.Stores {
	return stores(s, false)
}

// RunAtomic runs fn under the store mutex against a restorable snapshot.
// Holding the mutex for the whole unit gives the same isolation the
// PostgreSQL store gets from row locks, and the snapshot gives rollback.
func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, st engine.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, stores(s, true)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func stores(s *Store, inTx bool) engine.Stores {
	base := repoBase{store: s, inTx: inTx}
	return engine.Stores{
		Wallets:      &walletRepo{base},
		Transactions: &transactionRepo{base},
		Outbox:       &outboxRepo{base},
	}
}

type repoBase struct {
	store *Store
	inTx  bool
}

func (r *repoBase) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

type walletRepo struct{ repoBase }

func (r *walletRepo) Create(_ context.Context, w *wallet.Wallet) error {
	defer r.lock()()

	st := r.store.state
	if _, ok := st.owners[w.OwnerID]; ok {
		return wallet.ErrDuplicateOwner{OwnerID: w.OwnerID}
	}
	cw := *w
	st.wallets[w.ID] = &cw
	st.owners[w.OwnerID] = w.ID
	return nil
}

func (r *walletRepo) GetByID(_ context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	defer r.lock()()

	w, ok := r.store.state.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound{WalletID: id}
	}
	cw := *w
	return &cw, nil
}

func (r *walletRepo) GetByOwnerID(_ context.Context, ownerID string) (*wallet.Wallet, error) {
	defer r.lock()()

	id, ok := r.store.state.owners[ownerID]
	if !ok {
		return nil, nil
	}
	cw := *r.store.state.wallets[id]
	return &cw, nil
}

func (r *walletRepo) Update(_ context.Context, w *wallet.Wallet) error {
	defer r.lock()()

	st := r.store.state
	current, ok := st.wallets[w.ID]
	if !ok {
		return wallet.ErrWalletNotFound{WalletID: w.ID}
	}
	if current.Version != w.Version-1 {
		return wallet.ErrConcurrentModification{WalletID: w.ID}
	}
	cw := *w
	st.wallets[w.ID] = &cw
	return nil
}

func (r *walletRepo) LockForUpdate(_ context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	// The store mutex is already held for the whole unit of work, which
	// subsumes a row lock.
	defer r.lock()()

	w, ok := r.store.state.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound{WalletID: id}
	}
	cw := *w
	return &cw, nil
}

type transactionRepo struct{ repoBase }

func (r *transactionRepo) Create(_ context.Context, record *transaction.Record) error {
	defer r.lock()()

	st := r.store.state
	if _, ok := st.records[record.ReferenceCode]; ok {
		return transaction.ErrDuplicateReference{ReferenceCode: record.ReferenceCode}
	}
	record.ID = st.nextRecordID
	st.nextRecordID++
	st.records[record.ReferenceCode] = cloneRecord(record)
	return nil
}

func (r *transactionRepo) GetByReferenceCode(_ context.Context, referenceCode string) (*transaction.Record, error) {
	defer r.lock()()

	rec, ok := r.store.state.records[referenceCode]
	if !ok {
		return nil, transaction.ErrRecordNotFound{ReferenceCode: referenceCode}
	}
	return cloneRecord(rec), nil
}

func (r *transactionRepo) GetByID(_ context.Context, id int64) (*transaction.Record, error) {
	defer r.lock()()

	for _, rec := range r.store.state.records {
		if rec.ID == id {
			return cloneRecord(rec), nil
		}
	}
	return nil, transaction.ErrRecordNotFound{ReferenceCode: strconv.FormatInt(id, 10)}
}

func (r *transactionRepo) Finalize(_ context.Context, referenceCode string, fin transaction.Finalization) (bool, error) {
	defer r.lock()()

	rec, ok := r.store.state.records[referenceCode]
	if !ok || rec.Status != shared.TransactionStatusPending {
		return false, nil
	}

	rec.Status = fin.Status
	rec.Fee = fin.Fee
	rec.FeePolicyVersion = fin.FeePolicyVersion
	rec.BalanceAfter = fin.BalanceAfter
	rec.FailureReason = string(fin.FailureReason)
	if fin.PaymentRef != "" {
		rec.PaymentRef = fin.PaymentRef
	}
	completedAt := fin.CompletedAt
	rec.CompletedAt = &completedAt
	return true, nil
}

func (r *transactionRepo) ListByWallet(_ context.Context, walletID uuid.UUID, filter transaction.HistoryFilter) ([]*transaction.Record, error) {
	defer r.lock()()

	matches := r.matching(walletID, filter)
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			return nil, nil
		}
		matches = matches[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matches) {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func (r *transactionRepo) CountByWallet(_ context.Context, walletID uuid.UUID, filter transaction.HistoryFilter) (int64, error) {
	defer r.lock()()

	return int64(len(r.matching(walletID, filter))), nil
}

func (r *transactionRepo) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]*transaction.Record, error) {
	defer r.lock()()

	var matches []*transaction.Record
	for _, rec := range r.store.state.records {
		if rec.Status == shared.TransactionStatusPending && rec.CreatedAt.Before(cutoff) {
			matches = append(matches, cloneRecord(rec))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *transactionRepo) matching(walletID uuid.UUID, filter transaction.HistoryFilter) []*transaction.Record {
	var matches []*transaction.Record
	for _, rec := range r.store.state.records {
		if rec.WalletID != walletID {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		if filter.From != nil && rec.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !rec.CreatedAt.Before(*filter.To) {
			continue
		}
		matches = append(matches, cloneRecord(rec))
	}
	return matches
}

type outboxRepo struct{ repoBase }

func (r *outboxRepo) Create(_ context.Context, message *outbox.Message) error {
	defer r.lock()()

	st := r.store.state
	message.ID = st.nextMsgID
	st.nextMsgID++
	cm := *message
	st.messages[message.ID] = &cm
	return nil
}

func (r *outboxRepo) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	defer r.lock()()

	var pending []*outbox.Message
	for _, m := range r.store.state.messages {
		if m.Status == shared.OutboxStatusPending {
			cm := *m
			pending = append(pending, &cm)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	if limit > 0 && limit < len(pending) {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *outboxRepo) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	defer r.lock()()

	m, ok := r.store.state.messages[id]
	if !ok {
		return outbox.ErrMessageNotFound{ID: id}
	}
	m.Status = status
	now := time.Now()
	m.LastAttemptAt = &now
	return nil
}

func (r *outboxRepo) IncrementAttempts(_ context.Context, id int64) error {
	defer r.lock()()

	m, ok := r.store.state.messages[id]
	if !ok {
		return outbox.ErrMessageNotFound{ID: id}
	}
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
	return nil
}

func (r *outboxRepo) Delete(_ context.Context, id int64) error {
	defer r.lock()()

	if _, ok := r.store.state.messages[id]; !ok {
		return outbox.ErrMessageNotFound{ID: id}
	}
	delete(r.store.state.messages, id)
	return nil
}

func (r *outboxRepo) GetByReferenceCode(_ context.Context, referenceCode string) (*outbox.Message, error) {
	defer r.lock()()

	var found *outbox.Message
	for _, m := range r.store.state.messages {
		if m.ReferenceCode == referenceCode && (found == nil || m.ID > found.ID) {
			found = m
		}
	}
	if found == nil {
		return nil, outbox.ErrMessageNotFound{ID: 0}
	}
	cm := *found
	return &cm, nil
}
