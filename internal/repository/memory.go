package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lmsledger/backend/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryStore is a LedgerStore held in process memory. Transactions are
// serialised by a single mutex and applied to a private copy that replaces
// the live state on success, so a failed transaction leaves nothing behind.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type rewardKey struct {
	studentID  int64
	sourceKind models.SourceKind
	sourceID   int64
}

type memState struct {
	students     map[int64]bool
	wallets      map[int64]models.Wallet // by student id
	transactions []models.Transaction
	withdrawals  map[int64]models.WithdrawalRequest
	rewards      map[rewardKey]models.Reward
	references   map[string]bool

	walletSeq, txSeq, withdrawalSeq, rewardSeq int64
}

// NewMemoryStore creates a store that knows the given student ids.
func NewMemoryStore(studentIDs ...int64) *MemoryStore {
	st := &memState{
		students:    make(map[int64]bool),
		wallets:     make(map[int64]models.Wallet),
		withdrawals: make(map[int64]models.WithdrawalRequest),
		rewards:     make(map[rewardKey]models.Reward),
		references:  make(map[string]bool),
	}
	for _, id := range studentIDs {
		st.students[id] = true
	}
	return &MemoryStore{state: st}
}

// AddStudent registers a student so a wallet can be opened for them.
func (s *MemoryStore) AddStudent(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.students[id] = true
}

func (st *memState) clone() *memState {
	c := &memState{
		students:      make(map[int64]bool, len(st.students)),
		wallets:       make(map[int64]models.Wallet, len(st.wallets)),
		transactions:  append([]models.Transaction(nil), st.transactions...),
		withdrawals:   make(map[int64]models.WithdrawalRequest, len(st.withdrawals)),
		rewards:       make(map[rewardKey]models.Reward, len(st.rewards)),
		references:    make(map[string]bool, len(st.references)),
		walletSeq:     st.walletSeq,
		txSeq:         st.txSeq,
		withdrawalSeq: st.withdrawalSeq,
		rewardSeq:     st.rewardSeq,
	}
	for k, v := range st.students {
		c.students[k] = v
	}
	for k, v := range st.wallets {
		c.wallets[k] = v
	}
	for k, v := range st.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range st.rewards {
		c.rewards[k] = v
	}
	for k, v := range st.references {
		c.references[k] = v
	}
	return c
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.state.clone()
	if err := fn(&memoryTx{st: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *MemoryStore) GetWallet(ctx context.Context, studentID int64) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.state.wallets[studentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (s *MemoryStore) CountTransactions(ctx context.Context, studentID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.state.transactions {
		if t.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, studentID int64, limit int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// transactions are appended in id order; walk backwards for newest first
	txs := []models.Transaction{}
	for i := len(s.state.transactions) - 1; i >= 0 && len(txs) < limit; i-- {
		if t := s.state.transactions[i]; t.StudentID == studentID {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

func (s *MemoryStore) GetWithdrawalRequest(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.state.withdrawals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) ListWithdrawalRequests(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := []models.WithdrawalRequest{}
	for _, r := range s.state.withdrawals {
		if filter.StudentID != nil && r.StudentID != *filter.StudentID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		reqs = append(reqs, r)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID > reqs[j].ID })

	if filter.Offset >= len(reqs) {
		return []models.WithdrawalRequest{}, nil
	}
	reqs = reqs[filter.Offset:]
	if filter.Limit > 0 && len(reqs) > filter.Limit {
		reqs = reqs[:filter.Limit]
	}
	return reqs, nil
}

func (s *MemoryStore) ListRewards(ctx context.Context, studentID int64) ([]models.Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rewards := []models.Reward{}
	for _, r := range s.state.rewards {
		if r.StudentID == studentID {
			rewards = append(rewards, r)
		}
	}
	sort.Slice(rewards, func(i, j int) bool { return rewards[i].ID > rewards[j].ID })
	return rewards, nil
}

func (s *MemoryStore) ListWalletStudentIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.state.wallets))
	for id := range s.state.wallets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type memoryTx struct {
	st *memState
}

func (t *memoryTx) LockWallet(ctx context.Context, studentID int64, create bool) (*models.Wallet, error) {
	if w, ok := t.st.wallets[studentID]; ok {
		return &w, nil
	}
	if !create || !t.st.students[studentID] {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	t.st.walletSeq++
	w := models.Wallet{
		ID:        t.st.walletSeq,
		StudentID: studentID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.st.wallets[studentID] = w
	return &w, nil
}

func (t *memoryTx) UpdateWalletBalance(ctx context.Context, w *models.Wallet, balance decimal.Decimal, at time.Time) error {
	current, ok := t.st.wallets[w.StudentID]
	if !ok || current.ID != w.ID || current.Version != w.Version {
		return fmt.Errorf("%w: wallet %d", ErrConflict, w.ID)
	}
	if balance.IsNegative() {
		return fmt.Errorf("wallet %d: balance would be negative", w.ID)
	}

	w.Balance = balance
	w.Version++
	w.UpdatedAt = at
	t.st.wallets[w.StudentID] = *w
	return nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if t.st.references[txn.ReferenceNumber] {
		return fmt.Errorf("%w: reference %s", ErrDuplicate, txn.ReferenceNumber)
	}
	if !txn.Amount.IsPositive() {
		return fmt.Errorf("transaction amount must be positive")
	}
	t.st.txSeq++
	txn.ID = t.st.txSeq
	t.st.references[txn.ReferenceNumber] = true
	t.st.transactions = append(t.st.transactions, *txn)
	return nil
}

func (t *memoryTx) SumTransactions(ctx context.Context, studentID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, txn := range t.st.transactions {
		if txn.StudentID == studentID {
			sum = sum.Add(txn.Signed())
		}
	}
	return sum, nil
}

func (t *memoryTx) InsertWithdrawalRequest(ctx context.Context, r *models.WithdrawalRequest) error {
	t.st.withdrawalSeq++
	r.ID = t.st.withdrawalSeq
	t.st.withdrawals[r.ID] = *r
	return nil
}

func (t *memoryTx) LockWithdrawalRequest(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	r, ok := t.st.withdrawals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memoryTx) UpdateWithdrawalRequest(ctx context.Context, r *models.WithdrawalRequest) error {
	if _, ok := t.st.withdrawals[r.ID]; !ok {
		return fmt.Errorf("%w: withdrawal request %d", ErrNotFound, r.ID)
	}
	t.st.withdrawals[r.ID] = *r
	return nil
}

func (t *memoryTx) InsertReward(ctx context.Context, r *models.Reward) error {
	key := rewardKey{studentID: r.StudentID, sourceKind: r.SourceKind, sourceID: r.SourceID}
	if _, ok := t.st.rewards[key]; ok {
		return fmt.Errorf("%w: reward for %s %d", ErrDuplicate, r.SourceKind, r.SourceID)
	}
	t.st.rewardSeq++
	r.ID = t.st.rewardSeq
	t.st.rewards[key] = *r
	return nil
}
