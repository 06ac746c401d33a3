package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/repository/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	mu    sync.Mutex
	Users map[string]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[string]*domain.User)}
}

// GetByAuth0ID retrieves a user by Auth0 ID
func (m *MockUserRepository) GetByAuth0ID(ctx context.Context, auth0ID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.Users[auth0ID]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// CreateOrGetByAuth0ID creates or retrieves a user by Auth0 ID
func (m *MockUserRepository) CreateOrGetByAuth0ID(ctx context.Context, auth0ID, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.Users[auth0ID]; ok {
		return user, nil
	}
	user := &domain.User{ID: uuid.New(), Auth0ID: auth0ID, Email: email, CreatedAt: time.Now()}
	m.Users[auth0ID] = user
	return user, nil
}

// MockWalletRepository is a mock implementation of domain.WalletRepository
type MockWalletRepository struct {
	mu      sync.RWMutex
	Wallets map[uuid.UUID]*domain.Wallet
	order   []uuid.UUID
}

// NewMockWalletRepository creates a new MockWalletRepository
func NewMockWalletRepository() *MockWalletRepository {
	return &MockWalletRepository{Wallets: make(map[uuid.UUID]*domain.Wallet)}
}

// AddWallet adds a wallet to the mock repository (helper for tests)
func (m *MockWalletRepository) AddWallet(wallet *domain.Wallet) *domain.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	if _, exists := m.Wallets[wallet.ID]; !exists {
		m.order = append(m.order, wallet.ID)
	}
	m.Wallets[wallet.ID] = wallet
	return wallet
}

// Create creates a new wallet, keeping at most one main wallet per user
func (m *MockWalletRepository) Create(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error) {
	copied := *wallet
	copied.ID = uuid.New()
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	if copied.IsMainWallet {
		m.clearMain(copied.UserID)
	}
	return m.AddWallet(&copied), nil
}

func (m *MockWalletRepository) clearMain(userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.Wallets {
		if w.UserID == userID {
			w.IsMainWallet = false
		}
	}
}

// GetByID retrieves a wallet owned by userID
func (m *MockWalletRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.Wallets[id]; ok && w.UserID == userID {
		return w, nil
	}
	return nil, domain.ErrWalletNotFound
}

// GetAllByUser lists a user's wallets in insertion order
func (m *MockWalletRepository) GetAllByUser(ctx context.Context, userID uuid.UUID, filter domain.WalletFilter) ([]*domain.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Wallet
	for _, id := range m.order {
		w, ok := m.Wallets[id]
		if !ok || w.UserID != userID {
			continue
		}
		if w.Hidden && !filter.IncludeHidden {
			continue
		}
		result = append(result, w)
	}
	return result, nil
}

// Update replaces a wallet's mutable fields
func (m *MockWalletRepository) Update(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error) {
	if _, err := m.GetByID(ctx, wallet.UserID, wallet.ID); err != nil {
		return nil, err
	}
	if wallet.IsMainWallet {
		m.clearMain(wallet.UserID)
	}
	wallet.UpdatedAt = time.Now()
	return m.AddWallet(wallet), nil
}

// Delete removes a wallet
func (m *MockWalletRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.Wallets[id]; !ok || w.UserID != userID {
		return domain.ErrWalletNotFound
	}
	delete(m.Wallets, id)
	return nil
}

// DeleteAllByUser removes every wallet of a user
func (m *MockWalletRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.Wallets {
		if w.UserID == userID {
			delete(m.Wallets, id)
		}
	}
	return nil
}

// MockTransactionRepository is an in-memory ledger with the same filter semantics as the SQL store
type MockTransactionRepository struct {
	mu           sync.RWMutex
	Transactions []*domain.Transaction
	FindFn       func(filter domain.LedgerFilter) ([]*domain.Transaction, error)
	SumCalls     int
}

// NewMockTransactionRepository creates a new MockTransactionRepository
func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{}
}

// AddTransaction appends a ledger row (helper for tests)
func (m *MockTransactionRepository) AddTransaction(transaction *domain.Transaction) *domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if transaction.ID == uuid.Nil {
		transaction.ID = uuid.New()
	}
	m.Transactions = append(m.Transactions, transaction)
	return transaction
}

// Create appends a new ledger row
func (m *MockTransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	copied := *transaction
	copied.ID = uuid.New()
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	return m.AddTransaction(&copied), nil
}

// GetByID retrieves a ledger row owned by userID
func (m *MockTransactionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.Transactions {
		if t.ID == id && t.UserID == userID {
			return t, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

// Update replaces a ledger row
func (m *MockTransactionRepository) Update(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.Transactions {
		if t.ID == transaction.ID && t.UserID == transaction.UserID {
			copied := *transaction
			copied.UpdatedAt = time.Now()
			m.Transactions[i] = &copied
			return &copied, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

// Delete removes a ledger row
func (m *MockTransactionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.Transactions {
		if t.ID == id && t.UserID == userID {
			m.Transactions = append(m.Transactions[:i], m.Transactions[i+1:]...)
			return nil
		}
	}
	return domain.ErrTransactionNotFound
}

// DeleteAllByUser removes every ledger row of a user
func (m *MockTransactionRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Transactions[:0]
	for _, t := range m.Transactions {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	m.Transactions = kept
	return nil
}

func matchesLedgerFilter(t *domain.Transaction, f domain.LedgerFilter) bool {
	if t.UserID != f.UserID {
		return false
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.WalletID != nil && t.WalletID != *f.WalletID {
		return false
	}
	if f.DestinationWalletID != nil && (t.DestinationWalletID == nil || *t.DestinationWalletID != *f.DestinationWalletID) {
		return false
	}
	if f.AnyWalletID != nil && t.WalletID != *f.AnyWalletID &&
		(t.DestinationWalletID == nil || *t.DestinationWalletID != *f.AnyWalletID) {
		return false
	}
	if f.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *f.CategoryID) {
		return false
	}
	if f.CategoryIDs != nil {
		if t.CategoryID == nil {
			return false
		}
		found := false
		for _, id := range f.CategoryIDs {
			if id == *t.CategoryID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Amount != nil && !t.Amount.Equal(*f.Amount) {
		return false
	}
	if f.Window != nil && !f.Window.Contains(t.Date) {
		return false
	}
	return true
}

// Find returns matching rows ordered per filter.Order
func (m *MockTransactionRepository) Find(ctx context.Context, filter domain.LedgerFilter) ([]*domain.Transaction, error) {
	if m.FindFn != nil {
		return m.FindFn(filter)
	}
	m.mu.RLock()
	var result []*domain.Transaction
	for _, t := range m.Transactions {
		if matchesLedgerFilter(t, filter) {
			result = append(result, t)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		switch filter.Order {
		case domain.OrderByAmountAsc:
			return result[i].Amount.LessThan(result[j].Amount)
		case domain.OrderByAmountDesc:
			return result[i].Amount.GreaterThan(result[j].Amount)
		}
		return result[i].Date.After(result[j].Date)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Sum totals the amounts of matching rows
func (m *MockTransactionRepository) Sum(ctx context.Context, filter domain.LedgerFilter) (decimal.Decimal, error) {
	m.mu.Lock()
	m.SumCalls++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, t := range m.Transactions {
		if matchesLedgerFilter(t, filter) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

// SummarizeWallets aggregates the four movement kinds per wallet
func (m *MockTransactionRepository) SummarizeWallets(ctx context.Context, userID uuid.UUID, walletIDs []uuid.UUID, window *domain.Window) ([]*domain.WalletMovementSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(walletIDs))
	for _, id := range walletIDs {
		wanted[id] = true
	}
	summaries := make(map[uuid.UUID]*domain.WalletMovementSummary)
	get := func(id uuid.UUID) *domain.WalletMovementSummary {
		if len(wanted) > 0 && !wanted[id] {
			return nil
		}
		s, ok := summaries[id]
		if !ok {
			s = &domain.WalletMovementSummary{WalletID: id}
			summaries[id] = s
		}
		return s
	}

	for _, t := range m.Transactions {
		if t.UserID != userID || (window != nil && !window.Contains(t.Date)) {
			continue
		}
		switch t.Type {
		case domain.TransactionTypeIncome:
			if s := get(t.WalletID); s != nil {
				s.SumIncome = s.SumIncome.Add(t.Amount)
			}
		case domain.TransactionTypeExpense:
			if s := get(t.WalletID); s != nil {
				s.SumExpense = s.SumExpense.Add(t.Amount)
			}
		case domain.TransactionTypeTransfer:
			if s := get(t.WalletID); s != nil {
				s.SumTransferOut = s.SumTransferOut.Add(t.Amount)
			}
			if t.DestinationWalletID != nil {
				if s := get(*t.DestinationWalletID); s != nil {
					s.SumTransferIn = s.SumTransferIn.Add(t.Amount)
				}
			}
		}
	}

	result := make([]*domain.WalletMovementSummary, 0, len(summaries))
	for _, s := range summaries {
		result = append(result, s)
	}
	return result, nil
}

// MockBudgetRepository is a mock implementation of domain.BudgetRepository
type MockBudgetRepository struct {
	mu      sync.RWMutex
	Budgets map[uuid.UUID]*domain.Budget
}

// NewMockBudgetRepository creates a new MockBudgetRepository
func NewMockBudgetRepository() *MockBudgetRepository {
	return &MockBudgetRepository{Budgets: make(map[uuid.UUID]*domain.Budget)}
}

// AddBudget adds a budget to the mock repository (helper for tests)
func (m *MockBudgetRepository) AddBudget(budget *domain.Budget) *domain.Budget {
	m.mu.Lock()
	defer m.mu.Unlock()
	if budget.ID == uuid.Nil {
		budget.ID = uuid.New()
	}
	m.Budgets[budget.ID] = budget
	return budget
}

// Create creates a new budget, enforcing unique names per user
func (m *MockBudgetRepository) Create(ctx context.Context, budget *domain.Budget) (*domain.Budget, error) {
	m.mu.RLock()
	for _, b := range m.Budgets {
		if b.UserID == budget.UserID && strings.EqualFold(b.Name, budget.Name) {
			m.mu.RUnlock()
			return nil, domain.ErrBudgetNameTaken
		}
	}
	m.mu.RUnlock()
	copied := *budget
	copied.ID = uuid.New()
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	return m.AddBudget(&copied), nil
}

// GetByID retrieves a budget owned by userID
func (m *MockBudgetRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.Budgets[id]; ok && b.UserID == userID {
		return b, nil
	}
	return nil, domain.ErrBudgetNotFound
}

// GetAllByUser lists a user's budgets by name
func (m *MockBudgetRepository) GetAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Budget
	for _, b := range m.Budgets {
		if b.UserID == userID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes a budget
func (m *MockBudgetRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.Budgets[id]; !ok || b.UserID != userID {
		return domain.ErrBudgetNotFound
	}
	delete(m.Budgets, id)
	return nil
}

// DeleteAllByUser removes every budget of a user
func (m *MockBudgetRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, b := range m.Budgets {
		if b.UserID == userID {
			delete(m.Budgets, id)
		}
	}
	return nil
}

// MockMilestoneRepository is a mock implementation of domain.MilestoneRepository
type MockMilestoneRepository struct {
	mu                sync.RWMutex
	Milestones        map[uuid.UUID]*domain.Milestone
	UpdateStatusCalls int
	UpdateStatusFn    func(userID, id uuid.UUID, status domain.MilestoneStatus, achievedAt *time.Time) error
}

// NewMockMilestoneRepository creates a new MockMilestoneRepository
func NewMockMilestoneRepository() *MockMilestoneRepository {
	return &MockMilestoneRepository{Milestones: make(map[uuid.UUID]*domain.Milestone)}
}

// AddMilestone adds a milestone to the mock repository (helper for tests)
func (m *MockMilestoneRepository) AddMilestone(milestone *domain.Milestone) *domain.Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()
	if milestone.ID == uuid.Nil {
		milestone.ID = uuid.New()
	}
	if milestone.Status == "" {
		milestone.Status = domain.MilestoneStatusPending
	}
	m.Milestones[milestone.ID] = milestone
	return milestone
}

// Create stores a new milestone
func (m *MockMilestoneRepository) Create(ctx context.Context, milestone *domain.Milestone) (*domain.Milestone, error) {
	copied := *milestone
	copied.ID = uuid.New()
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	return m.AddMilestone(&copied), nil
}

// GetByID returns a copy of a milestone owned by userID
func (m *MockMilestoneRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ms, ok := m.Milestones[id]; ok && ms.UserID == userID {
		copied := *ms
		return &copied, nil
	}
	return nil, domain.ErrMilestoneNotFound
}

// GetAllByUser lists a user's milestones with optional status filter and ordering
func (m *MockMilestoneRepository) GetAllByUser(ctx context.Context, userID uuid.UUID, filter domain.MilestoneFilter) ([]*domain.Milestone, error) {
	m.mu.RLock()
	var result []*domain.Milestone
	for _, ms := range m.Milestones {
		if ms.UserID != userID {
			continue
		}
		if filter.Status != nil && ms.Status != *filter.Status {
			continue
		}
		copied := *ms
		result = append(result, &copied)
	}
	m.mu.RUnlock()

	less := func(a, b *domain.Milestone) bool {
		switch filter.SortBy {
		case domain.MilestoneSortName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case domain.MilestoneSortCreatedAt:
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.TargetDate.Before(b.TargetDate)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if filter.Descending {
			return less(result[j], result[i])
		}
		return less(result[i], result[j])
	})
	return result, nil
}

// Update writes descriptive fields and conditions, leaving status and achieved_at untouched
func (m *MockMilestoneRepository) Update(ctx context.Context, milestone *domain.Milestone) (*domain.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Milestones[milestone.ID]
	if !ok || stored.UserID != milestone.UserID {
		return nil, domain.ErrMilestoneNotFound
	}
	stored.Name = milestone.Name
	stored.Description = milestone.Description
	stored.Icon = milestone.Icon
	stored.Color = milestone.Color
	stored.Conditions = milestone.Conditions
	stored.TargetDate = milestone.TargetDate
	stored.UpdatedAt = time.Now()
	copied := *stored
	return &copied, nil
}

// UpdateStatus writes status and achieved_at only
func (m *MockMilestoneRepository) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status domain.MilestoneStatus, achievedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateStatusCalls++
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(userID, id, status, achievedAt)
	}
	stored, ok := m.Milestones[id]
	if !ok || stored.UserID != userID {
		return domain.ErrMilestoneNotFound
	}
	stored.Status = status
	stored.AchievedAt = achievedAt
	return nil
}

// Delete removes a milestone
func (m *MockMilestoneRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms, ok := m.Milestones[id]; !ok || ms.UserID != userID {
		return domain.ErrMilestoneNotFound
	}
	delete(m.Milestones, id)
	return nil
}

// DeleteAllByUser removes every milestone of a user
func (m *MockMilestoneRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ms := range m.Milestones {
		if ms.UserID == userID {
			delete(m.Milestones, id)
		}
	}
	return nil
}

// Stored returns the persisted milestone without copying (helper for tests)
func (m *MockMilestoneRepository) Stored(id uuid.UUID) *domain.Milestone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Milestones[id]
}

// MockBackupStore is an in-memory implementation of storage.BackupStore
type MockBackupStore struct {
	mu      sync.RWMutex
	Objects map[string][]byte
	order   []string
	PutFn   func(key string, data []byte) error
}

// NewMockBackupStore creates a new MockBackupStore
func NewMockBackupStore() *MockBackupStore {
	return &MockBackupStore{Objects: make(map[string][]byte)}
}

// Put stores a copy of data under key
func (m *MockBackupStore) Put(ctx context.Context, key string, data []byte) error {
	if m.PutFn != nil {
		if err := m.PutFn(key, data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Objects[key]; !exists {
		m.order = append(m.order, key)
	}
	m.Objects[key] = append([]byte(nil), data...)
	return nil
}

// Get returns the object stored under key
func (m *MockBackupStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.Objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return append([]byte(nil), data...), nil
}

// List returns keys under prefix, most recently written first
func (m *MockBackupStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for i := len(m.order) - 1; i >= 0; i-- {
		if strings.HasPrefix(m.order[i], prefix) {
			keys = append(keys, m.order[i])
		}
	}
	return keys, nil
}

// GeneratePresignedURL returns a fake URL for key
func (m *MockBackupStore) GeneratePresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.Objects[key]; !ok {
		return "", storage.ErrObjectNotFound
	}
	return "https://backups.example.test/" + key + "?expires=" + expiry.String(), nil
}
