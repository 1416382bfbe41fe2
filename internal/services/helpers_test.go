package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"fundledger/internal/models"
	"fundledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// retryTxRunner invokes the closure twice, the way the database runner
// does when the first attempt hits a serialization failure at commit.
type retryTxRunner struct{}

func (retryTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	if err := fn(nil); err != nil {
		return err
	}
	return fn(nil)
}

type failOnceTxRunner struct {
	mu     sync.Mutex
	failed bool
}

func (f *failOnceTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	f.mu.Lock()
	if !f.failed {
		f.failed = true
		f.mu.Unlock()
		return errors.New("storage unavailable")
	}
	f.mu.Unlock()
	return fn(nil)
}

type memAccountStore struct {
	mu    sync.Mutex
	byKey map[string]models.Account
	saves int
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{byKey: make(map[string]models.Account)}
}

func accountKey(userID string, accountType models.AccountType) string {
	return userID + "/" + string(accountType)
}

func (m *memAccountStore) Get(_ context.Context, userID string, accountType models.AccountType) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byKey[accountKey(userID, accountType)]
	if !ok {
		return models.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (m *memAccountStore) Save(_ context.Context, _ store.Execer, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[accountKey(account.UserID, account.AccountType)] = account
	m.saves++
	return nil
}

func (m *memAccountStore) ListFundedByType(_ context.Context, accountType models.AccountType) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, account := range m.byKey {
		if account.AccountType == accountType && account.Balance.IsPositive() {
			out = append(out, account)
		}
	}
	return out, nil
}

type memTransactionStore struct {
	mu      sync.Mutex
	entries []models.Transaction
}

func (m *memTransactionStore) Insert(_ context.Context, _ store.Execer, entry models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memTransactionStore) byType(txType models.TransactionType) []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, entry := range m.entries {
		if entry.Type == txType {
			out = append(out, entry)
		}
	}
	return out
}

type memPerformanceStore struct {
	mu    sync.Mutex
	byKey map[string]models.SessionRecord
}

func newMemPerformanceStore() *memPerformanceStore {
	return &memPerformanceStore{byKey: make(map[string]models.SessionRecord)}
}

func perfKey(userID string, accountType models.AccountType, sessionID string) string {
	return userID + "/" + string(accountType) + "/" + sessionID
}

func (m *memPerformanceStore) Get(_ context.Context, _ store.Getter, userID string, accountType models.AccountType, sessionID string) (models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.byKey[perfKey(userID, accountType, sessionID)]
	if !ok {
		return models.SessionRecord{}, store.ErrNotFound
	}
	return record, nil
}

func (m *memPerformanceStore) Upsert(_ context.Context, _ store.Execer, record models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[perfKey(record.UserID, record.AccountType, record.SessionID)] = record
	return nil
}

type memUserStore struct {
	mu    sync.Mutex
	byID  map[string]models.User
	order []string
}

func newMemUserStore(users ...models.User) *memUserStore {
	s := &memUserStore{byID: make(map[string]models.User)}
	for _, user := range users {
		s.byID[user.ID] = user
		s.order = append(s.order, user.ID)
	}
	return s
}

func (m *memUserStore) Get(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserStore) Save(_ context.Context, _ store.Execer, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[user.ID]; !ok {
		m.order = append(m.order, user.ID)
	}
	m.byID[user.ID] = user
	return nil
}

func (m *memUserStore) UpdateReferrals(_ context.Context, _ store.Execer, id string, referrals models.StringList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Referrals = referrals
	m.byID[id] = user
	return nil
}

func (m *memUserStore) StreamAll(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

type memSessionStore struct {
	mu    sync.Mutex
	saved []models.TradingSessionRecord
}

func (m *memSessionStore) Save(_ context.Context, _ store.Execer, record models.TradingSessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, record)
	return nil
}

type testEnv struct {
	accounts     *memAccountStore
	transactions *memTransactionStore
	performance  *memPerformanceStore
	registry     *AccountRegistry
	svc          *AccountService
}

func newTestEnv() *testEnv {
	accounts := newMemAccountStore()
	transactions := &memTransactionStore{}
	performance := newMemPerformanceStore()
	registry := NewAccountRegistry()
	svc := NewAccountService(fakeTxRunner{}, accounts, NewLedgerRecorder(transactions), NewPerformanceTracker(performance), registry)
	return &testEnv{
		accounts:     accounts,
		transactions: transactions,
		performance:  performance,
		registry:     registry,
		svc:          svc,
	}
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func testAccount(userID string, balance string) *models.Account {
	account := NewAccount(userID, models.AccountTypeMain, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	account.Balance = dec(balance)
	return &account
}
