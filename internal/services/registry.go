package services

import (
	"sync"

	"fundledger/internal/models"
)

// AccountRegistry gives every account id a single-writer guarantee. A
// distribution for one account can credit a referral bonus to a different
// account, so any mutation must hold that account's lock rather than work
// on a private copy. The registry also serializes distribution batches per
// account type: within one type, session N must fully settle before
// session N+1 starts. Batches for different account types never share an
// account id and may run in parallel.
type AccountRegistry struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	accounts map[string]*models.Account
	batches  map[models.AccountType]*sync.Mutex
}

func NewAccountRegistry() *AccountRegistry {
	return &AccountRegistry{
		locks:    make(map[string]*sync.Mutex),
		accounts: make(map[string]*models.Account),
		batches:  make(map[models.AccountType]*sync.Mutex),
	}
}

// Lock acquires the per-account mutex and returns its release func.
func (r *AccountRegistry) Lock(accountID string) func() {
	r.mu.Lock()
	lock, ok := r.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[accountID] = lock
	}
	r.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// LockPair acquires both account locks in id order. Distributions lock
// the holder together with the referrer; without a fixed order, two
// mutually-referring accounts settling at once could deadlock AB-BA.
func (r *AccountRegistry) LockPair(a, b string) func() {
	if a == b {
		return r.Lock(a)
	}
	if b < a {
		a, b = b, a
	}
	unlockA := r.Lock(a)
	unlockB := r.Lock(b)
	return func() {
		unlockB()
		unlockA()
	}
}

// Put registers the canonical in-memory copy of an account for the
// duration of a batch.
func (r *AccountRegistry) Put(account *models.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
}

// Get returns the registered copy, or nil when the account is not part of
// the current working set.
func (r *AccountRegistry) Get(accountID string) *models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[accountID]
}

// Evict drops the working-set entries once a batch has settled.
func (r *AccountRegistry) Evict(accountIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range accountIDs {
		delete(r.accounts, id)
	}
}

// RunBatch runs fn while holding the account type's batch lock, so one
// session settles completely before the next one begins.
func (r *AccountRegistry) RunBatch(accountType models.AccountType, fn func() error) error {
	r.mu.Lock()
	batch, ok := r.batches[accountType]
	if !ok {
		batch = &sync.Mutex{}
		r.batches[accountType] = batch
	}
	r.mu.Unlock()
	batch.Lock()
	defer batch.Unlock()
	return fn()
}
