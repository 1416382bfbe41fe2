package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fundledger/internal/db"
	"fundledger/internal/models"
	"fundledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// TradingSession distributes one period's profit or loss across every
// funded account of a single account type. The working set of users and
// accounts is loaded lazily on first need and cached for the session's
// lifetime; loaded accounts are registered so that a referrer already in
// the batch is mutated in place instead of through a stale re-fetch.
type TradingSession struct {
	AccountType         models.AccountType
	ProfitPercentage    decimal.Decimal
	SessionNumber       int
	ID                  string
	StartDate           time.Time
	EndDate             time.Time
	BtcPercentageChange *decimal.Decimal
	EthPercentageChange *decimal.Decimal

	txRunner     db.TxRunner
	accountSvc   *AccountService
	accountStore AccountStore
	userStore    UserStore
	sessionStore SessionStore
	registry     *AccountRegistry

	users     []models.User
	accounts  []*models.Account
	populated bool
}

type SessionParams struct {
	AccountType         models.AccountType
	ProfitPercentage    decimal.Decimal
	SessionNumber       int
	StartDate           time.Time
	EndDate             time.Time
	BtcPercentageChange *decimal.Decimal
	EthPercentageChange *decimal.Decimal
}

func NewTradingSession(txRunner db.TxRunner, accountSvc *AccountService, accountStore AccountStore, userStore UserStore, sessionStore SessionStore, registry *AccountRegistry, params SessionParams) (*TradingSession, error) {
	if err := params.AccountType.Validate(); err != nil {
		return nil, err
	}
	return &TradingSession{
		AccountType:         params.AccountType,
		ProfitPercentage:    params.ProfitPercentage,
		SessionNumber:       params.SessionNumber,
		ID:                  models.SessionID(params.SessionNumber),
		StartDate:           params.StartDate,
		EndDate:             params.EndDate,
		BtcPercentageChange: params.BtcPercentageChange,
		EthPercentageChange: params.EthPercentageChange,
		txRunner:            txRunner,
		accountSvc:          accountSvc,
		accountStore:        accountStore,
		userStore:           userStore,
		sessionStore:        sessionStore,
		registry:            registry,
	}, nil
}

// PopulateUsersAndAccounts loads every positive-balance account of the
// session's type together with its holder. Called lazily by CreditProfits
// and TotalBalance.
func (s *TradingSession) PopulateUsersAndAccounts(ctx context.Context) error {
	accounts, err := s.accountStore.ListFundedByType(ctx, s.AccountType)
	if err != nil {
		return fmt.Errorf("populate accounts: %w", err)
	}
	allUsers, err := s.userStore.StreamAll(ctx)
	if err != nil {
		return fmt.Errorf("populate users: %w", err)
	}
	byUser := make(map[string]*models.Account, len(accounts))
	s.accounts = s.accounts[:0]
	for i := range accounts {
		account := &accounts[i]
		s.accounts = append(s.accounts, account)
		byUser[account.UserID] = account
		s.registry.Put(account)
	}
	s.users = s.users[:0]
	for _, user := range allUsers {
		if _, ok := byUser[user.ID]; ok {
			s.users = append(s.users, user)
		}
	}
	s.populated = true
	return nil
}

// GetUser resolves a user from the session cache first, falling back to
// the directory. A miss is absence, not an error.
func (s *TradingSession) GetUser(ctx context.Context, userID string) *models.User {
	for i := range s.users {
		if s.users[i].ID == userID {
			return &s.users[i]
		}
	}
	user, err := s.userStore.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("session %s: user lookup %s failed: %v", s.ID, userID, err)
		}
		return nil
	}
	return &user
}

// sessionAccount returns the batch's loaded copy of an account, if any.
// Bound as the resolver for each distribution.
func (s *TradingSession) sessionAccount(accountID string) *models.Account {
	return s.registry.Get(accountID)
}

// CreditProfits runs the distribution across the working set. The batch
// holds the account type's queue so a later session number cannot start
// until this one settles. A failing account is skipped and reported; the
// rest of the batch continues.
func (s *TradingSession) CreditProfits(ctx context.Context) error {
	if !s.populated {
		if err := s.PopulateUsersAndAccounts(ctx); err != nil {
			return err
		}
	}
	err := s.registry.RunBatch(s.AccountType, func() error {
		var errs []error
		for _, account := range s.accounts {
			user := s.GetUser(ctx, account.UserID)
			var referrer *models.User
			if user != nil && user.ReferredBy != nil {
				referrer = s.GetUser(ctx, *user.ReferredBy)
			}
			if err := s.accountSvc.DistributeProfitSplit(ctx, account, s.ProfitPercentage, s.SessionNumber, user, referrer, s.EndDate, s.sessionAccount); err != nil {
				log.Printf("session %s: distribution failed for account %s: %v", s.ID, account.ID, err)
				errs = append(errs, fmt.Errorf("account %s: %w", account.ID, err))
			}
		}
		return errors.Join(errs...)
	})
	ids := make([]string, 0, len(s.accounts))
	for _, account := range s.accounts {
		ids = append(ids, account.ID)
	}
	s.registry.Evict(ids)
	return err
}

// TotalBalance sums the working set's balances, a reporting aid only.
func (s *TradingSession) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	if !s.populated {
		if err := s.PopulateUsersAndAccounts(ctx); err != nil {
			return decimal.Zero, err
		}
	}
	total := decimal.Zero
	for _, account := range s.accounts {
		total = total.Add(account.Balance)
	}
	return total, nil
}

// Save persists the session summary.
func (s *TradingSession) Save(ctx context.Context) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.sessionStore.Save(ctx, tx, models.TradingSessionRecord{
			ID:                  s.ID,
			AccountType:         s.AccountType,
			ProfitPercentage:    s.ProfitPercentage,
			SessionNumber:       s.SessionNumber,
			StartDate:           s.StartDate,
			EndDate:             s.EndDate,
			BtcPercentageChange: s.BtcPercentageChange,
			EthPercentageChange: s.EthPercentageChange,
		})
	})
}
