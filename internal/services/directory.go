package services

import (
	"context"
	"fmt"
	"time"

	"fundledger/internal/db"
	"fundledger/internal/models"
	"fundledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// UserDirectory resolves identity and referral edges. Referrals form a
// forest: each user has at most one upline and any number of downline
// ids. Commission flows exactly one hop upward.
type UserDirectory struct {
	txRunner   db.TxRunner
	users      UserStore
	accounts   AccountStore
	accountSvc *AccountService
}

func NewUserDirectory(txRunner db.TxRunner, users UserStore, accounts AccountStore, accountSvc *AccountService) *UserDirectory {
	return &UserDirectory{
		txRunner:   txRunner,
		users:      users,
		accounts:   accounts,
		accountSvc: accountSvc,
	}
}

func (d *UserDirectory) RetrieveUser(ctx context.Context, id string) (models.User, error) {
	return d.users.Get(ctx, id)
}

// CreateReferral creates a new user referred by an existing one, linking
// the edge on both sides.
func (d *UserDirectory) CreateReferral(ctx context.Context, referrerID, name, email string, ts time.Time) (models.User, error) {
	if err := validator.ValidateName(name); err != nil {
		return models.User{}, err
	}
	if err := validator.ValidateEmail(email); err != nil {
		return models.User{}, err
	}
	referrer, err := d.users.Get(ctx, referrerID)
	if err != nil {
		return models.User{}, fmt.Errorf("resolve referrer: %w", err)
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	referred := models.User{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		ReferredBy: &referrer.ID,
		Referrals:  models.StringList{},
		CreatedAt:  ts,
	}
	referrer.Referrals = append(referrer.Referrals, referred.ID)
	err = d.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := d.users.Save(ctx, tx, referred); err != nil {
			return err
		}
		return d.users.UpdateReferrals(ctx, tx, referrer.ID, referrer.Referrals)
	})
	if err != nil {
		return models.User{}, err
	}
	return referred, nil
}

// CreateTradingAccount opens an account of one type for a user, with the
// default fee configuration and an optional initial deposit.
func (d *UserDirectory) CreateTradingAccount(ctx context.Context, userID string, accountType models.AccountType, initialDeposit decimal.Decimal, ts time.Time) (models.Account, error) {
	if err := accountType.Validate(); err != nil {
		return models.Account{}, err
	}
	if _, err := d.users.Get(ctx, userID); err != nil {
		return models.Account{}, fmt.Errorf("resolve user: %w", err)
	}
	account := NewAccount(userID, accountType, ts)
	if err := d.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return d.accounts.Save(ctx, tx, account)
	}); err != nil {
		return models.Account{}, err
	}
	if initialDeposit.IsPositive() {
		if _, err := d.accountSvc.Deposit(ctx, &account, initialDeposit, "", ts); err != nil {
			return models.Account{}, err
		}
	}
	return account, nil
}
