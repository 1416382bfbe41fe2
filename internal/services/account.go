package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fundledger/internal/db"
	"fundledger/internal/models"
	"fundledger/internal/money"
	"fundledger/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Default fee configuration applied to newly created trading accounts.
var (
	DefaultManagementFeePct    = decimal.RequireFromString("0.02")
	DefaultTradingFeePct       = decimal.RequireFromString("0.25")
	DefaultUplineCommissionPct = decimal.RequireFromString("0.05")
)

// AccountService owns every balance-affecting operation on trading
// accounts. Each mutation appends a ledger entry, updates the account's
// cumulative counters and activity feed, and persists the account, all
// inside one database transaction. Mutations additionally hold the
// account's registry lock: a profit distribution can credit a referral
// bonus to a different account than the one being distributed.
type AccountService struct {
	txRunner db.TxRunner
	accounts AccountStore
	ledger   *LedgerRecorder
	perf     *PerformanceTracker
	registry *AccountRegistry
}

func NewAccountService(txRunner db.TxRunner, accounts AccountStore, ledger *LedgerRecorder, perf *PerformanceTracker, registry *AccountRegistry) *AccountService {
	return &AccountService{
		txRunner: txRunner,
		accounts: accounts,
		ledger:   ledger,
		perf:     perf,
		registry: registry,
	}
}

// NewAccount builds an account with the default fee configuration. The
// caller persists it, usually through Deposit or Save on first funding.
func NewAccount(userID string, accountType models.AccountType, ts time.Time) models.Account {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return models.Account{
		ID:                      uuid.NewString(),
		UserID:                  userID,
		AccountType:             accountType,
		ManagementFeePct:        DefaultManagementFeePct,
		TradingFeePct:           DefaultTradingFeePct,
		UplineCommissionPct:     DefaultUplineCommissionPct,
		CanReceiveReferralBonus: true,
		CanYieldReferralBonus:   true,
		RecentActivities:        models.ActivityList{},
		CreatedAt:               ts,
	}
}

// Deposit credits the balance and records a deposit entry. There is no
// upper bound on deposits.
func (s *AccountService) Deposit(ctx context.Context, account *models.Account, amount decimal.Decimal, description string, ts time.Time) (models.Transaction, error) {
	if !amount.IsPositive() {
		return models.Transaction{}, fmt.Errorf("%w: deposit of %s", ErrInvalidAmount, amount)
	}
	if err := account.AccountType.Validate(); err != nil {
		return models.Transaction{}, err
	}
	if description == "" {
		description = fmt.Sprintf("Made a $%s deposit.", money.Format(amount))
	}
	unlock := s.registry.Lock(account.ID)
	defer unlock()

	// The runner retries the closure on serialization failure; every
	// attempt restarts from the snapshot so mutations apply exactly once.
	snapshot := *account
	var entry models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		*account = snapshot
		var err error
		entry, err = s.ledger.Record(ctx, tx, RecordInput{
			UserID:      account.UserID,
			AccountType: account.AccountType,
			Type:        models.TxDeposit,
			Amount:      amount,
			PrevBalance: account.Balance,
			NewBalance:  account.Balance.Add(amount),
			Description: description,
			Timestamp:   ts,
		})
		if err != nil {
			return err
		}
		account.PushActivity(entry.ToActivity())
		account.Balance = account.Balance.Add(amount)
		account.TotalDeposits = account.TotalDeposits.Add(amount)
		return s.accounts.Save(ctx, tx, *account)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return entry, nil
}

// Withdraw debits the balance, failing when the amount exceeds it. The
// balance never goes negative through withdrawals.
func (s *AccountService) Withdraw(ctx context.Context, account *models.Account, amount decimal.Decimal, ts time.Time) (models.Transaction, error) {
	if !amount.IsPositive() {
		return models.Transaction{}, fmt.Errorf("%w: withdrawal of %s", ErrInvalidAmount, amount)
	}
	if amount.GreaterThan(account.Balance) {
		return models.Transaction{}, fmt.Errorf("%w: withdrawal of $%s exceeds balance of $%s",
			ErrInsufficientBalance, amount, account.Balance)
	}
	unlock := s.registry.Lock(account.ID)
	defer unlock()

	snapshot := *account
	var entry models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		*account = snapshot
		var err error
		entry, err = s.ledger.Record(ctx, tx, RecordInput{
			UserID:      account.UserID,
			AccountType: account.AccountType,
			Type:        models.TxWithdrawal,
			Amount:      amount,
			PrevBalance: account.Balance,
			NewBalance:  account.Balance.Sub(amount),
			Description: fmt.Sprintf("Made a $%s withdrawal.", money.Format(amount)),
			Timestamp:   ts,
		})
		if err != nil {
			return err
		}
		account.PushActivity(entry.ToActivity())
		account.Balance = account.Balance.Sub(amount)
		account.TotalWithdrawals = account.TotalWithdrawals.Add(amount)
		return s.accounts.Save(ctx, tx, *account)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return entry, nil
}

// WithdrawFromReferralBonus debits the withdrawable referral sub-balance.
// The entry's balance snapshots are of the sub-balance, not the main
// balance. Total withdrawals still count it, for audit symmetry.
func (s *AccountService) WithdrawFromReferralBonus(ctx context.Context, account *models.Account, amount decimal.Decimal, ts time.Time) (models.Transaction, error) {
	if !amount.IsPositive() {
		return models.Transaction{}, fmt.Errorf("%w: withdrawal of %s", ErrInvalidAmount, amount)
	}
	if amount.GreaterThan(account.ReferralEarnings) {
		return models.Transaction{}, fmt.Errorf("%w: withdrawal of $%s exceeds referral bonus balance of $%s",
			ErrInsufficientReferralBalance, amount, account.ReferralEarnings)
	}
	unlock := s.registry.Lock(account.ID)
	defer unlock()

	snapshot := *account
	var entry models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		*account = snapshot
		var err error
		entry, err = s.ledger.Record(ctx, tx, RecordInput{
			UserID:      account.UserID,
			AccountType: account.AccountType,
			Type:        models.TxWithdrawal,
			Amount:      amount,
			PrevBalance: account.ReferralEarnings,
			NewBalance:  account.ReferralEarnings.Sub(amount),
			Description: fmt.Sprintf("Made a $%s withdrawal from referral bonus balance.", money.Format(amount)),
			Timestamp:   ts,
		})
		if err != nil {
			return err
		}
		account.PushActivity(entry.ToActivity())
		account.ReferralEarnings = account.ReferralEarnings.Sub(amount)
		account.TotalWithdrawals = account.TotalWithdrawals.Add(amount)
		return s.accounts.Save(ctx, tx, *account)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return entry, nil
}

// Close withdraws the entire balance. Closing is an action, not a state:
// the account row stays, drained.
func (s *AccountService) Close(ctx context.Context, account *models.Account, ts time.Time) error {
	if account.Balance.IsZero() {
		return nil
	}
	_, err := s.Withdraw(ctx, account, account.Balance, ts)
	return err
}

// GetReferrerAccount resolves the upline's account of the same type as
// the given account, creating it with default fees if the referrer has
// none yet. Referral profits land on the matching account type rather
// than on the user globally, which nudges referrers into new products.
// With eligibility checking on, both sides must opt in or no account is
// returned and no commission flows.
func (s *AccountService) GetReferrerAccount(ctx context.Context, account *models.Account, referrer *models.User, checkEligibility bool) (*models.Account, error) {
	if referrer == nil {
		return nil, nil
	}
	referrerAccount, err := s.accounts.Get(ctx, referrer.ID, account.AccountType)
	if errors.Is(err, store.ErrNotFound) {
		referrerAccount = NewAccount(referrer.ID, account.AccountType, time.Time{})
		if err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.accounts.Save(ctx, tx, referrerAccount)
		}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if checkEligibility && !(account.CanYieldReferralBonus && referrerAccount.CanReceiveReferralBonus) {
		return nil, nil
	}
	return &referrerAccount, nil
}

// CalculateFeesAndCommissions computes the trading fee and, when an
// eligible referrer account exists, the upline commission. Both are
// fractions of gross pnl.
func (s *AccountService) CalculateFeesAndCommissions(account *models.Account, grossPnl decimal.Decimal, referrerAccount *models.Account) (tradingFee, uplineCommission decimal.Decimal) {
	tradingFee = grossPnl.Mul(account.TradingFeePct)
	if referrerAccount != nil {
		uplineCommission = grossPnl.Mul(account.UplineCommissionPct)
	}
	return tradingFee, uplineCommission
}

// ApplyReferralBonus records the two correlated sides of a commission: a
// referral_bonus entry credited to the referrer and an upline_commission
// entry on the paying account keyed by the session id. Money is not
// debited here; the commission was already netted out of gross pnl before
// the paying account's balance moves.
func (s *AccountService) ApplyReferralBonus(ctx context.Context, tx *sqlx.Tx, account, referrerAccount *models.Account, uplineCommission decimal.Decimal, userName, referrerName string, sessionNumber int, sessionID string, ts time.Time) error {
	bonusEntry, err := s.ledger.Record(ctx, tx, RecordInput{
		UserID:      referrerAccount.UserID,
		AccountType: referrerAccount.AccountType,
		Type:        models.TxReferralBonus,
		Amount:      uplineCommission,
		PrevBalance: referrerAccount.TotalReferralEarnings,
		NewBalance:  referrerAccount.TotalReferralEarnings.Add(uplineCommission),
		Description: fmt.Sprintf("Session %d: $%s referral bonus from %s", sessionNumber, money.Format(uplineCommission), userName),
		Timestamp:   ts,
	})
	if err != nil {
		return err
	}
	referrerAccount.PushActivity(bonusEntry.ToActivity())
	referrerAccount.TotalReferralEarnings = referrerAccount.TotalReferralEarnings.Add(uplineCommission)
	referrerAccount.ReferralEarnings = referrerAccount.ReferralEarnings.Add(uplineCommission)
	if err := s.accounts.Save(ctx, tx, *referrerAccount); err != nil {
		return err
	}
	if err := s.perf.Update(ctx, tx, referrerAccount.UserID, referrerAccount.AccountType, sessionNumber, PerformanceUpdate{
		ReferralBonus:   uplineCommission,
		StartingBalance: referrerAccount.Balance,
	}, ts); err != nil {
		return err
	}

	commissionEntry, err := s.ledger.Record(ctx, tx, RecordInput{
		UserID:      account.UserID,
		AccountType: account.AccountType,
		Type:        models.TxUplineCommission,
		Amount:      uplineCommission,
		PrevBalance: account.TotalUplineCommission,
		NewBalance:  account.TotalUplineCommission.Add(uplineCommission),
		Description: fmt.Sprintf("Session %d: $%s upline commission to %s", sessionNumber, money.Format(uplineCommission), referrerName),
		Timestamp:   ts,
		ID:          sessionID,
	})
	if err != nil {
		return err
	}
	account.PushActivity(commissionEntry.ToActivity())
	account.TotalUplineCommission = account.TotalUplineCommission.Add(uplineCommission)
	return nil
}

// UpdatePerformanceMetrics applies a session's net outcome to the account
// and, when a trading fee was charged, records the fee entry. The outcome
// entry snapshots the balance before the fee entry is appended; both read
// the account's counters at the moment of construction.
func (s *AccountService) UpdatePerformanceMetrics(ctx context.Context, tx *sqlx.Tx, account *models.Account, sessionNumber int, sessionID string, netPnl, tradingFee decimal.Decimal, ts time.Time) error {
	sign := "-"
	if netPnl.IsPositive() {
		sign = "+"
	}
	outcomeEntry, err := s.ledger.Record(ctx, tx, RecordInput{
		UserID:      account.UserID,
		AccountType: account.AccountType,
		Type:        models.TxTradingOutcome,
		Amount:      netPnl,
		PrevBalance: account.Balance,
		NewBalance:  account.Balance.Add(netPnl),
		Description: fmt.Sprintf("Session %d's return on investment: %s$%s", sessionNumber, sign, money.Format(netPnl.Abs())),
		Timestamp:   ts,
		ID:          sessionID,
	})
	if err != nil {
		return err
	}
	account.PushActivity(outcomeEntry.ToActivity())
	account.Balance = account.Balance.Add(netPnl)
	account.TotalPnl = account.TotalPnl.Add(netPnl)

	if tradingFee.IsZero() {
		return nil
	}
	feeEntry, err := s.ledger.Record(ctx, tx, RecordInput{
		UserID:      account.UserID,
		AccountType: account.AccountType,
		Type:        models.TxTradingFee,
		Amount:      tradingFee,
		PrevBalance: account.TotalTradingFee,
		NewBalance:  account.TotalTradingFee.Add(tradingFee),
		Description: fmt.Sprintf("Session %d's trading fee: $%s", sessionNumber, money.Format(tradingFee)),
		Timestamp:   ts,
	})
	if err != nil {
		return err
	}
	account.PushActivity(feeEntry.ToActivity())
	account.TotalTradingFee = account.TotalTradingFee.Add(tradingFee)
	return nil
}

// DistributeProfitSplit settles one session for one account: computes
// gross pnl from the current balance, charges the trading fee and upline
// commission on profitable sessions, credits the referrer, writes the
// session performance record using the pre-update balance, then applies
// the net pnl. Losses and flat sessions still produce an outcome entry
// but never charge fees or commissions.
//
// resolver, when non-nil, maps an account id to the batch's already-loaded
// copy so a referrer processed in the same batch is mutated in place
// rather than through a stale re-fetch.
func (s *AccountService) DistributeProfitSplit(ctx context.Context, account *models.Account, profitPercentage decimal.Decimal, sessionNumber int, user, referrer *models.User, ts time.Time, resolver func(accountID string) *models.Account) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	sessionID := models.SessionID(sessionNumber)

	var referrerAccount *models.Account
	if profitPercentage.IsPositive() {
		var err error
		referrerAccount, err = s.GetReferrerAccount(ctx, account, referrer, true)
		if err != nil {
			return err
		}
		if referrerAccount != nil && resolver != nil {
			if loaded := resolver(referrerAccount.ID); loaded != nil {
				referrerAccount = loaded
			}
		}
	}

	// Both locks are taken in id order so two distributions over
	// mutually-referring accounts cannot deadlock AB-BA.
	var unlock func()
	if referrerAccount != nil {
		unlock = s.registry.LockPair(account.ID, referrerAccount.ID)
	} else {
		unlock = s.registry.Lock(account.ID)
	}
	defer unlock()

	grossPnl := account.Balance.Mul(profitPercentage)
	netPnl := grossPnl
	tradingFee := decimal.Zero
	uplineCommission := decimal.Zero
	if profitPercentage.IsPositive() {
		tradingFee, uplineCommission = s.CalculateFeesAndCommissions(account, grossPnl, referrerAccount)
		netPnl = grossPnl.Sub(tradingFee).Sub(uplineCommission)
	}

	snapshot := *account
	var referrerSnapshot models.Account
	if referrerAccount != nil {
		referrerSnapshot = *referrerAccount
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		*account = snapshot
		if referrerAccount != nil {
			*referrerAccount = referrerSnapshot
			if err := s.ApplyReferralBonus(ctx, tx, account, referrerAccount, uplineCommission,
				displayName(user, account.UserID), displayName(referrer, ""), sessionNumber, sessionID, ts); err != nil {
				return err
			}
		}
		// The performance record captures the starting balance before the
		// net pnl lands on the account.
		if err := s.perf.Update(ctx, tx, account.UserID, account.AccountType, sessionNumber, PerformanceUpdate{
			TradingFee:       tradingFee,
			UplineCommission: uplineCommission,
			Pnl:              netPnl,
			StartingBalance:  account.Balance,
		}, ts); err != nil {
			return err
		}
		if err := s.UpdatePerformanceMetrics(ctx, tx, account, sessionNumber, sessionID, netPnl, tradingFee, ts); err != nil {
			return err
		}
		return s.accounts.Save(ctx, tx, *account)
	})
}

// ChargeManagementFee debits the periodic management fee. There is no
// floor: a fee charged against an already-drained account can take the
// balance negative, and that debt is carried forward.
func (s *AccountService) ChargeManagementFee(ctx context.Context, account *models.Account, ts time.Time) (models.Transaction, error) {
	fee := account.ManagementFeePct.Mul(account.Balance)
	unlock := s.registry.Lock(account.ID)
	defer unlock()

	snapshot := *account
	var entry models.Transaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		*account = snapshot
		var err error
		entry, err = s.ledger.Record(ctx, tx, RecordInput{
			UserID:      account.UserID,
			AccountType: account.AccountType,
			Type:        models.TxManagementFee,
			Amount:      fee,
			PrevBalance: account.TotalManagementFee,
			NewBalance:  account.TotalManagementFee.Add(fee),
			Description: fmt.Sprintf("Management fee deducted: $%s", money.Format(fee)),
			Timestamp:   ts,
		})
		if err != nil {
			return err
		}
		account.PushActivity(entry.ToActivity())
		account.Balance = account.Balance.Sub(fee)
		account.TotalManagementFee = account.TotalManagementFee.Add(fee)
		return s.accounts.Save(ctx, tx, *account)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return entry, nil
}

func displayName(user *models.User, fallback string) string {
	if user != nil && user.Name != "" {
		return user.Name
	}
	return fallback
}
