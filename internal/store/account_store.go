package store

import (
	"context"

	"fundledger/internal/models"
)

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

// Get retrieves a user's account of one type. An account is addressed by
// its (user_id, account_type) pair; the generated id is carried along for
// correlation and locking.
func (s *AccountStore) Get(ctx context.Context, userID string, accountType models.AccountType) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, account_type, balance, management_fee_pct, trading_fee_pct,
		       upline_commission_pct, total_deposits, total_withdrawals, total_pnl,
		       total_trading_fee, total_management_fee, referral_earnings,
		       total_referral_earnings, total_upline_commission,
		       can_receive_referral_bonus, can_yield_referral_bonus,
		       recent_activities, created_at
		FROM accounts
		WHERE user_id = $1 AND account_type = $2
	`, userID, accountType)
	if err != nil {
		return models.Account{}, translateNotFound(err)
	}
	return row, nil
}

// Save upserts the full account state, merging over any existing row for
// the same (user_id, account_type).
func (s *AccountStore) Save(ctx context.Context, tx Execer, account models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (
			id, user_id, account_type, balance, management_fee_pct, trading_fee_pct,
			upline_commission_pct, total_deposits, total_withdrawals, total_pnl,
			total_trading_fee, total_management_fee, referral_earnings,
			total_referral_earnings, total_upline_commission,
			can_receive_referral_bonus, can_yield_referral_bonus,
			recent_activities, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (user_id, account_type) DO UPDATE SET
			balance = EXCLUDED.balance,
			management_fee_pct = EXCLUDED.management_fee_pct,
			trading_fee_pct = EXCLUDED.trading_fee_pct,
			upline_commission_pct = EXCLUDED.upline_commission_pct,
			total_deposits = EXCLUDED.total_deposits,
			total_withdrawals = EXCLUDED.total_withdrawals,
			total_pnl = EXCLUDED.total_pnl,
			total_trading_fee = EXCLUDED.total_trading_fee,
			total_management_fee = EXCLUDED.total_management_fee,
			referral_earnings = EXCLUDED.referral_earnings,
			total_referral_earnings = EXCLUDED.total_referral_earnings,
			total_upline_commission = EXCLUDED.total_upline_commission,
			can_receive_referral_bonus = EXCLUDED.can_receive_referral_bonus,
			can_yield_referral_bonus = EXCLUDED.can_yield_referral_bonus,
			recent_activities = EXCLUDED.recent_activities
	`,
		account.ID, account.UserID, account.AccountType, account.Balance,
		account.ManagementFeePct, account.TradingFeePct, account.UplineCommissionPct,
		account.TotalDeposits, account.TotalWithdrawals, account.TotalPnl,
		account.TotalTradingFee, account.TotalManagementFee, account.ReferralEarnings,
		account.TotalReferralEarnings, account.TotalUplineCommission,
		account.CanReceiveReferralBonus, account.CanYieldReferralBonus,
		account.RecentActivities, account.CreatedAt,
	)
	return err
}

// ListFundedByType streams every account of one type holding a positive
// balance, the working set of a distribution batch.
func (s *AccountStore) ListFundedByType(ctx context.Context, accountType models.AccountType) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, account_type, balance, management_fee_pct, trading_fee_pct,
		       upline_commission_pct, total_deposits, total_withdrawals, total_pnl,
		       total_trading_fee, total_management_fee, referral_earnings,
		       total_referral_earnings, total_upline_commission,
		       can_receive_referral_bonus, can_yield_referral_bonus,
		       recent_activities, created_at
		FROM accounts
		WHERE account_type = $1 AND balance > 0
		ORDER BY created_at
	`, accountType)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// TotalBalanceByType sums balances across one account type, a reporting
// aid that mirrors the in-memory session total.
func (s *AccountStore) TotalBalanceByType(ctx context.Context, accountType models.AccountType) (string, error) {
	var total string
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(balance), 0)::text
		FROM accounts
		WHERE account_type = $1
	`, accountType)
	return total, err
}
