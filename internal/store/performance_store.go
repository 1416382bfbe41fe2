package store

import (
	"context"

	"fundledger/internal/models"
)

// PerformanceStore persists the per-account, per-session performance
// rollups. Merge semantics (starting balance immutability, referral bonus
// accumulation) live in the tracker service; this store reads and writes
// whole records.
type PerformanceStore struct {
	db DB
}

func NewPerformanceStore(db DB) *PerformanceStore {
	return &PerformanceStore{db: db}
}

func (s *PerformanceStore) Get(ctx context.Context, tx Getter, userID string, accountType models.AccountType, sessionID string) (models.SessionRecord, error) {
	var row models.SessionRecord
	err := tx.GetContext(ctx, &row, `
		SELECT session_id, user_id, account_type, starting_balance, pnl,
		       trading_fee, referral_bonus, upline_commission, created_at
		FROM account_sessions
		WHERE user_id = $1 AND account_type = $2 AND session_id = $3
		FOR UPDATE
	`, userID, accountType, sessionID)
	if err != nil {
		return models.SessionRecord{}, translateNotFound(err)
	}
	return row, nil
}

func (s *PerformanceStore) Upsert(ctx context.Context, tx Execer, record models.SessionRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO account_sessions (
			session_id, user_id, account_type, starting_balance, pnl,
			trading_fee, referral_bonus, upline_commission, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, account_type, session_id) DO UPDATE SET
			starting_balance = EXCLUDED.starting_balance,
			pnl = EXCLUDED.pnl,
			trading_fee = EXCLUDED.trading_fee,
			referral_bonus = EXCLUDED.referral_bonus,
			upline_commission = EXCLUDED.upline_commission
	`,
		record.SessionID, record.UserID, record.AccountType, record.StartingBalance,
		record.Pnl, record.TradingFee, record.ReferralBonus, record.UplineCommission,
		record.CreatedAt,
	)
	return err
}
