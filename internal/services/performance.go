package services

import (
	"context"
	"errors"
	"time"

	"fundledger/internal/models"
	"fundledger/internal/store"

	"github.com/shopspring/decimal"
)

// PerformanceTracker maintains the per-account, per-session performance
// records. A record is created lazily on first touch; afterwards the
// starting balance is frozen, referral bonuses accumulate additively, and
// the remaining numeric fields follow last-write-wins unless the incoming
// value is zero, in which case the stored value is kept. A legitimate zero
// pnl is therefore indistinguishable from "no update"; that ambiguity is
// inherited behavior and kept on purpose.
type PerformanceTracker struct {
	records PerformanceStore
}

func NewPerformanceTracker(records PerformanceStore) *PerformanceTracker {
	return &PerformanceTracker{records: records}
}

type PerformanceUpdate struct {
	TradingFee       decimal.Decimal
	ReferralBonus    decimal.Decimal
	UplineCommission decimal.Decimal
	Pnl              decimal.Decimal
	StartingBalance  decimal.Decimal
}

func (t *PerformanceTracker) Update(ctx context.Context, tx store.Tx, userID string, accountType models.AccountType, sessionNumber int, upd PerformanceUpdate, ts time.Time) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	sessionID := models.SessionID(sessionNumber)

	existing, err := t.records.Get(ctx, tx, userID, accountType, sessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	record := models.SessionRecord{
		SessionID:   sessionID,
		UserID:      userID,
		AccountType: accountType,
		CreatedAt:   ts,
	}
	if errors.Is(err, store.ErrNotFound) {
		record.StartingBalance = upd.StartingBalance
		record.Pnl = upd.Pnl
		record.TradingFee = upd.TradingFee
		record.UplineCommission = upd.UplineCommission
		record.ReferralBonus = upd.ReferralBonus
	} else {
		record.StartingBalance = existing.StartingBalance
		record.Pnl = zeroFallback(upd.Pnl, existing.Pnl)
		record.TradingFee = zeroFallback(upd.TradingFee, existing.TradingFee)
		record.UplineCommission = zeroFallback(upd.UplineCommission, existing.UplineCommission)
		record.ReferralBonus = existing.ReferralBonus.Add(upd.ReferralBonus)
		record.CreatedAt = existing.CreatedAt
	}
	return t.records.Upsert(ctx, tx, record)
}

func zeroFallback(next, prior decimal.Decimal) decimal.Decimal {
	if next.IsZero() {
		return prior
	}
	return next
}
