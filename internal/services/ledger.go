package services

import (
	"context"
	"time"

	"fundledger/internal/models"
	"fundledger/internal/money"
	"fundledger/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerRecorder builds and persists immutable ledger entries. It is a
// dumb recorder: PrevBalance and NewBalance are taken on trust from the
// caller and never rechecked against Amount.
type LedgerRecorder struct {
	transactions TransactionStore
}

func NewLedgerRecorder(transactions TransactionStore) *LedgerRecorder {
	return &LedgerRecorder{transactions: transactions}
}

type RecordInput struct {
	UserID      string
	AccountType models.AccountType
	Type        models.TransactionType
	Amount      decimal.Decimal
	PrevBalance decimal.Decimal
	NewBalance  decimal.Decimal
	Description string
	Timestamp   time.Time

	// ID overrides the generated id. Two entries describing the two sides
	// of one economic event (a session's outcome and its upline
	// commission) share the session id as a correlation key.
	ID string
}

func (r *LedgerRecorder) Record(ctx context.Context, tx store.Execer, in RecordInput) (models.Transaction, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	entry := models.Transaction{
		ID:          id,
		UserID:      in.UserID,
		AccountType: in.AccountType,
		Type:        in.Type,
		Amount:      in.Amount,
		PrevBalance: in.PrevBalance,
		NewBalance:  in.NewBalance,
		Description: money.NormalizeDescription(in.Description),
		CreatedAt:   ts,
	}
	if err := r.transactions.Insert(ctx, tx, entry); err != nil {
		return models.Transaction{}, err
	}
	return entry, nil
}
