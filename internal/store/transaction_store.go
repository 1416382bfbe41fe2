package store

import (
	"context"

	"fundledger/internal/models"
)

// TransactionStore persists ledger entries. Entries are append-style:
// written once, never updated. The id is normally unique per entry, but a
// session's trading outcome and its upline commission deliberately share a
// session id as a correlation key, so the primary key spans the entry type
// as well.
type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Insert(ctx context.Context, tx Execer, entry models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, account_type, transaction_type, amount,
			prev_balance, new_balance, description, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		entry.ID, entry.UserID, entry.AccountType, entry.Type, entry.Amount,
		entry.PrevBalance, entry.NewBalance, entry.Description, entry.CreatedAt,
	)
	return err
}

func (s *TransactionStore) ListByAccount(ctx context.Context, userID string, accountType models.AccountType, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, account_type, transaction_type, amount,
		       prev_balance, new_balance, description, created_at
		FROM transactions
		WHERE user_id = $1 AND account_type = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, accountType, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListBySessionID returns the correlated entries recorded under one
// session id for a user, the two sides of a session's economic event.
func (s *TransactionStore) ListBySessionID(ctx context.Context, userID, sessionID string) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, account_type, transaction_type, amount,
		       prev_balance, new_balance, description, created_at
		FROM transactions
		WHERE user_id = $1 AND id = $2
		ORDER BY created_at
	`, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
