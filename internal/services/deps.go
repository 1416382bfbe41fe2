package services

import (
	"context"

	"fundledger/internal/models"
	"fundledger/internal/store"
)

// Store dependencies are declared where they are consumed so tests can
// stub them without a database.

type AccountStore interface {
	Get(ctx context.Context, userID string, accountType models.AccountType) (models.Account, error)
	Save(ctx context.Context, tx store.Execer, account models.Account) error
	ListFundedByType(ctx context.Context, accountType models.AccountType) ([]models.Account, error)
}

type TransactionStore interface {
	Insert(ctx context.Context, tx store.Execer, entry models.Transaction) error
}

type UserStore interface {
	Get(ctx context.Context, id string) (models.User, error)
	Save(ctx context.Context, tx store.Execer, user models.User) error
	UpdateReferrals(ctx context.Context, tx store.Execer, id string, referrals models.StringList) error
	StreamAll(ctx context.Context) ([]models.User, error)
}

type SessionStore interface {
	Save(ctx context.Context, tx store.Execer, record models.TradingSessionRecord) error
}

type PerformanceStore interface {
	Get(ctx context.Context, tx store.Getter, userID string, accountType models.AccountType, sessionID string) (models.SessionRecord, error)
	Upsert(ctx context.Context, tx store.Execer, record models.SessionRecord) error
}
