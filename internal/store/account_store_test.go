package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"fundledger/internal/models"

	"github.com/shopspring/decimal"
)

func TestAccountStoreGetTranslatesNotFound(t *testing.T) {
	store := NewAccountStore(stubDB{
		getFn: func(context.Context, any, string, ...any) error {
			return sql.ErrNoRows
		},
	})
	_, err := store.Get(context.Background(), "user-1", models.AccountTypeMain)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountStoreGetQueriesByUserAndType(t *testing.T) {
	store := NewAccountStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM accounts") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != "user-1" || args[1] != models.AccountTypeCrypto {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*models.Account) = models.Account{ID: "acc-1", UserID: "user-1", AccountType: models.AccountTypeCrypto}
			return nil
		},
	})
	account, err := store.Get(context.Background(), "user-1", models.AccountTypeCrypto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.ID != "acc-1" {
		t.Fatalf("unexpected account: %#v", account)
	}
}

func TestAccountStoreSaveUpserts(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			gotQuery = query
			gotArgs = args
			return stubResult{rows: 1}, nil
		},
	}
	store := NewAccountStore(stubDB{})
	account := models.Account{
		ID:          "acc-1",
		UserID:      "user-1",
		AccountType: models.AccountTypeMain,
		Balance:     decimal.RequireFromString("250.75"),
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Save(context.Background(), execer, account); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "INSERT INTO accounts") || !strings.Contains(gotQuery, "ON CONFLICT (user_id, account_type) DO UPDATE") {
		t.Fatalf("expected upsert query, got: %s", gotQuery)
	}
	if len(gotArgs) != 19 {
		t.Fatalf("expected 19 args, got %d", len(gotArgs))
	}
	if gotArgs[0] != "acc-1" || gotArgs[1] != "user-1" {
		t.Fatalf("unexpected args: %#v", gotArgs[:3])
	}
}

func TestAccountStoreListFundedByType(t *testing.T) {
	store := NewAccountStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "balance > 0") {
				t.Fatalf("expected funded filter, got: %s", query)
			}
			if len(args) != 1 || args[0] != models.AccountTypeForex {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.Account) = []models.Account{{ID: "acc-1"}, {ID: "acc-2"}}
			return nil
		},
	})
	accounts, err := store.ListFundedByType(context.Background(), models.AccountTypeForex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
}
