package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"fundledger/internal/models"

	"github.com/shopspring/decimal"
)

func TestTransactionStoreInsert(t *testing.T) {
	var gotArgs []any
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO transactions") {
				t.Fatalf("unexpected query: %s", query)
			}
			gotArgs = args
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTransactionStore(stubDB{})
	entry := models.Transaction{
		ID:          "session_4",
		UserID:      "user-1",
		AccountType: models.AccountTypeMain,
		Type:        models.TxTradingOutcome,
		Amount:      decimal.RequireFromString("70"),
		PrevBalance: decimal.RequireFromString("1000"),
		NewBalance:  decimal.RequireFromString("1070"),
		Description: "Session 4's return on investment: +$70.00",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Insert(context.Background(), execer, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotArgs) != 9 {
		t.Fatalf("expected 9 args, got %d", len(gotArgs))
	}
	if gotArgs[0] != "session_4" || gotArgs[3] != models.TxTradingOutcome {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}

func TestTransactionStoreListByAccount(t *testing.T) {
	store := NewTransactionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY created_at DESC") {
				t.Fatalf("expected newest-first ordering, got: %s", query)
			}
			if len(args) != 3 || args[0] != "user-1" || args[2] != 20 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]models.Transaction) = []models.Transaction{{ID: "t1"}}
			return nil
		},
	})
	entries, err := store.ListByAccount(context.Background(), "user-1", models.AccountTypeMain, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}
