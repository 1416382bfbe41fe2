package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"fundledger/internal/config"
	"fundledger/internal/db"
	"fundledger/internal/models"
	"fundledger/internal/money"
	"fundledger/internal/services"
	"fundledger/internal/store"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	accountType := flag.String("account-type", "main", "account type to settle (main, crypto-1, forex-1)")
	sessionNumber := flag.Int("session", 0, "sequential session number")
	profitPct := flag.String("profit-pct", "", "signed profit percentage as a fraction, e.g. 0.1 or -0.025")
	btcChange := flag.String("btc-change", "", "reference BTC movement for the period (optional)")
	ethChange := flag.String("eth-change", "", "reference ETH movement for the period (optional)")
	startDate := flag.String("start", "", "session start date, RFC3339 (defaults to 7 days ago)")
	endDate := flag.String("end", "", "session end date, RFC3339 (defaults to now)")
	chargeManagementFee := flag.Bool("charge-management-fee", false, "run a management fee sweep instead of a distribution")
	inspectUser := flag.String("inspect-user", "", "after settling, print this user's ledger entries for the session")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	accounts := store.NewAccountStore(database)
	transactions := store.NewTransactionStore(database)
	users := store.NewUserStore(database)
	sessions := store.NewSessionStore(database)
	performance := store.NewPerformanceStore(database)
	txRunner := db.NewTxRunner(database)
	registry := services.NewAccountRegistry()
	ledger := services.NewLedgerRecorder(transactions)
	tracker := services.NewPerformanceTracker(performance)
	accountSvc := services.NewAccountService(txRunner, accounts, ledger, tracker, registry)

	ctx := context.Background()

	if *chargeManagementFee {
		runManagementFeeSweep(ctx, accounts, accountSvc, models.AccountType(*accountType))
		return
	}

	if *sessionNumber <= 0 || *profitPct == "" {
		log.Fatal("a distribution run requires -session and -profit-pct")
	}
	pct, err := decimal.NewFromString(*profitPct)
	if err != nil {
		log.Fatalf("invalid -profit-pct: %v", err)
	}

	session, err := services.NewTradingSession(txRunner, accountSvc, accounts, users, sessions, registry, services.SessionParams{
		AccountType:         models.AccountType(*accountType),
		ProfitPercentage:    pct,
		SessionNumber:       *sessionNumber,
		StartDate:           parseDate(*startDate, time.Now().UTC().AddDate(0, 0, -7)),
		EndDate:             parseDate(*endDate, time.Now().UTC()),
		BtcPercentageChange: parseOptionalDecimal(*btcChange),
		EthPercentageChange: parseOptionalDecimal(*ethChange),
	})
	if err != nil {
		log.Fatalf("invalid session parameters: %v", err)
	}

	if prior, err := sessions.Get(ctx, session.AccountType, session.ID); err == nil {
		log.Printf("session %s (%s) already has a summary recorded on %s; re-running merges over it",
			prior.ID, prior.AccountType, prior.EndDate.Format(time.RFC3339))
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Fatalf("failed to check session history: %v", err)
	}

	before, err := session.TotalBalance(ctx)
	if err != nil {
		log.Fatalf("failed to load session working set: %v", err)
	}
	log.Printf("session %s (%s): distributing %s across total balance $%s", session.ID, *accountType, pct, money.Format(before))

	if err := session.CreditProfits(ctx); err != nil {
		log.Printf("session %s finished with errors: %v", session.ID, err)
	}
	if err := session.Save(ctx); err != nil {
		log.Fatalf("failed to persist session summary: %v", err)
	}

	after, err := session.TotalBalance(ctx)
	if err != nil {
		log.Fatalf("failed to total balances: %v", err)
	}
	persisted, err := accounts.TotalBalanceByType(ctx, session.AccountType)
	if err != nil {
		log.Fatalf("failed to total persisted balances: %v", err)
	}
	log.Printf("session %s settled: total balance $%s -> $%s (persisted %s, all balances)",
		session.ID, money.Format(before), money.Format(after), persisted)

	if *inspectUser != "" {
		inspectSession(ctx, transactions, *inspectUser, session.AccountType, session.ID)
	}
}

// inspectSession prints one user's ledger entries for the settled session
// plus their most recent account activity, an operator debugging aid.
func inspectSession(ctx context.Context, transactions *store.TransactionStore, userID string, accountType models.AccountType, sessionID string) {
	entries, err := transactions.ListBySessionID(ctx, userID, sessionID)
	if err != nil {
		log.Fatalf("failed to list session entries for %s: %v", userID, err)
	}
	for _, entry := range entries {
		log.Printf("%s %s: %s $%s (%s)", userID, entry.Type, sessionID, money.Format(entry.Amount), entry.Description)
	}
	recent, err := transactions.ListByAccount(ctx, userID, accountType, 10)
	if err != nil {
		log.Fatalf("failed to list recent entries for %s: %v", userID, err)
	}
	for _, entry := range recent {
		log.Printf("%s recent %s: $%s %s -> %s", userID, entry.Type, money.Format(entry.Amount),
			money.Format(entry.PrevBalance), money.Format(entry.NewBalance))
	}
}

func runManagementFeeSweep(ctx context.Context, accounts *store.AccountStore, accountSvc *services.AccountService, accountType models.AccountType) {
	if err := accountType.Validate(); err != nil {
		log.Fatalf("invalid -account-type: %v", err)
	}
	funded, err := accounts.ListFundedByType(ctx, accountType)
	if err != nil {
		log.Fatalf("failed to load accounts: %v", err)
	}
	now := time.Now().UTC()
	for i := range funded {
		if _, err := accountSvc.ChargeManagementFee(ctx, &funded[i], now); err != nil {
			log.Printf("management fee failed for account %s: %v", funded[i].ID, err)
		}
	}
	log.Printf("management fee sweep complete for %d %s accounts", len(funded), accountType)
}

func parseDate(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		log.Fatalf("invalid date %q: %v", raw, err)
	}
	return parsed
}

func parseOptionalDecimal(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		log.Fatalf("invalid decimal %q: %v", raw, err)
	}
	return &parsed
}
