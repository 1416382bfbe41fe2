package store

import (
	"context"

	"fundledger/internal/models"
)

// SessionStore persists trading-session summaries, one row per
// (account_type, session id).
type SessionStore struct {
	db DB
}

func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Save(ctx context.Context, tx Execer, record models.TradingSessionRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trading_sessions (
			id, account_type, profit_percentage, session_number,
			start_date, end_date, btc_percentage_change, eth_percentage_change
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id, account_type) DO UPDATE SET
			profit_percentage = EXCLUDED.profit_percentage,
			session_number = EXCLUDED.session_number,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			btc_percentage_change = EXCLUDED.btc_percentage_change,
			eth_percentage_change = EXCLUDED.eth_percentage_change
	`,
		record.ID, record.AccountType, record.ProfitPercentage, record.SessionNumber,
		record.StartDate, record.EndDate, record.BtcPercentageChange, record.EthPercentageChange,
	)
	return err
}

func (s *SessionStore) Get(ctx context.Context, accountType models.AccountType, sessionID string) (models.TradingSessionRecord, error) {
	var row models.TradingSessionRecord
	err := s.db.GetContext(ctx, &row, `
		SELECT id, account_type, profit_percentage, session_number,
		       start_date, end_date, btc_percentage_change, eth_percentage_change
		FROM trading_sessions
		WHERE id = $1 AND account_type = $2
	`, sessionID, accountType)
	if err != nil {
		return models.TradingSessionRecord{}, translateNotFound(err)
	}
	return row, nil
}
