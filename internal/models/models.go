package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType identifies one of the trading products a user can hold an
// account in. Profit distribution is scoped per account type.
type AccountType string

const (
	AccountTypeMain   AccountType = "main"
	AccountTypeCrypto AccountType = "crypto-1"
	AccountTypeForex  AccountType = "forex-1"
)

var ErrUnknownAccountType = errors.New("unknown account type")

func (t AccountType) Validate() error {
	switch t {
	case AccountTypeMain, AccountTypeCrypto, AccountTypeForex:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAccountType, string(t))
}

type TransactionType string

const (
	TxDeposit          TransactionType = "deposit"
	TxWithdrawal       TransactionType = "withdrawal"
	TxTradingOutcome   TransactionType = "trading_outcome"
	TxReferralBonus    TransactionType = "referral_bonus"
	TxUplineCommission TransactionType = "upline_commission"
	TxManagementFee    TransactionType = "management_fee"
	TxTradingFee       TransactionType = "trading_fee"
)

type User struct {
	ID         string     `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Email      string     `db:"email" json:"email"`
	ReferredBy *string    `db:"referred_by" json:"referred_by,omitempty"`
	Referrals  StringList `db:"referrals" json:"referrals"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

type Account struct {
	ID                      string          `db:"id" json:"id"`
	UserID                  string          `db:"user_id" json:"user_id"`
	AccountType             AccountType     `db:"account_type" json:"account_type"`
	Balance                 decimal.Decimal `db:"balance" json:"balance"`
	ManagementFeePct        decimal.Decimal `db:"management_fee_pct" json:"management_fee_pct"`
	TradingFeePct           decimal.Decimal `db:"trading_fee_pct" json:"trading_fee_pct"`
	UplineCommissionPct     decimal.Decimal `db:"upline_commission_pct" json:"upline_commission_pct"`
	TotalDeposits           decimal.Decimal `db:"total_deposits" json:"total_deposits"`
	TotalWithdrawals        decimal.Decimal `db:"total_withdrawals" json:"total_withdrawals"`
	TotalPnl                decimal.Decimal `db:"total_pnl" json:"total_pnl"`
	TotalTradingFee         decimal.Decimal `db:"total_trading_fee" json:"total_trading_fee"`
	TotalManagementFee      decimal.Decimal `db:"total_management_fee" json:"total_management_fee"`
	ReferralEarnings        decimal.Decimal `db:"referral_earnings" json:"referral_earnings"`
	TotalReferralEarnings   decimal.Decimal `db:"total_referral_earnings" json:"total_referral_earnings"`
	TotalUplineCommission   decimal.Decimal `db:"total_upline_commission" json:"total_upline_commission"`
	CanReceiveReferralBonus bool            `db:"can_receive_referral_bonus" json:"can_receive_referral_bonus"`
	CanYieldReferralBonus   bool            `db:"can_yield_referral_bonus" json:"can_yield_referral_bonus"`
	RecentActivities        ActivityList    `db:"recent_activities" json:"recent_activities"`
	CreatedAt               time.Time       `db:"created_at" json:"created_at"`
}

// MaxRecentActivities caps the per-account activity feed.
const MaxRecentActivities = 20

// PushActivity prepends an activity, evicting the oldest entry once the
// feed is at capacity.
func (a *Account) PushActivity(activity Activity) {
	if len(a.RecentActivities) >= MaxRecentActivities {
		a.RecentActivities = a.RecentActivities[:MaxRecentActivities-1]
	}
	a.RecentActivities = append(ActivityList{activity}, a.RecentActivities...)
}

// Transaction is an immutable ledger entry. PrevBalance and NewBalance are
// balance snapshots supplied by the caller; the recorder does not rederive
// them.
type Transaction struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	AccountType AccountType     `db:"account_type" json:"account_type"`
	Type        TransactionType `db:"transaction_type" json:"transaction_type"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	PrevBalance decimal.Decimal `db:"prev_balance" json:"prev_balance"`
	NewBalance  decimal.Decimal `db:"new_balance" json:"new_balance"`
	Description string          `db:"description" json:"description"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ToActivity projects the entry into the short form kept on the account's
// recent-activity feed.
func (t Transaction) ToActivity() Activity {
	return Activity{
		ID:           t.ID,
		ActivityType: t.Type,
		Description:  t.Description,
		Timestamp:    t.CreatedAt,
	}
}

type Activity struct {
	ID           string          `json:"id"`
	ActivityType TransactionType `json:"activity_type"`
	Description  string          `json:"description"`
	Timestamp    time.Time       `json:"timestamp"`
}

// SessionRecord is the denormalized per-account, per-session performance
// rollup. It is reporting data, not a source of truth; the ledger is.
type SessionRecord struct {
	SessionID        string          `db:"session_id" json:"session_id"`
	UserID           string          `db:"user_id" json:"user_id"`
	AccountType      AccountType     `db:"account_type" json:"account_type"`
	StartingBalance  decimal.Decimal `db:"starting_balance" json:"starting_balance"`
	Pnl              decimal.Decimal `db:"pnl" json:"pnl"`
	TradingFee       decimal.Decimal `db:"trading_fee" json:"trading_fee"`
	ReferralBonus    decimal.Decimal `db:"referral_bonus" json:"referral_bonus"`
	UplineCommission decimal.Decimal `db:"upline_commission" json:"upline_commission"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// TradingSessionRecord is the persisted summary of one distribution batch.
// The BTC/ETH figures are reference market movement for the period, stored
// as supplied and never computed here.
type TradingSessionRecord struct {
	ID                  string           `db:"id" json:"id"`
	AccountType         AccountType      `db:"account_type" json:"account_type"`
	ProfitPercentage    decimal.Decimal  `db:"profit_percentage" json:"profit_percentage"`
	SessionNumber       int              `db:"session_number" json:"session_number"`
	StartDate           time.Time        `db:"start_date" json:"start_date"`
	EndDate             time.Time        `db:"end_date" json:"end_date"`
	BtcPercentageChange *decimal.Decimal `db:"btc_percentage_change" json:"btc_percentage_change,omitempty"`
	EthPercentageChange *decimal.Decimal `db:"eth_percentage_change" json:"eth_percentage_change,omitempty"`
}

// SessionID derives the correlation key for a session number. The same key
// is reused as the explicit transaction id that ties a session's trading
// outcome to its upline commission entry.
func SessionID(sessionNumber int) string {
	return fmt.Sprintf("session_%d", sessionNumber)
}

// ActivityList stores the activity feed as a single jsonb column.
type ActivityList []Activity

func (l ActivityList) Value() (driver.Value, error) {
	if l == nil {
		l = ActivityList{}
	}
	return json.Marshal(l)
}

func (l *ActivityList) Scan(src any) error {
	return scanJSON(src, l)
}

// StringList stores referral id lists as jsonb.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

func scanJSON(src, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
}
