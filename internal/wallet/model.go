package wallet

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	TypeCredit = "credit"
	TypeDebit  = "debit"

	WelcomeReason = "Welcome Bonus"

	RecentTransactionsLimit = 20
	DefaultHistoryLimit     = 100
	MaxHistoryLimit         = 1000
)

// Wallet is the per-user token balance.
type Wallet struct {
	WalletID      string    `db:"wallet_id" json:"walletId"`
	UserID        string    `db:"user_id" json:"userId"`
	BalanceTokens int       `db:"balance_tokens" json:"balanceTokens"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	TransactionID  string         `db:"transaction_id" json:"transactionId"`
	WalletID       string         `db:"wallet_id" json:"-"`
	ChangeAmount   int            `db:"change_amount" json:"changeAmount"`
	Type           string         `db:"type" json:"type"`
	Reason         string         `db:"reason" json:"reason"`
	Metadata       types.JSONText `db:"metadata" json:"metadata,omitempty"`
	BalanceAfter   int            `db:"balance_after" json:"balanceAfter"`
	IdempotencyKey *string        `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

type EnsureOutcome int

const (
	AlreadyExisted EnsureOutcome = iota
	Created
)

func (o EnsureOutcome) String() string {
	if o == Created {
		return "created"
	}
	return "already_existed"
}

type Balance struct {
	Balance            int           `json:"balance"`
	RecentTransactions []Transaction `json:"recentTransactions"`
}

type DebitRequest struct {
	UserID         string
	ServiceName    string
	Metadata       map[string]interface{}
	IdempotencyKey string
}

type DebitResult struct {
	NewBalance    int    `json:"newBalance"`
	Cost          int    `json:"cost"`
	TransactionID string `json:"transactionId"`
	Replayed      bool   `json:"replayed,omitempty"`
}

type CreditRequest struct {
	UserID   string
	Amount   int
	Reason   string
	Metadata map[string]interface{}

	// InTx runs inside the credit's database transaction after the ledger
	// entry is written. An error rolls the credit back.
	InTx func(ctx context.Context, tx Tx, res *CreditResult) error
}

type CreditResult struct {
	WalletID      string `json:"walletId"`
	NewBalance    int    `json:"newBalance"`
	TransactionID string `json:"transactionId"`
}

type Reconciliation struct {
	UserID     string `json:"userId"`
	Balance    int    `json:"balance"`
	LedgerSum  int    `json:"ledgerSum"`
	Entries    int    `json:"entries"`
	Consistent bool   `json:"consistent"`
}
