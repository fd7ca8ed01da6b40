package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/db"
)

// Tx is satisfied by both *sqlx.DB and *sqlx.Tx.
type Tx = sqlx.ExtContext

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

const balanceCheck = "wallets_balance_non_negative"

const walletColumns = `wallet_id, user_id, balance_tokens, created_at, updated_at`

const transactionColumns = `transaction_id, wallet_id, change_amount, type, reason, metadata,
	balance_after, idempotency_key, created_at`

// Repository is the ledger store. Every method runs on the caller's
// executor so writes can share one database transaction.
type Repository interface {
	InsertWallet(ctx context.Context, q Tx, userID string, balance int) (*Wallet, bool, error)
	GetWallet(ctx context.Context, q Tx, userID string) (*Wallet, error)
	LockWallet(ctx context.Context, q Tx, userID string) (*Wallet, error)
	UpdateBalance(ctx context.Context, q Tx, walletID string, balance int) error
	InsertTransaction(ctx context.Context, q Tx, t *Transaction) error
	FindByIdempotencyKey(ctx context.Context, q Tx, walletID, key string) (*Transaction, error)
	ListTransactions(ctx context.Context, q Tx, walletID string, limit int) ([]Transaction, error)
	LedgerSum(ctx context.Context, q Tx, walletID string) (sum int, entries int, err error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

// InsertWallet creates the wallet unless one already exists for userID.
// The bool reports whether this call created it.
func (r *repository) InsertWallet(ctx context.Context, q Tx, userID string, balance int) (*Wallet, bool, error) {
	w := &Wallet{}
	err := sqlx.GetContext(ctx, q, w, `
		INSERT INTO wallet.wallets (user_id, balance_tokens)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+walletColumns,
		userID, balance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert wallet for %s: %w", userID, err)
	}
	return w, true, nil
}

func (r *repository) GetWallet(ctx context.Context, q Tx, userID string) (*Wallet, error) {
	w := &Wallet{}
	err := sqlx.GetContext(ctx, q, w,
		`SELECT `+walletColumns+` FROM wallet.wallets WHERE user_id = $1`,
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet for %s: %w", userID, err)
	}
	return w, nil
}

// LockWallet reads the wallet and holds its row lock until q commits.
func (r *repository) LockWallet(ctx context.Context, q Tx, userID string) (*Wallet, error) {
	w := &Wallet{}
	err := sqlx.GetContext(ctx, q, w,
		`SELECT `+walletColumns+` FROM wallet.wallets WHERE user_id = $1 FOR UPDATE`,
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock wallet for %s: %w", userID, err)
	}
	return w, nil
}

func (r *repository) UpdateBalance(ctx context.Context, q Tx, walletID string, balance int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE wallet.wallets SET balance_tokens = $1, updated_at = NOW() WHERE wallet_id = $2`,
		balance, walletID,
	)
	if db.IsCheckViolation(err, balanceCheck) {
		return ErrInsufficientTokens
	}
	if err != nil {
		return fmt.Errorf("update balance of %s: %w", walletID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// InsertTransaction appends t and fills in its generated id and timestamp.
func (r *repository) InsertTransaction(ctx context.Context, q Tx, t *Transaction) error {
	var metadata interface{}
	if len(t.Metadata) > 0 {
		metadata = []byte(t.Metadata)
	}

	err := q.QueryRowxContext(ctx, `
		INSERT INTO wallet.wallet_transactions
			(wallet_id, change_amount, type, reason, metadata, balance_after, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING transaction_id, created_at`,
		t.WalletID, t.ChangeAmount, t.Type, t.Reason, metadata, t.BalanceAfter, t.IdempotencyKey,
	).Scan(&t.TransactionID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert %s transaction: %w", t.Type, err)
	}
	return nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, q Tx, walletID, key string) (*Transaction, error) {
	t := &Transaction{}
	err := sqlx.GetContext(ctx, q, t, `
		SELECT `+transactionColumns+`
		FROM wallet.wallet_transactions
		WHERE wallet_id = $1 AND idempotency_key = $2`,
		walletID, key,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction by idempotency key: %w", err)
	}
	return t, nil
}

func (r *repository) ListTransactions(ctx context.Context, q Tx, walletID string, limit int) ([]Transaction, error) {
	txs := []Transaction{}
	err := sqlx.SelectContext(ctx, q, &txs, `
		SELECT `+transactionColumns+`
		FROM wallet.wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT $2`,
		walletID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions of %s: %w", walletID, err)
	}
	return txs, nil
}

func (r *repository) LedgerSum(ctx context.Context, q Tx, walletID string) (int, int, error) {
	var row struct {
		Sum     int `db:"sum"`
		Entries int `db:"entries"`
	}
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT COALESCE(SUM(change_amount), 0) AS sum, COUNT(*) AS entries
		FROM wallet.wallet_transactions
		WHERE wallet_id = $1`,
		walletID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("sum ledger of %s: %w", walletID, err)
	}
	return row.Sum, row.Entries, nil
}
