package wallet

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	walletCols = []string{"wallet_id", "user_id", "balance_tokens", "created_at", "updated_at"}
	txCols     = []string{"transaction_id", "wallet_id", "change_amount", "type", "reason", "metadata", "balance_after", "idempotency_key", "created_at"}
)

func setupWalletMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	closer := func() { sqlxDB.Close() }
	return sqlxDB, mock, closer
}

func walletRow(walletID, userID string, balance int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(walletCols).AddRow(walletID, userID, balance, now, now)
}

func TestInsertWallet_Created(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallet.wallets (user_id, balance_tokens)")).
		WithArgs("user-1", 60).
		WillReturnRows(walletRow("w-1", "user-1", 60))

	w, created, err := NewRepository().InsertWallet(context.Background(), db, "user-1", 60)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "w-1", w.WalletID)
	assert.Equal(t, 60, w.BalanceTokens)
}

func TestInsertWallet_Conflict(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id) DO NOTHING")).
		WithArgs("user-1", 60).
		WillReturnRows(sqlmock.NewRows(walletCols))

	w, created, err := NewRepository().InsertWallet(context.Background(), db, "user-1", 60)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, w)
}

func TestLockWallet(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallet.wallets WHERE user_id = $1 FOR UPDATE")).
		WithArgs("user-1").
		WillReturnRows(walletRow("w-1", "user-1", 42))

	w, err := NewRepository().LockWallet(context.Background(), db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 42, w.BalanceTokens)
}

func TestGetWallet_NotFound(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallet.wallets WHERE user_id = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := NewRepository().GetWallet(context.Background(), db, "ghost")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestUpdateBalance(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallet.wallets SET balance_tokens = $1, updated_at = NOW() WHERE wallet_id = $2")).
		WithArgs(55, "w-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallet.wallets")).
		WithArgs(55, "w-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRepository()
	require.NoError(t, repo.UpdateBalance(context.Background(), db, "w-1", 55))
	assert.ErrorIs(t, repo.UpdateBalance(context.Background(), db, "w-missing", 55), ErrWalletNotFound)
}

func TestUpdateBalance_NegativeBalanceRejectedByDatabase(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallet.wallets")).
		WithArgs(-5, "w-1").
		WillReturnError(&pq.Error{Code: "23514", Constraint: "wallets_balance_non_negative"})

	err := NewRepository().UpdateBalance(context.Background(), db, "w-1", -5)
	assert.ErrorIs(t, err, ErrInsufficientTokens)
}

func TestInsertTransaction_FillsGeneratedFields(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	created := time.Now()
	key := "req-1"
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallet.wallet_transactions")).
		WithArgs("w-1", -5, TypeDebit, "text_interview", sqlmock.AnyArg(), 55, "req-1").
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "created_at"}).AddRow("t-1", created))

	entry := &Transaction{
		WalletID:       "w-1",
		ChangeAmount:   -5,
		Type:           TypeDebit,
		Reason:         "text_interview",
		Metadata:       types.JSONText(`{"userAgent":"test"}`),
		BalanceAfter:   55,
		IdempotencyKey: &key,
	}
	require.NoError(t, NewRepository().InsertTransaction(context.Background(), db, entry))
	assert.Equal(t, "t-1", entry.TransactionID)
	assert.Equal(t, created, entry.CreatedAt)
}

func TestInsertTransaction_WithoutMetadataOrKey(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallet.wallet_transactions")).
		WithArgs("w-1", 60, TypeCredit, WelcomeReason, nil, 60, nil).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "created_at"}).AddRow("t-0", time.Now()))

	entry := &Transaction{WalletID: "w-1", ChangeAmount: 60, Type: TypeCredit, Reason: WelcomeReason, BalanceAfter: 60}
	require.NoError(t, NewRepository().InsertTransaction(context.Background(), db, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIdempotencyKey(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE wallet_id = $1 AND idempotency_key = $2")).
		WithArgs("w-1", "req-1").
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow("t-1", "w-1", -5, TypeDebit, "text_interview", []byte(`{}`), 55, "req-1", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE wallet_id = $1 AND idempotency_key = $2")).
		WithArgs("w-1", "req-2").
		WillReturnError(sql.ErrNoRows)

	repo := NewRepository()
	tx, err := repo.FindByIdempotencyKey(context.Background(), db, "w-1", "req-1")
	require.NoError(t, err)
	assert.Equal(t, 55, tx.BalanceAfter)
	require.NotNil(t, tx.IdempotencyKey)
	assert.Equal(t, "req-1", *tx.IdempotencyKey)

	_, err = repo.FindByIdempotencyKey(context.Background(), db, "w-1", "req-2")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestListTransactions_NewestFirst(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, transaction_id DESC")).
		WithArgs("w-1", 20).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow("t-2", "w-1", -5, TypeDebit, "text_interview", nil, 55, nil, now).
			AddRow("t-1", "w-1", 60, TypeCredit, WelcomeReason, []byte(`{"isWelcomeBonus":true}`), 60, nil, now.Add(-time.Minute)))

	txs, err := NewRepository().ListTransactions(context.Background(), db, "w-1", 20)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t-2", txs[0].TransactionID)
	assert.Nil(t, txs[0].IdempotencyKey)
	assert.JSONEq(t, `{"isWelcomeBonus":true}`, txs[1].Metadata.String())
}

func TestLedgerSum(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(change_amount), 0) AS sum, COUNT(*) AS entries")).
		WithArgs("w-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum", "entries"}).AddRow(55, 2))

	sum, entries, err := NewRepository().LedgerSum(context.Background(), db, "w-1")
	require.NoError(t, err)
	assert.Equal(t, 55, sum)
	assert.Equal(t, 2, entries)
}

func TestLedgerSum_Error(t *testing.T) {
	db, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallet.wallet_transactions")).
		WithArgs("w-1").
		WillReturnError(errors.New("connection reset"))

	_, _, err := NewRepository().LedgerSum(context.Background(), db, "w-1")
	assert.ErrorContains(t, err, "connection reset")
}
