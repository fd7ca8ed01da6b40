package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/db"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/events"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/metrics"
)

const (
	DefaultWelcomeTokens = 60

	idempotencyIndex = "wallet_transactions_idempotency_key"
	publishTimeout   = 5 * time.Second

	unpricedServiceLabel = "unpriced"
)

// CostResolver prices a named service.
type CostResolver interface {
	GetCost(ctx context.Context, serviceName string) (int, error)
}

// Manager owns every balance mutation and ledger append. Debits and credits
// lock the wallet row for the whole read-check-write-append cycle.
type Manager interface {
	EnsureWallet(ctx context.Context, userID string) (*Wallet, EnsureOutcome, error)
	GetOrCreateWallet(ctx context.Context, userID string) (*Wallet, error)
	GetBalance(ctx context.Context, userID string) (*Balance, error)
	DeductTokens(ctx context.Context, req DebitRequest) (*DebitResult, error)
	CreditTokens(ctx context.Context, req CreditRequest) (*CreditResult, error)
	GetTransactionHistory(ctx context.Context, userID string, limit int) ([]Transaction, error)
	Reconcile(ctx context.Context, userID string) (*Reconciliation, error)
}

type Option func(*manager)

func WithWelcomeTokens(n int) Option {
	return func(m *manager) {
		if n >= 0 {
			m.welcome = n
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(m *manager) {
		if p != nil {
			m.events = p
		}
	}
}

type manager struct {
	db      *sqlx.DB
	repo    Repository
	costs   CostResolver
	events  events.Publisher
	welcome int
}

func NewManager(conn *sqlx.DB, repo Repository, costs CostResolver, opts ...Option) Manager {
	m := &manager{
		db:      conn,
		repo:    repo,
		costs:   costs,
		events:  events.Noop{},
		welcome: DefaultWelcomeTokens,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// unit collects ledger events produced inside one database transaction.
type unit struct {
	tx      Tx
	pending []events.LedgerEvent
	created bool
}

func (m *manager) EnsureWallet(ctx context.Context, userID string) (*Wallet, EnsureOutcome, error) {
	if userID == "" {
		return nil, AlreadyExisted, ErrMissingUser
	}

	w, err := m.repo.GetWallet(ctx, m.db, userID)
	if err == nil {
		return w, AlreadyExisted, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, AlreadyExisted, err
	}

	var (
		u      *unit
		result EnsureOutcome
	)
	err = db.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		u = &unit{tx: tx}
		w, result, err = m.ensureLocked(ctx, u, userID)
		return err
	})
	if err != nil {
		return nil, AlreadyExisted, err
	}

	m.afterCommit(ctx, u)
	return w, result, nil
}

func (m *manager) GetOrCreateWallet(ctx context.Context, userID string) (*Wallet, error) {
	w, _, err := m.EnsureWallet(ctx, userID)
	return w, err
}

func (m *manager) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	w, _, err := m.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, err := m.repo.ListTransactions(ctx, m.db, w.WalletID, RecentTransactionsLimit)
	if err != nil {
		return nil, err
	}

	return &Balance{Balance: w.BalanceTokens, RecentTransactions: txs}, nil
}

func (m *manager) DeductTokens(ctx context.Context, req DebitRequest) (*DebitResult, error) {
	res, priced, err := m.deduct(ctx, req)
	amount := 0
	if res != nil && !res.Replayed {
		amount = res.Cost
	}

	// Only catalog names become label values; the name may come from a request body.
	service := unpricedServiceLabel
	if priced {
		service = req.ServiceName
	}
	metrics.RecordWalletOperation(TypeDebit, service, outcome(err), amount)
	return res, err
}

// deduct reports priced once the service name resolved to a catalog cost.
func (m *manager) deduct(ctx context.Context, req DebitRequest) (*DebitResult, bool, error) {
	if req.UserID == "" {
		return nil, false, ErrMissingUser
	}

	cost, err := m.costs.GetCost(ctx, req.ServiceName)
	if err != nil {
		if errors.Is(err, ErrServiceNotConfigured) {
			logger.Error("Service has no token cost configured", "service", req.ServiceName, "user_id", req.UserID)
		}
		return nil, false, err
	}

	var (
		u   *unit
		res *DebitResult
	)
	err = db.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		u = &unit{tx: tx}
		w, _, err := m.ensureLocked(ctx, u, req.UserID)
		if err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			prev, err := m.repo.FindByIdempotencyKey(ctx, tx, w.WalletID, req.IdempotencyKey)
			switch {
			case err == nil:
				if prev.Type != TypeDebit || prev.Reason != req.ServiceName {
					return ErrIdempotencyKeyReused
				}
				res = &DebitResult{
					NewBalance:    prev.BalanceAfter,
					Cost:          -prev.ChangeAmount,
					TransactionID: prev.TransactionID,
					Replayed:      true,
				}
				return nil
			case !errors.Is(err, ErrTransactionNotFound):
				return err
			}
		}

		if w.BalanceTokens < cost {
			return ErrInsufficientTokens
		}

		newBalance := w.BalanceTokens - cost
		if err := m.repo.UpdateBalance(ctx, tx, w.WalletID, newBalance); err != nil {
			return err
		}

		entry, err := m.append(ctx, u, w, -cost, newBalance, req.ServiceName, req.Metadata, req.IdempotencyKey)
		if err != nil {
			return err
		}

		res = &DebitResult{NewBalance: newBalance, Cost: cost, TransactionID: entry.TransactionID}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, idempotencyIndex) {
			return nil, true, ErrIdempotencyKeyReused
		}
		return nil, true, err
	}

	m.afterCommit(ctx, u)
	if res.Replayed {
		logger.Info("Debit replayed", "user_id", req.UserID, "service", req.ServiceName, "transaction_id", res.TransactionID)
	}
	return res, true, nil
}

func (m *manager) CreditTokens(ctx context.Context, req CreditRequest) (*CreditResult, error) {
	res, err := m.credit(ctx, req)
	metrics.RecordWalletOperation(TypeCredit, req.Reason, outcome(err), req.Amount)
	return res, err
}

func (m *manager) credit(ctx context.Context, req CreditRequest) (*CreditResult, error) {
	if req.UserID == "" {
		return nil, ErrMissingUser
	}
	if req.Amount <= 0 || req.Amount > math.MaxInt32 {
		return nil, ErrInvalidAmount
	}
	if req.Reason == "" {
		return nil, ErrMissingReason
	}

	var (
		u   *unit
		res *CreditResult
	)
	err := db.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		u = &unit{tx: tx}
		w, _, err := m.ensureLocked(ctx, u, req.UserID)
		if err != nil {
			return err
		}

		newBalance := w.BalanceTokens + req.Amount
		if newBalance > math.MaxInt32 {
			return ErrInvalidAmount
		}
		if err := m.repo.UpdateBalance(ctx, tx, w.WalletID, newBalance); err != nil {
			return err
		}

		entry, err := m.append(ctx, u, w, req.Amount, newBalance, req.Reason, req.Metadata, "")
		if err != nil {
			return err
		}

		res = &CreditResult{WalletID: w.WalletID, NewBalance: newBalance, TransactionID: entry.TransactionID}
		if req.InTx != nil {
			return req.InTx(ctx, tx, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.afterCommit(ctx, u)
	return res, nil
}

func (m *manager) GetTransactionHistory(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, ErrInvalidLimit
	}

	w, _, err := m.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.repo.ListTransactions(ctx, m.db, w.WalletID, limit)
}

// Reconcile compares the stored balance with the sum of the wallet's ledger.
func (m *manager) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	var rec *Reconciliation
	err := db.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		w, err := m.repo.LockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		sum, entries, err := m.repo.LedgerSum(ctx, tx, w.WalletID)
		if err != nil {
			return err
		}
		rec = &Reconciliation{
			UserID:     userID,
			Balance:    w.BalanceTokens,
			LedgerSum:  sum,
			Entries:    entries,
			Consistent: sum == w.BalanceTokens,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !rec.Consistent {
		logger.Warn("Wallet ledger drift detected",
			"user_id", userID, "balance", rec.Balance, "ledger_sum", rec.LedgerSum)
	}
	return rec, nil
}

// ensureLocked returns the caller's wallet with its row locked in u.tx,
// creating it with the welcome grant if needed. A lost creation race falls
// through to the locking read of the winner's row.
func (m *manager) ensureLocked(ctx context.Context, u *unit, userID string) (*Wallet, EnsureOutcome, error) {
	w, created, err := m.repo.InsertWallet(ctx, u.tx, userID, m.welcome)
	if err != nil {
		return nil, AlreadyExisted, err
	}

	if created {
		u.created = true
		if m.welcome > 0 {
			meta := map[string]interface{}{
				"description":    "Welcome bonus tokens for new user",
				"isWelcomeBonus": true,
			}
			if _, err := m.append(ctx, u, w, m.welcome, m.welcome, WelcomeReason, meta, ""); err != nil {
				return nil, Created, err
			}
		}
		return w, Created, nil
	}

	w, err = m.repo.LockWallet(ctx, u.tx, userID)
	if err != nil {
		return nil, AlreadyExisted, err
	}
	return w, AlreadyExisted, nil
}

// append writes one ledger entry. The caller updates the wallet row itself.
func (m *manager) append(ctx context.Context, u *unit, w *Wallet, change, balanceAfter int, reason string, meta map[string]interface{}, key string) (*Transaction, error) {
	entry := &Transaction{
		WalletID:     w.WalletID,
		ChangeAmount: change,
		Type:         TypeCredit,
		Reason:       reason,
		BalanceAfter: balanceAfter,
	}
	if change < 0 {
		entry.Type = TypeDebit
	}
	if key != "" {
		entry.IdempotencyKey = &key
	}
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("encode transaction metadata: %w", err)
		}
		entry.Metadata = types.JSONText(b)
	}

	if err := m.repo.InsertTransaction(ctx, u.tx, entry); err != nil {
		return nil, err
	}

	u.pending = append(u.pending, events.LedgerEvent{
		WalletID:      w.WalletID,
		UserID:        w.UserID,
		TransactionID: entry.TransactionID,
		Type:          entry.Type,
		ChangeAmount:  entry.ChangeAmount,
		BalanceAfter:  entry.BalanceAfter,
		Reason:        entry.Reason,
		Metadata:      meta,
		OccurredAt:    entry.CreatedAt,
	})
	return entry, nil
}

// afterCommit publishes the unit's ledger events. The ledger is already
// durable, so a publish failure is only logged.
func (m *manager) afterCommit(ctx context.Context, u *unit) {
	if u == nil {
		return
	}
	if u.created {
		metrics.RecordWalletCreated()
	}
	if len(u.pending) == 0 {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := m.events.Publish(pctx, u.pending...); err != nil {
		logger.WithError(err).WithField("events", len(u.pending)).Warn("Failed to publish ledger events")
	}
}
