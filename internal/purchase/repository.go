package purchase

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/db"
)

const paymentIDConstraint = "purchases_payment_id_key"

type Repository interface {
	PaymentExists(ctx context.Context, paymentID string) (bool, error)
	Insert(ctx context.Context, q sqlx.ExtContext, p *Purchase) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Purchase, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(conn *sqlx.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) PaymentExists(ctx context.Context, paymentID string) (bool, error) {
	exists, err := db.Exists(ctx, r.db,
		`SELECT EXISTS(SELECT 1 FROM wallet.purchases WHERE payment_id = $1)`,
		paymentID,
	)
	if err != nil {
		return false, fmt.Errorf("check payment %s: %w", paymentID, err)
	}
	return exists, nil
}

// Insert writes p on q and fills in its id and timestamp. A duplicate
// payment id surfaces as ErrPaymentAlreadyProcessed.
func (r *repository) Insert(ctx context.Context, q sqlx.ExtContext, p *Purchase) error {
	err := q.QueryRowxContext(ctx, `
		INSERT INTO wallet.purchases
			(user_id, plan_id, tokens_added, amount_paid, payment_status, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING purchase_id, created_at`,
		p.UserID, p.PlanID, p.TokensAdded, p.AmountPaid, p.PaymentStatus, p.PaymentID,
	).Scan(&p.PurchaseID, &p.CreatedAt)
	if db.IsUniqueViolation(err, paymentIDConstraint) {
		return ErrPaymentAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID string, limit int) ([]Purchase, error) {
	purchases := []Purchase{}
	err := r.db.SelectContext(ctx, &purchases, `
		SELECT purchase_id, user_id, plan_id, tokens_added, amount_paid, payment_status, payment_id, created_at
		FROM wallet.purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases for %s: %w", userID, err)
	}
	return purchases, nil
}
