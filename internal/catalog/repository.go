package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrServiceNotConfigured = errors.New("service not configured in token costs")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrInvalidCost          = errors.New("service cost must be positive")
)

type Repository interface {
	GetCost(ctx context.Context, serviceName string) (int, error)
	UpsertCost(ctx context.Context, serviceName string, cost int) error
	ListPlans(ctx context.Context) ([]Plan, error)
	GetPlan(ctx context.Context, planID string) (*Plan, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetCost(ctx context.Context, serviceName string) (int, error) {
	var cost int
	err := r.db.GetContext(ctx, &cost,
		`SELECT cost FROM wallet.services_token_costs WHERE service_name = $1`,
		serviceName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrServiceNotConfigured, serviceName)
	}
	if err != nil {
		return 0, fmt.Errorf("get cost for %q: %w", serviceName, err)
	}
	return cost, nil
}

func (r *repository) UpsertCost(ctx context.Context, serviceName string, cost int) error {
	if cost <= 0 {
		return ErrInvalidCost
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallet.services_token_costs (service_name, cost)
		VALUES ($1, $2)
		ON CONFLICT (service_name) DO UPDATE
		SET cost = EXCLUDED.cost, updated_at = NOW()
	`, serviceName, cost)
	if err != nil {
		return fmt.Errorf("upsert cost for %q: %w", serviceName, err)
	}
	return nil
}

func (r *repository) ListPlans(ctx context.Context) ([]Plan, error) {
	plans := []Plan{}
	err := r.db.SelectContext(ctx, &plans, `
		SELECT plan_id, name, tokens, price, duration_days, is_recurring, created_at, updated_at
		FROM wallet.subscription_plans
		ORDER BY price ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (r *repository) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	if _, err := uuid.Parse(planID); err != nil {
		return nil, ErrPlanNotFound
	}

	p := &Plan{}
	err := r.db.GetContext(ctx, p, `
		SELECT plan_id, name, tokens, price, duration_days, is_recurring, created_at, updated_at
		FROM wallet.subscription_plans
		WHERE plan_id = $1
	`, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", planID, err)
	}
	return p, nil
}
