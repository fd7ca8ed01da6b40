package purchase

import (
	"context"
	"errors"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/catalog"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/metrics"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/wallet"
)

var (
	ErrPlanNotFound            = catalog.ErrPlanNotFound
	ErrPaymentIDRequired       = errors.New("payment_id is required")
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
)

const historyLimit = 50

type PlanResolver interface {
	GetPlan(ctx context.Context, planID string) (*catalog.Plan, error)
}

// Processor turns a paid plan into a wallet credit. The purchase receipt is
// written in the credit's database transaction, so a duplicate payment id
// leaves the balance untouched.
type Processor interface {
	ProcessPurchase(ctx context.Context, userID, planID, paymentID string) (*Result, error)
	ListPurchases(ctx context.Context, userID string) ([]Purchase, error)
}

type processor struct {
	repo    Repository
	plans   PlanResolver
	wallets wallet.Manager
}

func NewProcessor(repo Repository, plans PlanResolver, wallets wallet.Manager) Processor {
	return &processor{repo: repo, plans: plans, wallets: wallets}
}

func (p *processor) ProcessPurchase(ctx context.Context, userID, planID, paymentID string) (*Result, error) {
	plan, err := p.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	res, err := p.process(ctx, userID, plan, paymentID)
	switch {
	case err == nil:
		metrics.RecordPurchase(plan.Name, "ok")
		logger.Info("Purchase completed",
			"user_id", userID, "plan", plan.Name, "tokens", plan.Tokens, "purchase_id", res.PurchaseID)
	case errors.Is(err, ErrPaymentAlreadyProcessed):
		metrics.RecordPurchase(plan.Name, "duplicate")
		logger.Warn("Duplicate payment rejected", "user_id", userID, "payment_id", paymentID)
	default:
		metrics.RecordPurchase(plan.Name, "error")
	}
	return res, err
}

func (p *processor) process(ctx context.Context, userID string, plan *catalog.Plan, paymentID string) (*Result, error) {
	if paymentID == "" {
		return nil, ErrPaymentIDRequired
	}

	exists, err := p.repo.PaymentExists(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrPaymentAlreadyProcessed
	}

	receipt := &Purchase{
		UserID:        userID,
		PlanID:        plan.PlanID,
		TokensAdded:   plan.Tokens,
		AmountPaid:    plan.Price,
		PaymentStatus: StatusCompleted,
		PaymentID:     paymentID,
	}

	credit, err := p.wallets.CreditTokens(ctx, wallet.CreditRequest{
		UserID: userID,
		Amount: plan.Tokens,
		Reason: "Subscription Purchase: " + plan.Name,
		Metadata: map[string]interface{}{
			"planId":    plan.PlanID,
			"planName":  plan.Name,
			"paymentId": paymentID,
		},
		InTx: func(ctx context.Context, tx wallet.Tx, _ *wallet.CreditResult) error {
			return p.repo.Insert(ctx, tx, receipt)
		},
	})
	if err != nil {
		return nil, err
	}

	return &Result{NewBalance: credit.NewBalance, PurchaseID: receipt.PurchaseID}, nil
}

func (p *processor) ListPurchases(ctx context.Context, userID string) ([]Purchase, error) {
	return p.repo.ListByUser(ctx, userID, historyLimit)
}
