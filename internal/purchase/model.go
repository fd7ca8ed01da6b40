package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

const StatusCompleted = "completed"

// Purchase is the receipt of a completed top-up.
type Purchase struct {
	PurchaseID    string          `db:"purchase_id" json:"purchaseId"`
	UserID        string          `db:"user_id" json:"userId"`
	PlanID        string          `db:"plan_id" json:"planId"`
	TokensAdded   int             `db:"tokens_added" json:"tokensAdded"`
	AmountPaid    decimal.Decimal `db:"amount_paid" json:"amountPaid"`
	PaymentStatus string          `db:"payment_status" json:"paymentStatus"`
	PaymentID     string          `db:"payment_id" json:"paymentId"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

type Result struct {
	NewBalance int    `json:"newBalance"`
	PurchaseID string `json:"purchaseId"`
}
