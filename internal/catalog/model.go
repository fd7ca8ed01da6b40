package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Well-known priced services.
const (
	ServiceAIChat         = "ai_chat"
	ServiceTextInterview  = "text_interview"
	ServiceVoiceInterview = "voice_interview"
	ServiceVideoInterview = "video_interview"
	ServiceGroupPractice  = "group_practice"
)

// Plan is a purchasable token bundle.
type Plan struct {
	PlanID       string          `db:"plan_id" json:"planId"`
	Name         string          `db:"name" json:"name"`
	Tokens       int             `db:"tokens" json:"tokens"`
	Price        decimal.Decimal `db:"price" json:"price"`
	DurationDays int             `db:"duration_days" json:"durationDays"`
	IsRecurring  bool            `db:"is_recurring" json:"isRecurring"`
	CreatedAt    time.Time       `db:"created_at" json:"-"`
	UpdatedAt    time.Time       `db:"updated_at" json:"-"`
}

type ServiceCost struct {
	ServiceName string    `db:"service_name" json:"serviceName"`
	Cost        int       `db:"cost" json:"cost"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// DefaultCosts are upserted at startup.
var DefaultCosts = []ServiceCost{
	{ServiceName: ServiceAIChat, Cost: 1},
	{ServiceName: ServiceTextInterview, Cost: 5},
	{ServiceName: ServiceVoiceInterview, Cost: 10},
	{ServiceName: ServiceVideoInterview, Cost: 15},
	{ServiceName: ServiceGroupPractice, Cost: 3},
}
