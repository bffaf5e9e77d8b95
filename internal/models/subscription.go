package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingTier identifies which price list a plan quote came from
type PricingTier string

const (
	PricingTierLaunch   PricingTier = "launch"
	PricingTierStandard PricingTier = "standard"
)

// SubscriptionPlan is a vendor plan quote
type SubscriptionPlan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	MonthlyPrice decimal.Decimal `json:"monthlyPrice"`
	YearlyPrice  decimal.Decimal `json:"yearlyPrice"`
	ListPrice    decimal.Decimal `json:"listPrice"` // standard monthly price, for strike-through display
	Currency     string          `json:"currency"`
	MaxListings  int             `json:"maxListings"` // 0 = unlimited
	Features     []string        `json:"features"`
}

// SubscriptionPlansResponse is returned by GET /subscription/plans
type SubscriptionPlansResponse struct {
	Tier               PricingTier        `json:"tier"`
	LaunchWindowEndsAt time.Time          `json:"launchWindowEndsAt"`
	Plans              []SubscriptionPlan `json:"plans"`
}
