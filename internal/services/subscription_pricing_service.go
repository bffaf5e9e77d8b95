package services

import (
	"time"

	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/shopspring/decimal"
)

// planPrice is the monthly price of a plan in each tier
type planPrice struct {
	id          string
	name        string
	launch      int64
	standard    int64
	maxListings int
	features    []string
}

var vendorPlans = []planPrice{
	{
		id:          "basic",
		name:        "Basic",
		launch:      299,
		standard:    499,
		maxListings: 3,
		features:    []string{"Up to 3 listings", "Booking management", "Email support"},
	},
	{
		id:          "growth",
		name:        "Growth",
		launch:      699,
		standard:    999,
		maxListings: 15,
		features:    []string{"Up to 15 listings", "Coupons", "Priority placement in search", "Chat support"},
	},
	{
		id:          "premium",
		name:        "Premium",
		launch:      1499,
		standard:    1999,
		maxListings: 0,
		features:    []string{"Unlimited listings", "Coupons", "Featured placement", "Dedicated account manager"},
	},
}

// yearly plans bill ten months for twelve
const yearlyBilledMonths = 10

// SubscriptionPricingService quotes vendor subscription plans.
// Prices depend only on the current date relative to the launch window.
type SubscriptionPricingService struct {
	launchDate   time.Time
	windowMonths int
	currency     string
}

// NewSubscriptionPricingService creates a new SubscriptionPricingService
func NewSubscriptionPricingService(launchDate time.Time, windowMonths int, currency string) *SubscriptionPricingService {
	return &SubscriptionPricingService{
		launchDate:   launchDate,
		windowMonths: windowMonths,
		currency:     currency,
	}
}

// LaunchWindowEndsAt is the first instant standard pricing applies
func (s *SubscriptionPricingService) LaunchWindowEndsAt() time.Time {
	return s.launchDate.AddDate(0, s.windowMonths, 0)
}

// Tier returns the price list in effect at now
func (s *SubscriptionPricingService) Tier(now time.Time) models.PricingTier {
	if now.Before(s.LaunchWindowEndsAt()) {
		return models.PricingTierLaunch
	}
	return models.PricingTierStandard
}

// Plans returns every plan priced for now
func (s *SubscriptionPricingService) Plans(now time.Time) *models.SubscriptionPlansResponse {
	tier := s.Tier(now)

	plans := make([]models.SubscriptionPlan, 0, len(vendorPlans))
	for _, p := range vendorPlans {
		monthly := decimal.NewFromInt(p.standard)
		if tier == models.PricingTierLaunch {
			monthly = decimal.NewFromInt(p.launch)
		}
		plans = append(plans, models.SubscriptionPlan{
			ID:           p.id,
			Name:         p.name,
			MonthlyPrice: monthly,
			YearlyPrice:  monthly.Mul(decimal.NewFromInt(yearlyBilledMonths)),
			ListPrice:    decimal.NewFromInt(p.standard),
			Currency:     s.currency,
			MaxListings:  p.maxListings,
			Features:     append([]string(nil), p.features...),
		})
	}

	return &models.SubscriptionPlansResponse{
		Tier:               tier,
		LaunchWindowEndsAt: s.LaunchWindowEndsAt(),
		Plans:              plans,
	}
}
