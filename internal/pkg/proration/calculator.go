package proration

import (
	"context"
	"sort"
	"time"

	"github.com/tobiaslindner/billhive/app/models"
)

// PlanSource is the slice of the plan catalog the calculator needs.
type PlanSource interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, planID uint) (*models.Plan, error)
}

// Calculator computes prorated values and upgrade quotes against the plan
// catalog. It holds no mutable state.
type Calculator struct {
	plans PlanSource
}

// NewCalculator creates a calculator reading plans from the given source.
func NewCalculator(plans PlanSource) *Calculator {
	return &Calculator{plans: plans}
}

// Prorate returns the remaining-value breakdown of sub as of now.
func (c *Calculator) Prorate(ctx context.Context, sub *models.Subscription, now time.Time) (Proration, error) {
	plan, err := c.plans.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return Proration{}, err
	}
	return Compute(sub, plan, now), nil
}

// UpgradeCost quotes switching from the current subscription to newPlanID
// given the user's current credit balance.
func (c *Calculator) UpgradeCost(ctx context.Context, current *models.Subscription, newPlanID uint, balance int, now time.Time) (*UpgradeQuote, error) {
	currentPlan, err := c.plans.GetPlan(ctx, current.PlanID)
	if err != nil {
		return nil, err
	}
	newPlan, err := c.plans.GetPlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}

	quote := Quote(current, currentPlan, newPlan, balance, now)
	return &quote, nil
}

// PlanQuote pairs a candidate plan with its upgrade quote.
type PlanQuote struct {
	Plan  models.Plan  `json:"plan"`
	Quote UpgradeQuote `json:"quote"`
}

// AvailableUpgrades lists every catalog plan that counts as an upgrade from
// the current subscription, quoted, sorted by (level, plan id) ascending.
func (c *Calculator) AvailableUpgrades(ctx context.Context, current *models.Subscription, balance int, now time.Time) ([]PlanQuote, error) {
	currentPlan, err := c.plans.GetPlan(ctx, current.PlanID)
	if err != nil {
		return nil, err
	}
	plans, err := c.plans.ListPlans(ctx)
	if err != nil {
		return nil, err
	}

	var out []PlanQuote
	for i := range plans {
		candidate := plans[i]
		if !IsUpgradeCandidate(currentPlan, &candidate) {
			continue
		}
		quote := Quote(current, currentPlan, &candidate, balance, now)
		out = append(out, PlanQuote{Plan: candidate, Quote: quote})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Plan.Level != out[j].Plan.Level {
			return out[i].Plan.Level < out[j].Plan.Level
		}
		return out[i].Plan.ID < out[j].Plan.ID
	})
	return out, nil
}
