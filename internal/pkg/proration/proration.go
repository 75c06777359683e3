package proration

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tobiaslindner/billhive/app/models"
)

// Proration is the remaining-value breakdown of a running subscription. The
// term length uses a fixed 30-day month, not calendar months.
type Proration struct {
	DaysRemaining int             `json:"days_remaining"`
	TotalDays     int             `json:"total_days"`
	ValuePerDay   decimal.Decimal `json:"value_per_day"`
	ProratedValue decimal.Decimal `json:"prorated_value"`
}

// UpgradeQuote carries the money cost of switching to a plan and the credit
// amount the account must be reset to once the switch happens.
type UpgradeQuote struct {
	NewPlanID          uint            `json:"new_plan_id"`
	Cost               decimal.Decimal `json:"cost"`
	ProratedValue      decimal.Decimal `json:"prorated_value"`
	ConsumedCredits    int             `json:"consumed_credits"`
	AdjustedNewCredits int             `json:"adjusted_new_credits"`
}

// Compute derives the unused value of sub under plan as of now. Money values
// round half-up to two places at the prorated total, matching the
// decimal(10,2) ledger columns.
func Compute(sub *models.Subscription, plan *models.Plan, now time.Time) Proration {
	totalDays := plan.PeriodDays()
	daysRemaining := sub.RemainingDays(now)
	if daysRemaining > totalDays {
		daysRemaining = totalDays
	}

	valuePerDay := decimal.Zero
	if totalDays > 0 {
		valuePerDay = plan.PriceAmount.Div(decimal.NewFromInt(int64(totalDays)))
	}
	proratedValue := valuePerDay.Mul(decimal.NewFromInt(int64(daysRemaining))).Round(2)

	return Proration{
		DaysRemaining: daysRemaining,
		TotalDays:     totalDays,
		ValuePerDay:   valuePerDay,
		ProratedValue: proratedValue,
	}
}

// Quote combines proration of the current term with the credit carry-over
// rules: credits already consumed under the old plan reduce the grant of the
// new one, and the prorated leftover reduces the money cost. Both clamp at
// zero.
func Quote(current *models.Subscription, currentPlan, newPlan *models.Plan, balance int, now time.Time) UpgradeQuote {
	pro := Compute(current, currentPlan, now)

	consumed := currentPlan.CreditAmount - balance
	if consumed < 0 {
		consumed = 0
	}
	adjusted := newPlan.CreditAmount - consumed
	if adjusted < 0 {
		adjusted = 0
	}

	cost := newPlan.PriceAmount.Sub(pro.ProratedValue)
	if cost.IsNegative() {
		cost = decimal.Zero
	}

	return UpgradeQuote{
		NewPlanID:          newPlan.ID,
		Cost:               cost.Round(2),
		ProratedValue:      pro.ProratedValue,
		ConsumedCredits:    consumed,
		AdjustedNewCredits: adjusted,
	}
}

// IsUpgradeCandidate reports whether candidate counts as an upgrade from
// current: a strictly higher level, or the same level in a different
// category. Same-level cross-category switches counting as upgrades is
// business policy carried over as-is.
func IsUpgradeCandidate(current, candidate *models.Plan) bool {
	if candidate.ID == current.ID {
		return false
	}
	if candidate.Level > current.Level {
		return true
	}
	return candidate.Level == current.Level && candidate.CategoryID != current.CategoryID
}
