package proration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobiaslindner/billhive/app/models"
	"github.com/tobiaslindner/billhive/internal/pkg/catalog"
)

type fakePlanSource struct {
	plans map[uint]models.Plan
}

func (f *fakePlanSource) ListPlans(_ context.Context) ([]models.Plan, error) {
	out := make([]models.Plan, 0, len(f.plans))
	for _, p := range f.plans {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePlanSource) GetPlan(_ context.Context, planID uint) (*models.Plan, error) {
	p, ok := f.plans[planID]
	if !ok {
		return nil, catalog.ErrPlanNotFound
	}
	return &p, nil
}

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestComputeFullTermEqualsPrice(t *testing.T) {
	plan := &models.Plan{ID: 1, PeriodMonths: 3, PriceAmount: price("30.00")}
	sub := &models.Subscription{
		PlanID:  1,
		EndDate: testNow.Add(90 * 24 * time.Hour),
	}

	pro := Compute(sub, plan, testNow)
	assert.Equal(t, 90, pro.DaysRemaining)
	assert.Equal(t, 90, pro.TotalDays)
	assert.True(t, pro.ProratedValue.Equal(plan.PriceAmount),
		"full remaining term must prorate to the full price, got %s", pro.ProratedValue)
}

func TestComputeExpiredTermIsZero(t *testing.T) {
	plan := &models.Plan{ID: 1, PeriodMonths: 1, PriceAmount: price("10.00")}
	sub := &models.Subscription{PlanID: 1, EndDate: testNow.Add(-time.Hour)}

	pro := Compute(sub, plan, testNow)
	assert.Equal(t, 0, pro.DaysRemaining)
	assert.True(t, pro.ProratedValue.IsZero())
}

func TestComputeZeroTotalDays(t *testing.T) {
	plan := &models.Plan{ID: 1, PeriodMonths: 0, PriceAmount: price("10.00")}
	sub := &models.Subscription{PlanID: 1, EndDate: testNow.Add(10 * 24 * time.Hour)}

	pro := Compute(sub, plan, testNow)
	assert.Equal(t, 0, pro.TotalDays)
	assert.True(t, pro.ValuePerDay.IsZero())
	assert.True(t, pro.ProratedValue.IsZero())
}

func TestQuoteCreditCarryOver(t *testing.T) {
	// Balance 40 of an initial 100 means 60 consumed; the 150-credit plan
	// grants the difference.
	currentPlan := &models.Plan{ID: 1, PeriodMonths: 1, CreditAmount: 100, PriceAmount: price("10.00")}
	newPlan := &models.Plan{ID: 2, PeriodMonths: 1, CreditAmount: 150, PriceAmount: price("20.00")}
	sub := &models.Subscription{PlanID: 1, EndDate: testNow.Add(-time.Hour)}

	quote := Quote(sub, currentPlan, newPlan, 40, testNow)
	assert.Equal(t, 60, quote.ConsumedCredits)
	assert.Equal(t, 90, quote.AdjustedNewCredits)
	assert.True(t, quote.Cost.Equal(price("20.00")))
}

func TestQuoteCostNeverNegative(t *testing.T) {
	// Remaining value of the old plan exceeds the new plan's price.
	currentPlan := &models.Plan{ID: 1, PeriodMonths: 12, CreditAmount: 0, PriceAmount: price("360.00")}
	newPlan := &models.Plan{ID: 2, PeriodMonths: 1, CreditAmount: 0, PriceAmount: price("5.00")}
	sub := &models.Subscription{PlanID: 1, EndDate: testNow.Add(360 * 24 * time.Hour)}

	quote := Quote(sub, currentPlan, newPlan, 0, testNow)
	assert.False(t, quote.Cost.IsNegative())
	assert.True(t, quote.Cost.IsZero())
}

func TestQuoteBalanceAboveInitialConsumesNothing(t *testing.T) {
	currentPlan := &models.Plan{ID: 1, PeriodMonths: 1, CreditAmount: 100, PriceAmount: price("10.00")}
	newPlan := &models.Plan{ID: 2, PeriodMonths: 1, CreditAmount: 150, PriceAmount: price("20.00")}
	sub := &models.Subscription{PlanID: 1, EndDate: testNow.Add(-time.Hour)}

	quote := Quote(sub, currentPlan, newPlan, 130, testNow)
	assert.Equal(t, 0, quote.ConsumedCredits)
	assert.Equal(t, 150, quote.AdjustedNewCredits)
}

func TestIsUpgradeCandidate(t *testing.T) {
	base := &models.Plan{ID: 1, Level: 1, CategoryID: 1}

	tests := []struct {
		name      string
		candidate models.Plan
		want      bool
	}{
		{name: "higher level", candidate: models.Plan{ID: 2, Level: 2, CategoryID: 1}, want: true},
		{name: "same level other category", candidate: models.Plan{ID: 3, Level: 1, CategoryID: 2}, want: true},
		{name: "same level same category", candidate: models.Plan{ID: 4, Level: 1, CategoryID: 1}, want: false},
		{name: "lower level", candidate: models.Plan{ID: 5, Level: 0, CategoryID: 2}, want: false},
		{name: "self", candidate: models.Plan{ID: 1, Level: 1, CategoryID: 1}, want: false},
	}

	for _, tt := range tests {
		if got := IsUpgradeCandidate(base, &tt.candidate); got != tt.want {
			t.Fatalf("%s: IsUpgradeCandidate = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCalculatorUpgradeCostUnknownPlan(t *testing.T) {
	src := &fakePlanSource{plans: map[uint]models.Plan{
		1: {ID: 1, Level: 1, PeriodMonths: 1, PriceAmount: price("10.00")},
	}}
	calc := NewCalculator(src)

	sub := &models.Subscription{PlanID: 1, EndDate: testNow.Add(24 * time.Hour)}
	_, err := calc.UpgradeCost(context.Background(), sub, 99, 0, testNow)
	require.ErrorIs(t, err, catalog.ErrPlanNotFound)
}

func TestCalculatorAvailableUpgradesSorted(t *testing.T) {
	src := &fakePlanSource{plans: map[uint]models.Plan{
		1: {ID: 1, Level: 1, CategoryID: 1, PeriodMonths: 1, PriceAmount: price("10.00")},
		2: {ID: 2, Level: 2, CategoryID: 1, PeriodMonths: 1, PriceAmount: price("20.00")},
		3: {ID: 3, Level: 1, CategoryID: 2, PeriodMonths: 1, PriceAmount: price("12.00")},
		4: {ID: 4, Level: 3, CategoryID: 1, PeriodMonths: 1, PriceAmount: price("30.00")},
		5: {ID: 5, Level: 0, CategoryID: 1, PeriodMonths: 1, PriceAmount: price("0.00")},
	}}
	calc := NewCalculator(src)

	sub := &models.Subscription{PlanID: 1, EndDate: testNow.Add(15 * 24 * time.Hour)}
	quotes, err := calc.AvailableUpgrades(context.Background(), sub, 0, testNow)
	require.NoError(t, err)

	var ids []uint
	for _, q := range quotes {
		ids = append(ids, q.Plan.ID)
	}
	assert.Equal(t, []uint{3, 2, 4}, ids)
}
