package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tobiaslindner/billhive/app/models"
	"github.com/tobiaslindner/billhive/internal/pkg/proration"
	"gorm.io/datatypes"
)

// ErrNoCurrentSubscription signals a plan change for a user without an
// active subscription to replace.
var ErrNoCurrentSubscription = errors.New("no active subscription to replace")

// CreditReader is the read slice of the credit account the ledger needs when
// quoting a plan change.
type CreditReader interface {
	GetBalance(ctx context.Context, userID uint) (int, error)
}

// PlanGetter resolves plan ids against the catalog.
type PlanGetter interface {
	GetPlan(ctx context.Context, planID uint) (*models.Plan, error)
}

// Ledger tracks the single active subscription per user and drives plan
// changes.
type Ledger struct {
	repo    Repository
	calc    *proration.Calculator
	plans   PlanGetter
	credits CreditReader
}

// NewLedger wires the subscription ledger with its collaborators.
func NewLedger(repo Repository, calc *proration.Calculator, plans PlanGetter, credits CreditReader) *Ledger {
	return &Ledger{repo: repo, calc: calc, plans: plans, credits: credits}
}

// GetActiveSubscription returns the user's active subscription or nil. More
// than one active row violates the invariant; the ledger tolerates it, picks
// the latest start date and logs the inconsistency.
func (l *Ledger) GetActiveSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	subs, err := l.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	best := 0
	for i := 1; i < len(subs); i++ {
		if subs[i].StartDate.After(subs[best].StartDate) {
			best = i
		}
	}
	if len(subs) > 1 {
		log.Warnf("subscription: user %d has %d active subscriptions, using latest", userID, len(subs))
	}
	return &subs[best], nil
}

// HasActiveSubscription implements the checker used by the transfer engine.
func (l *Ledger) HasActiveSubscription(ctx context.Context, userID uint) (bool, error) {
	sub, err := l.GetActiveSubscription(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub != nil, nil
}

// ActivePlan resolves the plan of the user's active subscription, or nil
// when there is none.
func (l *Ledger) ActivePlan(ctx context.Context, userID uint) (*models.Plan, error) {
	sub, err := l.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}
	return l.plans.GetPlan(ctx, sub.PlanID)
}

// Deactivate marks one subscription inactive. Already-inactive rows are a
// no-op.
func (l *Ledger) Deactivate(ctx context.Context, subscriptionID uint) error {
	return l.repo.Deactivate(ctx, subscriptionID)
}

// RegisterPlanChange replaces the current subscription with newPlanID after a
// successful gateway charge. It quotes the change, deactivates the old row,
// activates the new one, resets the credit balance to the adjusted grant and
// appends the Transaction and PlanChange audit rows, all in one transaction.
func (l *Ledger) RegisterPlanChange(ctx context.Context, userID uint, current *models.Subscription, newPlanID uint, gatewayTxnID string, amountCharged decimal.Decimal, metadata map[string]any) (*models.Subscription, error) {
	now := time.Now()

	if current == nil {
		var err error
		current, err = l.GetActiveSubscription(ctx, userID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrNoCurrentSubscription
		}
	}

	balance, err := l.credits.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	quote, err := l.calc.UpgradeCost(ctx, current, newPlanID, balance, now)
	if err != nil {
		return nil, err
	}

	newPlan, err := l.plans.GetPlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}

	if gatewayTxnID == "" {
		gatewayTxnID = uuid.NewString()
	}

	details := map[string]any{
		"old_plan_id":    current.PlanID,
		"new_plan_id":    newPlanID,
		"prorated_value": quote.ProratedValue,
		"credits_set":    quote.AdjustedNewCredits,
	}
	for k, v := range metadata {
		details[k] = v
	}

	params := &PlanChangeParams{
		UserID:            userID,
		OldSubscriptionID: current.ID,
		NewSubscription: models.Subscription{
			UserID:        userID,
			PlanID:        newPlanID,
			StartDate:     now,
			EndDate:       now.Add(time.Duration(newPlan.PeriodDays()) * 24 * time.Hour),
			IsActive:      true,
			PaymentStatus: models.PaymentStatusPaid,
			TransactionID: gatewayTxnID,
		},
		NewBalance: quote.AdjustedNewCredits,
		LedgerEntry: models.Transaction{
			TransactionID: gatewayTxnID,
			UserID:        userID,
			Amount:        amountCharged,
			Credits:       quote.AdjustedNewCredits - balance,
			Method:        models.TransactionMethodSubscription,
			Status:        models.TransactionStatusCompleted,
			Details:       marshalDetails(details),
		},
		Audit: models.PlanChange{
			UserID:            userID,
			OldSubscriptionID: current.ID,
			TransactionID:     gatewayTxnID,
			ProratedValue:     quote.ProratedValue,
			CreditsSet:        quote.AdjustedNewCredits,
		},
	}

	return l.repo.ApplyPlanChange(ctx, params)
}

func marshalDetails(details map[string]any) datatypes.JSON {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
