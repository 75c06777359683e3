package credits

import "errors"

var (
	// ErrInsufficientCredits signals a debit or transfer that would push a
	// balance below zero. The balance is left untouched.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount signals a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrNotTeamMember signals a transfer or delegated usage where the user
	// is not an active member of the owner's team.
	ErrNotTeamMember = errors.New("user is not an active team member")

	// ErrNoActiveSubscription signals an owner without an active plan.
	ErrNoActiveSubscription = errors.New("owner has no active subscription")
)
