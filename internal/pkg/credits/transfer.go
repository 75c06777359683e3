package credits

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tobiaslindner/billhive/app/models"
	"gorm.io/datatypes"
)

// MembershipChecker answers whether a user holds an active seat on an
// owner's team, and with which role.
type MembershipChecker interface {
	IsActiveMember(ctx context.Context, ownerID, userID uint) (bool, string, error)
}

// SubscriptionChecker answers whether a user has an active subscription.
type SubscriptionChecker interface {
	HasActiveSubscription(ctx context.Context, userID uint) (bool, error)
}

// TransferEngine moves credits between a team owner and a member, and debits
// usage. Balance mutation and ledger rows always share one transaction.
type TransferEngine struct {
	repo    Repository
	members MembershipChecker
	subs    SubscriptionChecker
}

// NewTransferEngine wires the engine with its collaborators.
func NewTransferEngine(repo Repository, members MembershipChecker, subs SubscriptionChecker) *TransferEngine {
	return &TransferEngine{repo: repo, members: members, subs: subs}
}

// TransferResult reports a completed transfer.
type TransferResult struct {
	FromUserID    uint   `json:"from_user_id"`
	ToUserID      uint   `json:"to_user_id"`
	Amount        int    `json:"amount"`
	OutgoingTxnID string `json:"outgoing_transaction_id"`
	IncomingTxnID string `json:"incoming_transaction_id"`
}

// TransferCredits moves amount credits from an owner to one of their active
// members. Preconditions fail fast in order: positive amount, active
// membership, sufficient balance, active subscription. The debit, the
// credit and both ledger rows commit atomically.
func (e *TransferEngine) TransferCredits(ctx context.Context, fromOwnerID, toUserID uint, amount int) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	isMember, _, err := e.members.IsActiveMember(ctx, fromOwnerID, toUserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotTeamMember
	}

	balance, err := e.repo.GetBalance(ctx, fromOwnerID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientCredits
	}

	hasSub, err := e.subs.HasActiveSubscription(ctx, fromOwnerID)
	if err != nil {
		return nil, err
	}
	if !hasSub {
		return nil, ErrNoActiveSubscription
	}

	outID := uuid.NewString()
	inID := uuid.NewString()
	outgoing := &models.Transaction{
		TransactionID: outID,
		UserID:        fromOwnerID,
		Credits:       -amount,
		Method:        models.TransactionMethodTransferOut,
		Status:        models.TransactionStatusCompleted,
		Details:       transferDetails(toUserID, inID),
	}
	incoming := &models.Transaction{
		TransactionID: inID,
		UserID:        toUserID,
		Credits:       amount,
		Method:        models.TransactionMethodTransferIn,
		Status:        models.TransactionStatusCompleted,
		Details:       transferDetails(fromOwnerID, outID),
	}

	if err := e.repo.Transfer(ctx, fromOwnerID, toUserID, amount, outgoing, incoming); err != nil {
		return nil, err
	}

	return &TransferResult{
		FromUserID:    fromOwnerID,
		ToUserID:      toUserID,
		Amount:        amount,
		OutgoingTxnID: outID,
		IncomingTxnID: inID,
	}, nil
}

// UseCredits debits usage from an owner's balance. When a member spends on
// the owner's behalf the ledger row is tagged with the acting member and
// their role.
func (e *TransferEngine) UseCredits(ctx context.Context, ownerID uint, amount int, usedByUserID uint, serviceID string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	hasSub, err := e.subs.HasActiveSubscription(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !hasSub {
		return nil, ErrNoActiveSubscription
	}

	details := map[string]any{}
	if serviceID != "" {
		details["service_id"] = serviceID
	}
	if usedByUserID != 0 && usedByUserID != ownerID {
		isMember, role, memberErr := e.members.IsActiveMember(ctx, ownerID, usedByUserID)
		if memberErr != nil {
			return nil, memberErr
		}
		if !isMember {
			return nil, ErrNotTeamMember
		}
		details["team_usage"] = true
		details["used_by"] = usedByUserID
		details["used_by_role"] = role
	}

	record := &models.Transaction{
		TransactionID: uuid.NewString(),
		UserID:        ownerID,
		Credits:       -amount,
		Method:        models.TransactionMethodUsage,
		Status:        models.TransactionStatusCompleted,
		Details:       mustJSON(details),
		CreatedAt:     time.Now(),
	}

	if err := e.repo.Debit(ctx, ownerID, amount, record); err != nil {
		return nil, err
	}
	return record, nil
}

func transferDetails(counterpartUserID uint, counterpartTxnID string) datatypes.JSON {
	return mustJSON(map[string]any{
		"counterpart_user_id":        counterpartUserID,
		"counterpart_transaction_id": counterpartTxnID,
	})
}

func mustJSON(v map[string]any) datatypes.JSON {
	if len(v) == 0 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
