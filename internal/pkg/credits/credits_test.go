package credits

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobiaslindner/billhive/app/models"
)

type fakeRepo struct {
	balances map[uint]int
	txns     []models.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{balances: map[uint]int{}}
}

func (f *fakeRepo) GetBalance(_ context.Context, userID uint) (int, error) {
	return f.balances[userID], nil
}

func (f *fakeRepo) AddBalance(_ context.Context, userID uint, delta int) error {
	if delta < 0 && f.balances[userID] < -delta {
		return ErrInsufficientCredits
	}
	f.balances[userID] += delta
	return nil
}

func (f *fakeRepo) ResetBalance(_ context.Context, userID uint, value int) error {
	f.balances[userID] = value
	return nil
}

func (f *fakeRepo) Transfer(_ context.Context, fromUserID, toUserID uint, amount int, outgoing, incoming *models.Transaction) error {
	if f.balances[fromUserID] < amount {
		return ErrInsufficientCredits
	}
	f.balances[fromUserID] -= amount
	f.balances[toUserID] += amount
	f.txns = append(f.txns, *outgoing, *incoming)
	return nil
}

func (f *fakeRepo) Debit(_ context.Context, userID uint, amount int, record *models.Transaction) error {
	if f.balances[userID] < amount {
		return ErrInsufficientCredits
	}
	f.balances[userID] -= amount
	f.txns = append(f.txns, *record)
	return nil
}

func (f *fakeRepo) ListTransactions(_ context.Context, userID uint, _ int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, txn := range f.txns {
		if txn.UserID == userID {
			out = append(out, txn)
		}
	}
	return out, nil
}

type fakeMembers struct {
	roles map[[2]uint]string // [ownerID, userID] -> role
}

func (f *fakeMembers) IsActiveMember(_ context.Context, ownerID, userID uint) (bool, string, error) {
	role, ok := f.roles[[2]uint{ownerID, userID}]
	return ok, role, nil
}

type fakeSubs struct {
	active map[uint]bool
}

func (f *fakeSubs) HasActiveSubscription(_ context.Context, userID uint) (bool, error) {
	return f.active[userID], nil
}

func newEngine(repo *fakeRepo, members *fakeMembers, subs *fakeSubs) *TransferEngine {
	return NewTransferEngine(repo, members, subs)
}

func TestAdjustAddRejectsNegativeResult(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 10
	svc := NewService(repo)

	err := svc.Adjust(context.Background(), 1, -20, AdjustAdd)
	require.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Equal(t, 10, repo.balances[1])
}

func TestAdjustZeroDeltaIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 25
	svc := NewService(repo)

	require.NoError(t, svc.Adjust(context.Background(), 1, 0, AdjustAdd))

	balance, err := svc.GetBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 25, balance)
}

func TestAdjustResetSetsBalance(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 10
	svc := NewService(repo)

	require.NoError(t, svc.Adjust(context.Background(), 1, 90, AdjustReset))
	assert.Equal(t, 90, repo.balances[1])
}

func TestTransferPreconditionOrder(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.balances[1] = 30
	members := &fakeMembers{roles: map[[2]uint]string{{1, 2}: models.RoleEditor}}
	subs := &fakeSubs{active: map[uint]bool{}}
	engine := newEngine(repo, members, subs)

	_, err := engine.TransferCredits(ctx, 1, 2, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)

	// Non-member wins over insufficient balance.
	_, err = engine.TransferCredits(ctx, 1, 99, 1000)
	require.ErrorIs(t, err, ErrNotTeamMember)

	_, err = engine.TransferCredits(ctx, 1, 2, 50)
	require.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Equal(t, 30, repo.balances[1], "failed transfer must not move credits")
	assert.Empty(t, repo.txns, "failed transfer must not write ledger rows")

	// Balance fine, but no active subscription.
	repo.balances[1] = 100
	_, err = engine.TransferCredits(ctx, 1, 2, 50)
	require.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestTransferRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.balances[1] = 100
	repo.balances[2] = 20
	members := &fakeMembers{roles: map[[2]uint]string{
		{1, 2}: models.RoleEditor,
		{2, 1}: models.RoleEditor,
	}}
	subs := &fakeSubs{active: map[uint]bool{1: true, 2: true}}
	engine := newEngine(repo, members, subs)

	res, err := engine.TransferCredits(ctx, 1, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, repo.balances[1])
	assert.Equal(t, 70, repo.balances[2])
	assert.NotEqual(t, res.OutgoingTxnID, res.IncomingTxnID)

	_, err = engine.TransferCredits(ctx, 2, 1, 50)
	require.NoError(t, err)

	assert.Equal(t, 100, repo.balances[1])
	assert.Equal(t, 20, repo.balances[2])
	require.Len(t, repo.txns, 4)

	net := 0
	for _, txn := range repo.txns {
		net += txn.Credits
	}
	assert.Equal(t, 0, net, "paired ledger rows must sum to zero")
}

func TestTransferLedgerCrossReferences(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.balances[1] = 100
	members := &fakeMembers{roles: map[[2]uint]string{{1, 2}: models.RoleViewer}}
	subs := &fakeSubs{active: map[uint]bool{1: true}}
	engine := newEngine(repo, members, subs)

	res, err := engine.TransferCredits(ctx, 1, 2, 10)
	require.NoError(t, err)
	require.Len(t, repo.txns, 2)

	var outDetails, inDetails map[string]any
	require.NoError(t, json.Unmarshal(repo.txns[0].Details, &outDetails))
	require.NoError(t, json.Unmarshal(repo.txns[1].Details, &inDetails))

	assert.Equal(t, res.IncomingTxnID, outDetails["counterpart_transaction_id"])
	assert.Equal(t, res.OutgoingTxnID, inDetails["counterpart_transaction_id"])
	assert.Equal(t, models.TransactionMethodTransferOut, repo.txns[0].Method)
	assert.Equal(t, models.TransactionMethodTransferIn, repo.txns[1].Method)
}

func TestUseCreditsTagsDelegatedUsage(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.balances[1] = 40
	members := &fakeMembers{roles: map[[2]uint]string{{1, 2}: models.RoleManager}}
	subs := &fakeSubs{active: map[uint]bool{1: true}}
	engine := newEngine(repo, members, subs)

	record, err := engine.UseCredits(ctx, 1, 15, 2, "render")
	require.NoError(t, err)
	assert.Equal(t, 25, repo.balances[1])
	assert.Equal(t, -15, record.Credits)

	var details map[string]any
	require.NoError(t, json.Unmarshal(record.Details, &details))
	assert.Equal(t, true, details["team_usage"])
	assert.Equal(t, models.RoleManager, details["used_by_role"])
	assert.Equal(t, "render", details["service_id"])
}

func TestUseCreditsRequiresActiveSubscription(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.balances[1] = 40
	engine := newEngine(repo, &fakeMembers{}, &fakeSubs{active: map[uint]bool{}})

	_, err := engine.UseCredits(ctx, 1, 10, 1, "")
	require.ErrorIs(t, err, ErrNoActiveSubscription)
	assert.Equal(t, 40, repo.balances[1])
}

func TestUseCreditsInsufficientLeavesBalance(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.balances[1] = 5
	engine := newEngine(repo, &fakeMembers{}, &fakeSubs{active: map[uint]bool{1: true}})

	_, err := engine.UseCredits(ctx, 1, 10, 1, "")
	require.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Equal(t, 5, repo.balances[1])
	assert.Empty(t, repo.txns)
}
