package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobiaslindner/billhive/app/models"
)

type fakeRepo struct {
	plans   []models.Plan
	listErr error
}

func (f *fakeRepo) ListPlans(_ context.Context) ([]models.Plan, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.plans, nil
}

func (f *fakeRepo) GetPlan(_ context.Context, planID uint) (*models.Plan, error) {
	for _, p := range f.plans {
		if p.ID == planID {
			copied := p
			return &copied, nil
		}
	}
	return nil, ErrPlanNotFound
}

func TestListPlans(t *testing.T) {
	repo := &fakeRepo{plans: []models.Plan{
		{ID: 1, Name: "Starter", Level: 1},
		{ID: 2, Name: "Pro", Level: 2},
	}}
	svc := NewService(repo, false)

	plans, err := svc.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Starter", plans[0].Name)
}

func TestListPlansStoreFailureIsNotEmptyCatalog(t *testing.T) {
	repo := &fakeRepo{listErr: errors.New("connection refused")}
	svc := NewService(repo, false)

	plans, err := svc.ListPlans(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, plans)
}

func TestGetPlanNotFound(t *testing.T) {
	svc := NewService(&fakeRepo{}, false)

	_, err := svc.GetPlan(context.Background(), 99)
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestGetPlan(t *testing.T) {
	repo := &fakeRepo{plans: []models.Plan{{ID: 3, Name: "Business", MaxUsers: 5}}}
	svc := NewService(repo, false)

	plan, err := svc.GetPlan(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Business", plan.Name)
	assert.Equal(t, 5, plan.MaxSeats())
}
