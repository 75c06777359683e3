package team

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobiaslindner/billhive/app/models"
)

type fakeRepo struct {
	members  map[uint]*models.TeamMember
	owners   map[uint]*models.User
	ownerErr error
	nextID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{members: map[uint]*models.TeamMember{}, owners: map[uint]*models.User{}, nextID: 1}
}

func (f *fakeRepo) add(m models.TeamMember) *models.TeamMember {
	m.ID = f.nextID
	f.nextID++
	f.members[m.ID] = &m
	return &m
}

func (f *fakeRepo) ListActiveMembers(_ context.Context, ownerID uint) ([]models.TeamMember, error) {
	var out []models.TeamMember
	for _, m := range f.members {
		if m.OwnerID == ownerID && m.Status == models.MemberStatusActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountDistinctActiveEmails(_ context.Context, ownerID uint) (int, error) {
	seen := map[string]struct{}{}
	for _, m := range f.members {
		if m.OwnerID == ownerID && m.Status == models.MemberStatusActive {
			seen[models.NormalizeEmail(m.Email)] = struct{}{}
		}
	}
	return len(seen), nil
}

func (f *fakeRepo) FindActiveByOwnerEmail(_ context.Context, ownerID uint, email string) (*models.TeamMember, error) {
	for _, m := range f.members {
		if m.OwnerID == ownerID && models.NormalizeEmail(m.Email) == models.NormalizeEmail(email) && m.Status == models.MemberStatusActive {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindActiveByUser(_ context.Context, userID uint) (*models.TeamMember, error) {
	for _, m := range f.members {
		if m.UserID == userID && m.Status == models.MemberStatusActive {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindByID(_ context.Context, ownerID, memberID uint) (*models.TeamMember, error) {
	m, ok := f.members[memberID]
	if !ok || m.OwnerID != ownerID {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (f *fakeRepo) Create(_ context.Context, member *models.TeamMember) error {
	created := f.add(*member)
	member.ID = created.ID
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, memberID uint, status string) error {
	if m, ok := f.members[memberID]; ok {
		m.Status = status
	}
	return nil
}

func (f *fakeRepo) UpdateRole(_ context.Context, memberID uint, role string) error {
	if m, ok := f.members[memberID]; ok {
		m.Role = role
	}
	return nil
}

func (f *fakeRepo) GetOwner(_ context.Context, ownerID uint) (*models.User, error) {
	if f.ownerErr != nil {
		return nil, f.ownerErr
	}
	return f.owners[ownerID], nil
}

type fakePlanSource struct {
	plans map[uint]*models.Plan
}

func (f *fakePlanSource) ActivePlan(_ context.Context, userID uint) (*models.Plan, error) {
	return f.plans[userID], nil
}

func TestListMembersSynthesizesOwnerFirst(t *testing.T) {
	repo := newFakeRepo()
	repo.owners[1] = &models.User{ID: 1, Email: "Owner@Example.com"}
	repo.add(models.TeamMember{OwnerID: 1, UserID: 2, Email: "member@example.com", Role: models.RoleEditor, Status: models.MemberStatusActive, JoinedAt: time.Now()})
	svc := NewService(repo, &fakePlanSource{plans: map[uint]*models.Plan{}})

	members, err := svc.ListMembers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, uint(1), members[0].UserID)
	assert.Equal(t, models.RoleAdmin, members[0].Role)
	assert.Equal(t, "owner@example.com", members[0].Email)
}

func TestListMembersSurvivesOwnerLookupFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.ownerErr = errors.New("connection refused")
	repo.add(models.TeamMember{OwnerID: 1, UserID: 2, Email: "member@example.com", Role: models.RoleEditor, Status: models.MemberStatusActive, JoinedAt: time.Now()})
	svc := NewService(repo, &fakePlanSource{plans: map[uint]*models.Plan{}})

	members, err := svc.ListMembers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, uint(1), members[0].UserID)
	assert.Empty(t, members[0].Email)
	assert.Equal(t, "member@example.com", members[1].Email)
}

func TestListMembersDeduplicatesByEmail(t *testing.T) {
	repo := newFakeRepo()
	repo.add(models.TeamMember{OwnerID: 1, UserID: 2, Email: "dup@example.com", Role: models.RoleEditor, Status: models.MemberStatusActive})
	repo.add(models.TeamMember{OwnerID: 1, UserID: 3, Email: "DUP@example.com", Role: models.RoleViewer, Status: models.MemberStatusActive})
	svc := NewService(repo, &fakePlanSource{plans: map[uint]*models.Plan{}})

	members, err := svc.ListMembers(context.Background(), 1)
	require.NoError(t, err)
	// owner entry + one of the duplicates
	assert.Len(t, members, 2)
}

func TestCountSeatsUsesPlanCap(t *testing.T) {
	repo := newFakeRepo()
	repo.add(models.TeamMember{OwnerID: 1, UserID: 2, Email: "a@example.com", Status: models.MemberStatusActive})
	repo.add(models.TeamMember{OwnerID: 1, UserID: 3, Email: "b@example.com", Status: models.MemberStatusActive})
	plans := &fakePlanSource{plans: map[uint]*models.Plan{1: {ID: 9, MaxUsers: 5}}}
	svc := NewService(repo, plans)

	current, max, err := svc.CountSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, current)
	assert.Equal(t, 5, max)
}

func TestCountSeatsWithoutPlanDefaultsToOne(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakePlanSource{plans: map[uint]*models.Plan{}})

	current, max, err := svc.CountSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, max)
}

func TestRemoveMemberKeepsRow(t *testing.T) {
	repo := newFakeRepo()
	m := repo.add(models.TeamMember{OwnerID: 1, UserID: 2, Email: "a@example.com", Status: models.MemberStatusActive})
	svc := NewService(repo, &fakePlanSource{plans: map[uint]*models.Plan{}})

	require.NoError(t, svc.RemoveMember(context.Background(), 1, m.ID))
	assert.Equal(t, models.MemberStatusRemoved, repo.members[m.ID].Status)

	// Removing again is a no-op, not an error.
	require.NoError(t, svc.RemoveMember(context.Background(), 1, m.ID))
}

func TestRemoveMemberWrongOwner(t *testing.T) {
	repo := newFakeRepo()
	m := repo.add(models.TeamMember{OwnerID: 1, UserID: 2, Email: "a@example.com", Status: models.MemberStatusActive})
	svc := NewService(repo, &fakePlanSource{plans: map[uint]*models.Plan{}})

	err := svc.RemoveMember(context.Background(), 99, m.ID)
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestChangeRoleValidation(t *testing.T) {
	repo := newFakeRepo()
	m := repo.add(models.TeamMember{OwnerID: 1, UserID: 2, Email: "a@example.com", Role: models.RoleViewer, Status: models.MemberStatusActive})
	svc := NewService(repo, &fakePlanSource{plans: map[uint]*models.Plan{}})

	err := svc.ChangeRole(context.Background(), 1, m.ID, "superuser")
	require.ErrorIs(t, err, ErrInvalidRole)
	assert.Equal(t, models.RoleViewer, repo.members[m.ID].Role)

	require.NoError(t, svc.ChangeRole(context.Background(), 1, m.ID, models.RoleManager))
	assert.Equal(t, models.RoleManager, repo.members[m.ID].Role)
}

func TestIsActiveMember(t *testing.T) {
	repo := newFakeRepo()
	repo.add(models.TeamMember{OwnerID: 1, UserID: 2, Email: "a@example.com", Role: models.RoleEditor, Status: models.MemberStatusActive})
	removed := repo.add(models.TeamMember{OwnerID: 1, UserID: 3, Email: "b@example.com", Role: models.RoleViewer, Status: models.MemberStatusActive})
	repo.members[removed.ID].Status = models.MemberStatusRemoved
	svc := NewService(repo, &fakePlanSource{plans: map[uint]*models.Plan{}})

	ok, role, err := svc.IsActiveMember(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.RoleEditor, role)

	ok, _, err = svc.IsActiveMember(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
