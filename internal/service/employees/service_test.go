package employees

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/internal/models"
	"github.com/lawnpro/crew-ops/internal/service/progress"
	"github.com/lawnpro/crew-ops/internal/service/quests"
	"github.com/lawnpro/crew-ops/pkg/logger"
	"github.com/lawnpro/crew-ops/test/mocks"
)

type fakeXP struct {
	totals map[string]int
	err    error
}

func (f *fakeXP) GetUserXP(_ context.Context, email string) (*quests.XPSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	total := f.totals[email]
	return &quests.XPSummary{
		Record: models.UserXP{UserEmail: email, TotalXP: total},
		Level:  progress.CalculateLevel(total),
	}, nil
}

func setupTestService() (*Service, *mocks.MockEmployeeRepository, *fakeXP) {
	repo := &mocks.MockEmployeeRepository{
		Employees: []models.Employee{
			{ID: 1, Email: "olive@x.com", Name: "Olive Owner", Role: models.RoleOwner, Active: true},
			{ID: 2, Email: "sam@x.com", Name: "Sam Rivera", Role: models.RoleCrew, Active: true},
			{ID: 3, Email: "samir@x.com", Name: "Samir Patel", Role: models.RoleCrew, Active: true},
			{ID: 4, Email: "gone@x.com", Name: "Gone Away", Role: models.RoleCrew, Active: false},
		},
	}
	xp := &fakeXP{totals: map[string]int{"sam@x.com": 600}}
	return NewServiceWithInterfaces(repo, xp, logger.Nop()), repo, xp
}

func TestSearch(t *testing.T) {
	svc, _, _ := setupTestService()
	ctx := context.Background()

	tests := []struct {
		name      string
		query     string
		wantFirst string
		wantCount int
	}{
		{name: "empty query lists active", query: "  ", wantCount: 3},
		{name: "prefix matches both sams", query: "sam", wantCount: 2},
		{name: "subsequence", query: "olv", wantFirst: "olive@x.com", wantCount: 1},
		{name: "email", query: "olive@", wantFirst: "olive@x.com", wantCount: 1},
		{name: "case-insensitive", query: "PATEL", wantFirst: "samir@x.com", wantCount: 1},
		{name: "inactive hidden", query: "gone", wantCount: 0},
		{name: "no match", query: "zzz", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := svc.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Len(t, results, tt.wantCount)
			if tt.wantFirst != "" && len(results) > 0 {
				assert.Equal(t, tt.wantFirst, results[0].Email)
			}
		})
	}
}

func TestGetAndSelect(t *testing.T) {
	svc, _, xp := setupTestService()
	ctx := context.Background()

	sel, err := svc.Select(ctx, "sam@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Sam Rivera", sel.Employee.Name)
	assert.Equal(t, "Crew", sel.XP.Level.Name)

	_, err = svc.Get(ctx, "gone@x.com")
	assert.ErrorIs(t, err, ErrEmployeeNotFound)

	_, err = svc.Select(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, ErrEmployeeNotFound)

	xp.err = errors.New("db down")
	_, err = svc.Select(ctx, "sam@x.com")
	assert.Error(t, err)
}

func TestSyncFromConfig(t *testing.T) {
	svc, repo, _ := setupTestService()

	active, err := svc.SyncFromConfig(context.Background(), []config.EmployeeConfig{
		{Email: "Olive@X.com", Name: "Olive O.", Role: "Owner"},
		{Email: "new@x.com", Role: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	byEmail := make(map[string]models.Employee)
	for _, e := range repo.Employees {
		byEmail[e.Email] = e
	}

	olive := byEmail["olive@x.com"]
	assert.Equal(t, "Olive O.", olive.Name)
	assert.True(t, olive.IsOwner())
	assert.Equal(t, models.RoleCrew, byEmail["new@x.com"].Role)
	assert.Equal(t, "new@x.com", byEmail["new@x.com"].Name, "name falls back to email")
	assert.False(t, byEmail["sam@x.com"].Active, "unlisted employees are deactivated")
	assert.False(t, byEmail["samir@x.com"].Active)
}

func TestSyncFromConfig_RepositoryError(t *testing.T) {
	svc, repo, _ := setupTestService()
	repo.Err = mocks.ErrMock

	_, err := svc.SyncFromConfig(context.Background(), []config.EmployeeConfig{{Email: "a@x.com", Role: "crew"}})
	assert.Error(t, err)
}
