package accrual

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

type RepositoryMock struct {
	mock.Mock
}

func (m *RepositoryMock) ListAccrualCandidates(ctx context.Context) ([]models.AccrualCandidate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AccrualCandidate), args.Error(1)
}

func (m *RepositoryMock) AccrueMilestone(ctx context.Context, packageID, milestone string, percent, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, packageID, milestone, percent, amount)
	return args.Bool(0), args.Error(1)
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func decEq(v string) any {
	want := decimal.RequireFromString(v)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func tags(ms []models.Milestone) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Tag)
	}
	return out
}

func TestDueMilestones(t *testing.T) {
	tests := []struct {
		name    string
		day     int
		accrued []string
		want    []string
	}{
		{name: "too young", day: 89, want: []string{}},
		{name: "exactly day 90", day: 90, want: []string{"DAY_90"}},
		{name: "day 95", day: 95, want: []string{"DAY_90"}},
		{name: "day 185 nothing accrued", day: 185, want: []string{"DAY_90", "DAY_180"}},
		{name: "day 185 first accrued", day: 185, accrued: []string{"DAY_90"}, want: []string{"DAY_180"}},
		{name: "day 400 all accrued", day: 400, accrued: []string{"DAY_90", "DAY_180", "DAY_270", "DAY_360"}, want: []string{}},
		{name: "day 365", day: 365, accrued: []string{"DAY_90"}, want: []string{"DAY_180", "DAY_270", "DAY_360"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.AccrualCandidate{PackageID: "pkg", StartDate: start, AccruedMilestones: tt.accrued}
			got := DueMilestones(c, start.AddDate(0, 0, tt.day))
			assert.Equal(t, tt.want, tags(got))
		})
	}
}

func TestMilestoneAmount(t *testing.T) {
	price := decimal.RequireFromString("99.99")
	assert.Equal(t, "15.00", MilestoneAmount(price, decimal.NewFromInt(15)).StringFixed(2))
	assert.Equal(t, "50.00", MilestoneAmount(decimal.NewFromInt(100), decimal.NewFromInt(50)).StringFixed(2))
}

func TestEngine_RunOnce(t *testing.T) {
	price := decimal.NewFromInt(100)

	t.Run("day 95 accrues DAY_90 once", func(t *testing.T) {
		repo := new(RepositoryMock)
		repo.On("ListAccrualCandidates", mock.Anything).Return([]models.AccrualCandidate{
			{PackageID: "pkg-1", StartDate: start, PlanPrice: price},
		}, nil).Once()
		repo.On("AccrueMilestone", mock.Anything, "pkg-1", "DAY_90", decEq("15"), decEq("15")).
			Return(true, nil).Once()

		res, err := NewEngine(repo, noopLogger()).RunOnce(context.Background(), start.AddDate(0, 0, 95))
		require.NoError(t, err)
		assert.Equal(t, Result{Checked: 1, Accrued: 1}, res)
		repo.AssertExpectations(t)
	})

	t.Run("already accrued by another worker", func(t *testing.T) {
		repo := new(RepositoryMock)
		repo.On("ListAccrualCandidates", mock.Anything).Return([]models.AccrualCandidate{
			{PackageID: "pkg-1", StartDate: start, PlanPrice: price},
		}, nil).Once()
		repo.On("AccrueMilestone", mock.Anything, "pkg-1", "DAY_90", mock.Anything, mock.Anything).
			Return(false, nil).Once()

		res, err := NewEngine(repo, noopLogger()).RunOnce(context.Background(), start.AddDate(0, 0, 95))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Accrued)
		repo.AssertExpectations(t)
	})

	t.Run("failure on one package does not stop others", func(t *testing.T) {
		repo := new(RepositoryMock)
		repo.On("ListAccrualCandidates", mock.Anything).Return([]models.AccrualCandidate{
			{PackageID: "pkg-1", StartDate: start, PlanPrice: price},
			{PackageID: "pkg-2", StartDate: start, PlanPrice: price},
		}, nil).Once()
		repo.On("AccrueMilestone", mock.Anything, "pkg-1", "DAY_90", mock.Anything, mock.Anything).
			Return(false, errors.New("deadlock detected")).Once()
		repo.On("AccrueMilestone", mock.Anything, "pkg-1", "DAY_180", mock.Anything, mock.Anything).
			Return(true, nil).Once()
		repo.On("AccrueMilestone", mock.Anything, "pkg-2", "DAY_90", mock.Anything, mock.Anything).
			Return(true, nil).Once()
		repo.On("AccrueMilestone", mock.Anything, "pkg-2", "DAY_180", mock.Anything, mock.Anything).
			Return(true, nil).Once()

		res, err := NewEngine(repo, noopLogger()).RunOnce(context.Background(), start.AddDate(0, 0, 185))
		require.NoError(t, err)
		assert.Equal(t, Result{Checked: 2, Accrued: 3, Failed: 1}, res)
		repo.AssertExpectations(t)
	})

	t.Run("candidates query fails", func(t *testing.T) {
		repo := new(RepositoryMock)
		repo.On("ListAccrualCandidates", mock.Anything).Return(nil, errors.New("connection refused")).Once()

		_, err := NewEngine(repo, noopLogger()).RunOnce(context.Background(), start)
		assert.Error(t, err)
	})
}
