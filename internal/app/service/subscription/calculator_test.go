package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/tollgate/internal/models"
	"github.com/fatflowers/tollgate/pkg/types"
)

func TestComputeWindow(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		interval types.PlanInterval
		wantEnd  time.Time
	}{
		{name: "monthly", interval: types.PlanIntervalMonthly, wantEnd: time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)},
		{name: "quarterly", interval: types.PlanIntervalQuarterly, wantEnd: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)},
		{name: "half yearly", interval: types.PlanIntervalHalfYearly, wantEnd: time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)},
		{name: "yearly", interval: types.PlanIntervalYearly, wantEnd: time.Date(2027, 1, 15, 10, 0, 0, 0, time.UTC)},
		{name: "lifetime", interval: types.PlanIntervalLifetime, wantEnd: time.Date(2126, 1, 15, 10, 0, 0, 0, time.UTC)},
		{name: "one time", interval: types.PlanIntervalOneTime, wantEnd: time.Date(2126, 1, 15, 10, 0, 0, 0, time.UTC)},
		{name: "unknown", interval: "weekly", wantEnd: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)},
		{name: "empty", interval: "", wantEnd: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeWindow(tt.interval, start)
			require.Equal(t, start, w.Start)
			require.Equal(t, tt.wantEnd, w.End)
		})
	}
}

func TestComputeWindow_Ordering(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	order := []types.PlanInterval{
		types.PlanIntervalMonthly,
		types.PlanIntervalQuarterly,
		types.PlanIntervalHalfYearly,
		types.PlanIntervalYearly,
		types.PlanIntervalLifetime,
	}
	prev := start
	for _, interval := range order {
		end := ComputeWindow(interval, start).End
		require.True(t, end.After(prev), "%s should end after %s", interval, prev)
		prev = end
	}
}

func TestComputeWindow_MonthEndOverflow(t *testing.T) {
	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), ComputeWindow(types.PlanIntervalMonthly, start).End)
}

func TestWindowForPayment(t *testing.T) {
	paidAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &models.Payment{CreatedAt: paidAt}

	w := WindowForPayment(&models.SubscriptionPlan{Interval: types.PlanIntervalMonthly}, p)
	require.Equal(t, paidAt, w.Start)
	require.Equal(t, paidAt.AddDate(0, 1, 0), w.End)

	w = WindowForPayment(nil, p)
	require.Equal(t, paidAt.AddDate(0, 0, 30), w.End)
}

func TestExtendWindow(t *testing.T) {
	paidAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	running := paidAt.AddDate(0, 0, 10)
	w := ExtendWindow(&running, types.PlanIntervalMonthly, paidAt)
	require.Equal(t, running, w.Start)
	require.Equal(t, running.AddDate(0, 1, 0), w.End)

	lapsed := paidAt.AddDate(0, 0, -10)
	w = ExtendWindow(&lapsed, types.PlanIntervalMonthly, paidAt)
	require.Equal(t, paidAt, w.Start)

	w = ExtendWindow(nil, types.PlanIntervalYearly, paidAt)
	require.Equal(t, paidAt.AddDate(1, 0, 0), w.End)
}

func TestWindow_Live(t *testing.T) {
	now := time.Now()
	require.True(t, Window{End: now.Add(time.Second)}.Live(now))
	require.False(t, Window{End: now}.Live(now))
}
