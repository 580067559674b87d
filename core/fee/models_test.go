package fee

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestPenaltyPolicy_Penalty(t *testing.T) {
	policy := PenaltyPolicy{DueDay: 5, GraceDays: 2, PerDayLate: 50}
	due := policy.DueDate(5, 2025)
	assert.Equal(t, time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC), due)

	tests := []struct {
		name string
		at   time.Time
		want int64
	}{
		{name: "before due date", at: due.AddDate(0, 0, -3), want: 0},
		{name: "on due date", at: due, want: 0},
		{name: "D+2", at: due.AddDate(0, 0, 2), want: 0},
		{name: "D+2 and a bit", at: due.AddDate(0, 0, 2).Add(time.Minute), want: 50},
		{name: "D+3", at: due.AddDate(0, 0, 3), want: 50},
		{name: "D+12", at: due.AddDate(0, 0, 12), want: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Penalty(due, tt.at))
		})
	}
}

func TestPenaltyPolicy_apply(t *testing.T) {
	policy := PenaltyPolicy{DueDay: 5, GraceDays: 2, PerDayLate: 50}
	due := policy.DueDate(5, 2025)
	now := due.AddDate(0, 0, 12)

	open := Record{BaseAmount: 2000, TotalAmount: 2000, DueDate: due, Status: StatusPending}
	got := policy.apply(open, now)
	assert.EqualValues(t, 500, got.PenaltyAmount)
	assert.EqualValues(t, 2500, got.TotalAmount)

	// evidence submitted on time is not penalised while awaiting verification
	uploaded := open
	uploaded.Status = StatusUploaded
	uploaded.SubmittedAt = null.TimeFrom(due.AddDate(0, 0, 1))
	got = policy.apply(uploaded, now)
	assert.Zero(t, got.PenaltyAmount)
	assert.EqualValues(t, 2000, got.TotalAmount)

	// settled records are frozen
	settled := Record{BaseAmount: 2000, PenaltyAmount: 100, TotalAmount: 2100, DueDate: due, Status: StatusVerified}
	if diff := cmp.Diff(settled, policy.apply(settled, now)); diff != "" {
		t.Errorf("apply() mismatch (-want +got):\n%s", diff)
	}
}
