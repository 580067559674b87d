package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/natya/core/schedule"
	"github.com/trezcool/natya/core/user"
	"github.com/trezcool/natya/storage/database/sqlx"
	"github.com/trezcool/natya/tests"
)

func TestService_Create(t *testing.T) {
	conf := testutil.PrepareConfig(t)
	db := testutil.PrepareDB(t, conf)
	users := sqlxrepos.NewUserRepository(db)
	svc := schedule.NewService(sqlxrepos.NewScheduleRepository(db), users)
	ctx := context.Background()

	asha := testutil.CreateStudent(t, users, "Asha", "asha@test.test", "", user.EnrollmentActive, time.Now())
	ravi := testutil.CreateStudent(t, users, "Ravi", "ravi@test.test", "", user.EnrollmentActive, time.Now())
	admin := testutil.CreateUser(t, users, "Admin", "admin@test.test", "", user.RoleAdmin, true)

	_, err := svc.Create(ctx, schedule.NewEntry{UserID: asha.ID, DayOfWeek: "monday", TimeSlot: "17:00-18:00", ClassName: "Bharatanatyam I", Studio: "A"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		entry   schedule.NewEntry
		wantErr error
	}{
		{
			name:    "same student, same slot",
			entry:   schedule.NewEntry{UserID: asha.ID, DayOfWeek: "monday", TimeSlot: "17:00-18:00", ClassName: "Kathak", Studio: "B"},
			wantErr: schedule.ErrSlotTaken,
		},
		{
			name:    "studio hosting another class",
			entry:   schedule.NewEntry{UserID: ravi.ID, DayOfWeek: "monday", TimeSlot: "17:00-18:00", ClassName: "Kathak", Studio: "a"},
			wantErr: schedule.ErrStudioBusy,
		},
		{
			name:    "not a student",
			entry:   schedule.NewEntry{UserID: admin.ID, DayOfWeek: "friday", TimeSlot: "17:00-18:00", ClassName: "Kathak"},
			wantErr: user.ErrNotStudent,
		},
		{
			name:  "joining the same class",
			entry: schedule.NewEntry{UserID: ravi.ID, DayOfWeek: "monday", TimeSlot: "17:00-18:00", ClassName: "Bharatanatyam I", Studio: "A"},
		},
		{
			name:  "another slot",
			entry: schedule.NewEntry{UserID: asha.ID, DayOfWeek: "monday", TimeSlot: "09:00-10:00", ClassName: "Kathak", Studio: "A"},
		},
		{
			name:  "another day",
			entry: schedule.NewEntry{UserID: asha.ID, DayOfWeek: "sunday", TimeSlot: "17:00-18:00", ClassName: "Kathak", Studio: "A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.entry)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}

	entries, err := svc.ListForUser(ctx, asha.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "09:00-10:00", entries[0].TimeSlot)
	assert.Equal(t, "17:00-18:00", entries[1].TimeSlot)
	assert.Equal(t, "sunday", entries[2].DayOfWeek)

	require.NoError(t, svc.Delete(ctx, entries[0].ID))
	assert.Equal(t, schedule.ErrNotFound, errors.Cause(svc.Delete(ctx, entries[0].ID)))
}

func TestSortWeekly(t *testing.T) {
	entries := []schedule.Entry{
		{ID: 1, DayOfWeek: "sunday", TimeSlot: "10:00"},
		{ID: 2, DayOfWeek: "tuesday", TimeSlot: "18:00"},
		{ID: 3, DayOfWeek: "monday", TimeSlot: "18:00"},
		{ID: 4, DayOfWeek: "tuesday", TimeSlot: "07:00"},
	}
	schedule.SortWeekly(entries)

	var ids []int64
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{3, 4, 2, 1}, ids)
}
