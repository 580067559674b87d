package schedule

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/natya/core"
)

var Days = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func dayIndex(day string) int {
	for i, d := range Days {
		if d == day {
			return i
		}
	}
	return len(Days)
}

// SortWeekly sorts entries by day of the week, then time slot.
func SortWeekly(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := dayIndex(entries[i].DayOfWeek), dayIndex(entries[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		return entries[i].TimeSlot < entries[j].TimeSlot
	})
}

// Entry assigns a weekly class to a student.
type Entry struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	DayOfWeek  string    `json:"day_of_week" db:"day_of_week"`
	TimeSlot   string    `json:"time_slot" db:"time_slot"`
	ClassName  string    `json:"class_name" db:"class_name"`
	Instructor string    `json:"instructor" db:"instructor"`
	Studio     string    `json:"studio" db:"studio"`
	Notes      string    `json:"notes" db:"notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC
}

type NewEntry struct {
	UserID     int64  `json:"user_id" validate:"required,min=1"`
	DayOfWeek  string `json:"day_of_week" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	TimeSlot   string `json:"time_slot" validate:"required,max=50"`
	ClassName  string `json:"class_name" validate:"required,max=100"`
	Instructor string `json:"instructor" validate:"max=100"`
	Studio     string `json:"studio" validate:"max=100"`
	Notes      string `json:"notes" validate:"max=1000"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.DayOfWeek = core.CleanString(ne.DayOfWeek, true /* lower */)
	ne.TimeSlot = core.CleanString(ne.TimeSlot)
	ne.ClassName = core.CleanString(ne.ClassName)
	ne.Instructor = core.CleanString(ne.Instructor)
	ne.Studio = core.CleanString(ne.Studio)
	ne.Notes = core.CleanString(ne.Notes)
	return validate.Struct(ne)
}
