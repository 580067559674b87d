package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/user"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("schedule entry")
	ErrSlotTaken  = core.NewConflictError("the student already has a class at this time", "time_slot")
	ErrStudioBusy = core.NewConflictError("the studio hosts another class at this time", "studio")
)

type (
	Repository interface {
		// Create returns ErrSlotTaken when the student already has an entry at this day and time slot.
		Create(ctx context.Context, e Entry) (Entry, error)
		// ListBySlot returns the entries of every student at a day and time slot.
		ListBySlot(ctx context.Context, day, timeSlot string) ([]Entry, error)
		// ListByUser returns the entries of a student in weekly order.
		ListByUser(ctx context.Context, userID int64) ([]Entry, error)
		Delete(ctx context.Context, id int64) error
		DeleteByUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) error
	}

	// UserGetter is satisfied by user.Repository.
	UserGetter interface {
		GetUser(ctx context.Context, id int64, exec ...core.DBExecutor) (user.User, error)
	}

	Service struct {
		repo  Repository
		users UserGetter
	}
)

func NewService(repo Repository, users UserGetter) *Service {
	return &Service{repo: repo, users: users}
}

// Create assigns a class to a student. A student cannot have two classes at the same day and time slot,
// and a studio hosts a single class name at a time.
func (svc *Service) Create(ctx context.Context, ne NewEntry) (Entry, error) {
	usr, err := svc.users.GetUser(ctx, ne.UserID)
	if err != nil {
		return Entry{}, err
	}
	if !usr.IsStudent() {
		return Entry{}, user.ErrNotStudent
	}

	entries, err := svc.repo.ListBySlot(ctx, ne.DayOfWeek, ne.TimeSlot)
	if err != nil {
		return Entry{}, errors.Wrap(err, "listing entries")
	}
	for _, e := range entries {
		if e.UserID == ne.UserID {
			return Entry{}, ErrSlotTaken
		}
		if ne.Studio != "" && strings.EqualFold(e.Studio, ne.Studio) && !strings.EqualFold(e.ClassName, ne.ClassName) {
			return Entry{}, ErrStudioBusy
		}
	}

	return svc.repo.Create(ctx, Entry{
		UserID:     ne.UserID,
		DayOfWeek:  ne.DayOfWeek,
		TimeSlot:   ne.TimeSlot,
		ClassName:  ne.ClassName,
		Instructor: ne.Instructor,
		Studio:     ne.Studio,
		Notes:      ne.Notes,
		CreatedAt:  time.Now().UTC(),
	})
}

func (svc *Service) ListForUser(ctx context.Context, userID int64) ([]Entry, error) {
	return svc.repo.ListByUser(ctx, userID)
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.Delete(ctx, id)
}

// DeleteForUsers deletes the schedule entries of the users.
func (svc *Service) DeleteForUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) (func(), error) {
	return nil, svc.repo.DeleteByUsers(ctx, exec, userIDs...)
}
