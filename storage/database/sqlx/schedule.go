package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/schedule"
)

type scheduleRepository struct {
	repository
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(exec core.DBExecutor) *scheduleRepository {
	return &scheduleRepository{repository{exec: exec}}
}

func (repo scheduleRepository) Create(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	id, err := insert(ctx, repo.exec, `
		INSERT INTO schedules (user_id, day_of_week, time_slot, class_name, instructor, studio, notes, created_at)
		VALUES (:user_id, :day_of_week, :time_slot, :class_name, :instructor, :studio, :notes, :created_at)`,
		e)
	if err != nil {
		if isUniqueViolation(err) {
			return schedule.Entry{}, schedule.ErrSlotTaken
		}
		return schedule.Entry{}, errors.Wrap(err, "inserting schedule entry")
	}
	e.ID = id
	return e, nil
}

func (repo scheduleRepository) ListBySlot(ctx context.Context, day, timeSlot string) ([]schedule.Entry, error) {
	entries := make([]schedule.Entry, 0)
	err := repo.exec.SelectContext(ctx, &entries,
		repo.exec.Rebind("SELECT * FROM schedules WHERE day_of_week = ? AND time_slot = ? ORDER BY id"), day, timeSlot)
	if err != nil {
		return nil, errors.Wrap(err, "listing schedule entries by slot")
	}
	return entries, nil
}

func (repo scheduleRepository) ListByUser(ctx context.Context, userID int64) ([]schedule.Entry, error) {
	entries := make([]schedule.Entry, 0)
	err := repo.exec.SelectContext(ctx, &entries,
		repo.exec.Rebind("SELECT * FROM schedules WHERE user_id = ? ORDER BY time_slot"), userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing schedule entries")
	}
	schedule.SortWeekly(entries)
	return entries, nil
}

func (repo scheduleRepository) Delete(ctx context.Context, id int64) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM schedules WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting schedule entry")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting schedule entry")
	} else if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (repo scheduleRepository) DeleteByUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := execIn(ctx, repo.getExec([]core.DBExecutor{exec}), "DELETE FROM schedules WHERE user_id IN (?)", userIDs)
	return errors.Wrap(err, "deleting schedule entries")
}
