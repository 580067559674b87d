package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/meeting"
)

type meetingRepository struct {
	repository
}

var _ meeting.Repository = (*meetingRepository)(nil) // interface compliance check

func NewMeetingRepository(exec core.DBExecutor) *meetingRepository {
	return &meetingRepository{repository{exec: exec}}
}

func (repo meetingRepository) Create(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	id, err := insert(ctx, repo.exec, `
		INSERT INTO meetings (name, email, phone, purpose, preferred_date, preferred_time, status, admin_notes, created_at, updated_at)
		VALUES (:name, :email, :phone, :purpose, :preferred_date, :preferred_time, :status, :admin_notes, :created_at, :updated_at)`,
		m)
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "inserting meeting")
	}
	m.ID = id
	return m, nil
}

func (repo meetingRepository) Get(ctx context.Context, id int64) (meeting.Meeting, error) {
	var m meeting.Meeting
	if err := repo.exec.GetContext(ctx, &m, repo.exec.Rebind("SELECT * FROM meetings WHERE id = ?"), id); err != nil {
		return meeting.Meeting{}, trapNoRowsErr(err, meeting.ErrNotFound, "getting meeting")
	}
	return m, nil
}

func (repo meetingRepository) List(ctx context.Context, status string) ([]meeting.Meeting, error) {
	q := "SELECT * FROM meetings"
	var args []interface{}
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC, id DESC"

	meetings := make([]meeting.Meeting, 0)
	if err := repo.exec.SelectContext(ctx, &meetings, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing meetings")
	}
	return meetings, nil
}

func (repo meetingRepository) Update(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	n, err := update(ctx, repo.exec,
		"UPDATE meetings SET status = :status, admin_notes = :admin_notes, updated_at = :updated_at WHERE id = :id",
		m)
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "updating meeting")
	}
	if n == 0 {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	return m, nil
}
