package meeting

import (
	"context"
	"net/mail"
	"time"

	"github.com/trezcool/natya/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound = core.NewNotFoundError("meeting")
)

type (
	Repository interface {
		Create(ctx context.Context, m Meeting) (Meeting, error)
		Get(ctx context.Context, id int64) (Meeting, error)
		// List returns the meetings, most recent first. An empty status returns them all.
		List(ctx context.Context, status string) ([]Meeting, error)
		Update(ctx context.Context, m Meeting) (Meeting, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, mailSvc: mailSvc}
}

func (svc *Service) Book(ctx context.Context, nm NewMeeting) (Meeting, error) {
	now := NowFunc().UTC()
	return svc.repo.Create(ctx, Meeting{
		Name:          nm.Name,
		Email:         nm.Email,
		Phone:         nm.Phone,
		Purpose:       nm.Purpose,
		PreferredDate: nm.PreferredDate,
		PreferredTime: nm.PreferredTime,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// Decide sets the status of a meeting. Any status of the allowed set may follow any other.
func (svc *Service) Decide(ctx context.Context, id int64, d Decision) (Meeting, error) {
	m, err := svc.repo.Get(ctx, id)
	if err != nil {
		return Meeting{}, err
	}

	m.Status = d.Status
	if d.Notes != "" {
		m.AdminNotes = d.Notes
	}
	m.UpdatedAt = NowFunc().UTC()
	if m, err = svc.repo.Update(ctx, m); err != nil {
		return Meeting{}, err
	}

	if m.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: m.Name, Address: m.Email}},
			Subject:      "Your Meeting Request",
			TemplateName: "meeting_status",
			TemplateData: map[string]interface{}{
				"Name":   m.Name,
				"Date":   m.PreferredDate,
				"Time":   m.PreferredTime,
				"Status": m.Status,
				"Notes":  m.AdminNotes,
			},
		})
	}
	return m, nil
}

func (svc *Service) List(ctx context.Context, status string) ([]Meeting, error) {
	return svc.repo.List(ctx, status)
}
