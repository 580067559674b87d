package branch

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("branch")
	ErrCodeExists = core.NewConflictError("a branch with this code already exists", "code")
)

type (
	Repository interface {
		Create(ctx context.Context, b Branch) (Branch, error)
		GetByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Branch, error)
		GetByCode(ctx context.Context, code string) (Branch, error)
		List(ctx context.Context) ([]Branch, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nb NewBranch) (Branch, error) {
	if _, err := svc.repo.GetByCode(ctx, nb.Code); err == nil {
		return Branch{}, ErrCodeExists
	} else if errors.Cause(err) != ErrNotFound {
		return Branch{}, errors.Wrap(err, "finding branch by code")
	}

	return svc.repo.Create(ctx, Branch{
		Code:      nb.Code,
		Name:      nb.Name,
		Address:   nb.Address,
		Phone:     nb.Phone,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) GetByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Branch, error) {
	return svc.repo.GetByID(ctx, id, exec...)
}

func (svc *Service) List(ctx context.Context) ([]Branch, error) {
	return svc.repo.List(ctx)
}
