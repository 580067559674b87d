package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/branch"
)

type branchRepository struct {
	repository
}

var _ branch.Repository = (*branchRepository)(nil) // interface compliance check

func NewBranchRepository(exec core.DBExecutor) *branchRepository {
	return &branchRepository{repository{exec: exec}}
}

func (repo branchRepository) Create(ctx context.Context, b branch.Branch) (branch.Branch, error) {
	id, err := insert(ctx, repo.exec, `
		INSERT INTO branches (code, name, address, phone, created_at) VALUES (:code, :name, :address, :phone, :created_at)`,
		b)
	if err != nil {
		if isUniqueViolation(err) {
			return branch.Branch{}, branch.ErrCodeExists
		}
		return branch.Branch{}, errors.Wrap(err, "inserting branch")
	}
	b.ID = id
	return b, nil
}

func (repo branchRepository) GetByID(ctx context.Context, id int64, exec ...core.DBExecutor) (branch.Branch, error) {
	e := repo.getExec(exec)
	var b branch.Branch
	if err := e.GetContext(ctx, &b, e.Rebind("SELECT * FROM branches WHERE id = ?"), id); err != nil {
		return branch.Branch{}, trapNoRowsErr(err, branch.ErrNotFound, "getting branch")
	}
	return b, nil
}

func (repo branchRepository) GetByCode(ctx context.Context, code string) (branch.Branch, error) {
	var b branch.Branch
	if err := repo.exec.GetContext(ctx, &b, repo.exec.Rebind("SELECT * FROM branches WHERE code = ?"), code); err != nil {
		return branch.Branch{}, trapNoRowsErr(err, branch.ErrNotFound, "getting branch by code")
	}
	return b, nil
}

func (repo branchRepository) List(ctx context.Context) ([]branch.Branch, error) {
	branches := make([]branch.Branch, 0)
	if err := repo.exec.SelectContext(ctx, &branches, "SELECT * FROM branches ORDER BY code"); err != nil {
		return nil, errors.Wrap(err, "listing branches")
	}
	return branches, nil
}
