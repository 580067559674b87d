// Package sqlxrepos implements the core repositories with sqlx. Queries are written with `?` bind vars
// and rebound for the driver in use (sqlite3 or postgres).
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// insert runs a named INSERT and returns the generated ID.
func insert(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (int64, error) {
	q, args, err := exec.BindNamed(query+" RETURNING id", arg)
	if err != nil {
		return 0, err
	}
	var id int64
	if err = exec.GetContext(ctx, &id, q, args...); err != nil {
		return 0, err
	}
	return id, nil
}

// update runs a named UPDATE and returns the number of affected rows.
func update(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (int64, error) {
	q, args, err := exec.BindNamed(query, arg)
	if err != nil {
		return 0, err
	}
	res, err := exec.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execIn expands the `IN (?)` clause of query with the slice args and runs it.
func execIn(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int64, error) {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	res, err := exec.ExecContext(ctx, exec.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// selectIn is execIn for queries returning rows.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return exec.SelectContext(ctx, dest, exec.Rebind(q), args...)
}

// trapNoRowsErr maps sql.ErrNoRows to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// uniqueConstraintOn reports whether err violates a unique constraint involving column.
func uniqueConstraintOn(err error, column string) bool {
	if !isUniqueViolation(err) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.Contains(pqErr.Constraint, column)
	}
	return strings.Contains(err.Error(), "."+column)
}

// orderBy returns the ORDER BY clause of the orderings whose field is allowed, or def.
func orderBy(orderings []core.DBOrdering, allowed map[string]string, def string) string {
	list := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		ord.Field = col
		list = append(list, ord.String())
	}
	if len(list) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(list, ", ")
}
