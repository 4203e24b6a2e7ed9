package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/storage/database"
)

// uniqueViolation is the postgres error code of a unique constraint violation.
const uniqueViolation = "23505"

type repository struct {
	db *sqlx.DB
}

// getExec returns the executor of the calling service's transaction, if any.
func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.db
}

// atomic runs fn in the caller's transaction, or in a new one.
func (repo repository) atomic(ctx context.Context, svcExec []core.DBExecutor, fn func(exec core.DBExecutor) error) error {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return fn(svcExec[0])
	}
	return database.NewTxRunner(repo.db).RunInTx(ctx, fn)
}

// trapNoRowsErr maps psql "no rows" err to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// selectIn expands slice args (IN clauses), rebinds and runs a SELECT.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return exec.SelectContext(ctx, dest, exec.Rebind(q), a...)
}

func execIn(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	return exec.ExecContext(ctx, exec.Rebind(q), a...)
}

// where collects AND-ed conditions written with ? placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) search(term string, cols ...string) {
	if term == "" {
		return
	}
	like := "%" + escapeLike(term) + "%"
	ors := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		ors[i] = col + " ILIKE ?"
		args[i] = like
	}
	w.add("("+strings.Join(ors, " OR ")+")", args...)
}

func (w where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// nullable helpers

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullTimePtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func nullTimeZero(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}
