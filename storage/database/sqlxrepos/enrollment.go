package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/enrollment"
)

const enrollmentSelect = `
SELECT id, full_name, email, phone, message, course_ids, status, admin_note, student_id, created_at, processed_at
FROM enrollment_requests`

var enrollmentOrderings = map[string]string{
	"created_at":   "created_at",
	"processed_at": "processed_at",
	"full_name":    "full_name",
}

type enrollmentRow struct {
	ID          string         `db:"id"`
	FullName    string         `db:"full_name"`
	Email       string         `db:"email"`
	Phone       null.String    `db:"phone"`
	Message     null.String    `db:"message"`
	CourseIDs   pq.StringArray `db:"course_ids"`
	Status      string         `db:"status"`
	AdminNote   null.String    `db:"admin_note"`
	StudentID   null.String    `db:"student_id"`
	CreatedAt   time.Time      `db:"created_at"`
	ProcessedAt null.Time      `db:"processed_at"`
}

func (row enrollmentRow) toRequest() enrollment.Request {
	r := enrollment.Request{
		ID:        row.ID,
		FullName:  row.FullName,
		Email:     row.Email,
		Phone:     row.Phone.String,
		Message:   row.Message.String,
		CourseIDs: []string(row.CourseIDs),
		Status:    row.Status,
		AdminNote: row.AdminNote.String,
		StudentID: row.StudentID.String,
		CreatedAt: row.CreatedAt.UTC(),
	}
	if row.ProcessedAt.Valid {
		t := row.ProcessedAt.Time.UTC()
		r.ProcessedAt = &t
	}
	return r
}

// stringArray never binds NULL, the array columns are NOT NULL.
func stringArray(s []string) pq.StringArray {
	return append(pq.StringArray{}, s...)
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{repository{db: db}}
}

func (repo enrollmentRepository) CreateRequest(ctx context.Context, r enrollment.Request, exec ...core.DBExecutor) (enrollment.Request, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO enrollment_requests (id, full_name, email, phone, message, course_ids, status, admin_note, student_id, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.FullName, r.Email, nullString(r.Phone), nullString(r.Message), stringArray(r.CourseIDs), r.Status,
		nullString(r.AdminNote), nullString(r.StudentID), r.CreatedAt.UTC(), nullTimePtr(r.ProcessedAt),
	)
	if err != nil {
		return enrollment.Request{}, errors.Wrap(err, "inserting enrollment request")
	}
	return repo.GetRequest(ctx, r.ID, exec...)
}

func (repo enrollmentRepository) UpdateRequest(ctx context.Context, r enrollment.Request, from string, exec ...core.DBExecutor) (enrollment.Request, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE enrollment_requests SET status = ?, admin_note = ?, student_id = ?, processed_at = ? WHERE id = ? AND status = ?`),
		r.Status, nullString(r.AdminNote), nullString(r.StudentID), nullTimePtr(r.ProcessedAt), r.ID, from,
	)
	if err = checkAffected(res, err, enrollment.ErrAlreadyProcessed, "updating enrollment request"); err != nil {
		return enrollment.Request{}, err
	}
	return repo.GetRequest(ctx, r.ID, exec...)
}

func (repo enrollmentRepository) GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Request, error) {
	ex := repo.getExec(exec)
	var row enrollmentRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(enrollmentSelect+" WHERE id = ?"), id); err != nil {
		return enrollment.Request{}, trapNoRowsErr(err, enrollment.ErrNotFound, "getting enrollment request")
	}
	return row.toRequest(), nil
}

func (repo enrollmentRepository) QueryRequests(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]enrollment.Request, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "full_name", "email", "phone")
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
	}
	query := enrollmentSelect + w.String() + " ORDER BY " + core.OrderBy(ordering, enrollmentOrderings, "created_at DESC")

	var rows []enrollmentRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollment requests")
	}
	out := make([]enrollment.Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRequest())
	}
	return out, nil
}
