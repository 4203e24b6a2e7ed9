package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/payment"
)

const paymentSelect = `
SELECT id, order_id, student_id, course_id, amount, status, snap_token, redirect_url, created_at, paid_at FROM payments`

var paymentOrderings = map[string]string{
	"created_at": "created_at",
	"paid_at":    "paid_at",
	"amount":     "amount",
}

type paymentRow struct {
	ID          string      `db:"id"`
	OrderID     string      `db:"order_id"`
	StudentID   string      `db:"student_id"`
	CourseID    string      `db:"course_id"`
	Amount      int64       `db:"amount"`
	Status      string      `db:"status"`
	SnapToken   null.String `db:"snap_token"`
	RedirectURL null.String `db:"redirect_url"`
	CreatedAt   time.Time   `db:"created_at"`
	PaidAt      null.Time   `db:"paid_at"`
}

func (row paymentRow) toPayment() payment.Payment {
	p := payment.Payment{
		ID:          row.ID,
		OrderID:     row.OrderID,
		StudentID:   row.StudentID,
		CourseID:    row.CourseID,
		Amount:      row.Amount,
		Status:      row.Status,
		SnapToken:   row.SnapToken.String,
		RedirectURL: row.RedirectURL.String,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.PaidAt.Valid {
		t := row.PaidAt.Time.UTC()
		p.PaidAt = &t
	}
	return p
}

type paymentRepository struct {
	repository
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{repository{db: db}}
}

func (repo paymentRepository) CreatePayment(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO payments (id, order_id, student_id, course_id, amount, status, snap_token, redirect_url, created_at, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.OrderID, p.StudentID, p.CourseID, p.Amount, p.Status, nullString(p.SnapToken), nullString(p.RedirectURL),
		p.CreatedAt.UTC(), nullTimePtr(p.PaidAt),
	)
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE payments SET status = ?, snap_token = ?, redirect_url = ?, paid_at = ? WHERE id = ?`),
		p.Status, nullString(p.SnapToken), nullString(p.RedirectURL), nullTimePtr(p.PaidAt), p.ID,
	)
	if err = checkAffected(res, err, payment.ErrNotFound, "updating payment"); err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

// GetPaymentByOrder locks the row when called inside a transaction.
func (repo paymentRepository) GetPaymentByOrder(ctx context.Context, orderID string, exec ...core.DBExecutor) (payment.Payment, error) {
	query := paymentSelect + " WHERE order_id = ?"
	if len(exec) > 0 && exec[0] != nil {
		query += " FOR UPDATE"
	}
	ex := repo.getExec(exec)
	var row paymentRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(query), orderID); err != nil {
		return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "getting payment")
	}
	return row.toPayment(), nil
}

func (repo paymentRepository) QueryPayments(ctx context.Context, filter *payment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]payment.Payment, error) {
	var w where
	if filter != nil {
		if filter.StudentID != "" {
			w.add("student_id = ?", filter.StudentID)
		}
		if filter.CourseID != "" {
			w.add("course_id = ?", filter.CourseID)
		}
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
	}
	query := paymentSelect + w.String() + " ORDER BY " + core.OrderBy(ordering, paymentOrderings, "created_at DESC")

	var rows []paymentRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	out := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toPayment())
	}
	return out, nil
}
