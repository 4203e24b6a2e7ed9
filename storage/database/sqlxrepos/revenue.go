package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/revenue"
)

const recordSelect = `
SELECT r.id, r.teacher_id, COALESCE(p.full_name, '') AS teacher_name, r.course_id, r.paid_work_id, r.payment_id, r.source,
       r.gross_amount, r.teacher_percent, r.teacher_amount, r.agency_amount, r.note, r.created_at
FROM revenue_records r
LEFT JOIN profiles p ON p.user_id = r.teacher_id`

const paidWorkSelect = `
SELECT pw.id, pw.teacher_id, COALESCE(p.full_name, '') AS teacher_name, pw.title, pw.description, pw.amount, pw.status,
       pw.created_at, pw.updated_at
FROM paid_works pw
LEFT JOIN profiles p ON p.user_id = pw.teacher_id`

const withdrawalSelect = `
SELECT w.id, w.teacher_id, COALESCE(p.full_name, '') AS teacher_name, w.amount, w.method, w.account_details, w.status,
       w.admin_note, w.created_at, w.processed_at
FROM withdrawal_requests w
LEFT JOIN profiles p ON p.user_id = w.teacher_id`

var (
	recordOrderings = map[string]string{
		"created_at":     "r.created_at",
		"gross_amount":   "r.gross_amount",
		"teacher_amount": "r.teacher_amount",
	}
	paidWorkOrderings = map[string]string{
		"created_at": "pw.created_at",
		"updated_at": "pw.updated_at",
		"amount":     "pw.amount",
	}
	withdrawalOrderings = map[string]string{
		"created_at":   "w.created_at",
		"processed_at": "w.processed_at",
		"amount":       "w.amount",
	}
)

type (
	recordRow struct {
		ID             string      `db:"id"`
		TeacherID      string      `db:"teacher_id"`
		TeacherName    string      `db:"teacher_name"`
		CourseID       null.String `db:"course_id"`
		PaidWorkID     null.String `db:"paid_work_id"`
		PaymentID      null.String `db:"payment_id"`
		Source         string      `db:"source"`
		GrossAmount    int64       `db:"gross_amount"`
		TeacherPercent int         `db:"teacher_percent"`
		TeacherAmount  int64       `db:"teacher_amount"`
		AgencyAmount   int64       `db:"agency_amount"`
		Note           null.String `db:"note"`
		CreatedAt      time.Time   `db:"created_at"`
	}

	paidWorkRow struct {
		ID          string      `db:"id"`
		TeacherID   string      `db:"teacher_id"`
		TeacherName string      `db:"teacher_name"`
		Title       string      `db:"title"`
		Description null.String `db:"description"`
		Amount      int64       `db:"amount"`
		Status      string      `db:"status"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	withdrawalRow struct {
		ID             string      `db:"id"`
		TeacherID      string      `db:"teacher_id"`
		TeacherName    string      `db:"teacher_name"`
		Amount         int64       `db:"amount"`
		Method         string      `db:"method"`
		AccountDetails string      `db:"account_details"`
		Status         string      `db:"status"`
		AdminNote      null.String `db:"admin_note"`
		CreatedAt      time.Time   `db:"created_at"`
		ProcessedAt    null.Time   `db:"processed_at"`
	}
)

func (row recordRow) toRecord() revenue.Record {
	return revenue.Record{
		ID:             row.ID,
		TeacherID:      row.TeacherID,
		TeacherName:    row.TeacherName,
		CourseID:       row.CourseID.String,
		PaidWorkID:     row.PaidWorkID.String,
		PaymentID:      row.PaymentID.String,
		Source:         row.Source,
		GrossAmount:    row.GrossAmount,
		TeacherPercent: row.TeacherPercent,
		TeacherAmount:  row.TeacherAmount,
		AgencyAmount:   row.AgencyAmount,
		Note:           row.Note.String,
		CreatedAt:      row.CreatedAt.UTC(),
	}
}

func (row paidWorkRow) toPaidWork() revenue.PaidWork {
	return revenue.PaidWork{
		ID:          row.ID,
		TeacherID:   row.TeacherID,
		TeacherName: row.TeacherName,
		Title:       row.Title,
		Description: row.Description.String,
		Amount:      row.Amount,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (row withdrawalRow) toWithdrawal() revenue.Withdrawal {
	w := revenue.Withdrawal{
		ID:             row.ID,
		TeacherID:      row.TeacherID,
		TeacherName:    row.TeacherName,
		Amount:         row.Amount,
		Method:         row.Method,
		AccountDetails: row.AccountDetails,
		Status:         row.Status,
		AdminNote:      row.AdminNote.String,
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if row.ProcessedAt.Valid {
		t := row.ProcessedAt.Time.UTC()
		w.ProcessedAt = &t
	}
	return w
}

type revenueRepository struct {
	repository
}

var _ revenue.Repository = (*revenueRepository)(nil) // interface compliance check

func NewRevenueRepository(db *sqlx.DB) *revenueRepository {
	return &revenueRepository{repository{db: db}}
}

// Ledger

func (repo revenueRepository) CreateRecord(ctx context.Context, r revenue.Record, exec ...core.DBExecutor) (revenue.Record, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO revenue_records (id, teacher_id, course_id, paid_work_id, payment_id, source, gross_amount, teacher_percent,
		                             teacher_amount, agency_amount, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.TeacherID, nullString(r.CourseID), nullString(r.PaidWorkID), nullString(r.PaymentID), r.Source, r.GrossAmount,
		r.TeacherPercent, r.TeacherAmount, r.AgencyAmount, nullString(r.Note), r.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return revenue.Record{}, revenue.ErrAlreadyRecorded
		}
		return revenue.Record{}, errors.Wrap(err, "inserting revenue record")
	}
	return repo.getRecord(ctx, "r.id = ?", r.ID, exec...)
}

func (repo revenueRepository) getRecord(ctx context.Context, cond string, arg interface{}, exec ...core.DBExecutor) (revenue.Record, error) {
	ex := repo.getExec(exec)
	var row recordRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(recordSelect+" WHERE "+cond), arg); err != nil {
		return revenue.Record{}, trapNoRowsErr(err, revenue.ErrRecordNotFound, "getting revenue record")
	}
	return row.toRecord(), nil
}

func (repo revenueRepository) GetRecordByPayment(ctx context.Context, paymentID string, exec ...core.DBExecutor) (revenue.Record, error) {
	return repo.getRecord(ctx, "r.payment_id = ?", paymentID, exec...)
}

func (repo revenueRepository) QueryRecords(ctx context.Context, filter *revenue.RecordFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]revenue.Record, error) {
	var w where
	if filter != nil {
		if filter.TeacherID != "" {
			w.add("r.teacher_id = ?", filter.TeacherID)
		}
		if filter.CourseID != "" {
			w.add("r.course_id = ?", filter.CourseID)
		}
		if filter.Source != "" {
			w.add("r.source = ?", filter.Source)
		}
		if !filter.From.IsZero() {
			w.add("r.created_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add("r.created_at <= ?", filter.To.UTC())
		}
	}
	query := recordSelect + w.String() + " ORDER BY " + core.OrderBy(ordering, recordOrderings, "r.created_at DESC")

	var rows []recordRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying revenue records")
	}
	records := make([]revenue.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func (repo revenueRepository) SumTeacherEarnings(ctx context.Context, teacherID string, exec ...core.DBExecutor) (int64, error) {
	ex := repo.getExec(exec)
	var sum int64
	err := ex.GetContext(ctx, &sum, ex.Rebind("SELECT COALESCE(SUM(teacher_amount), 0) FROM revenue_records WHERE teacher_id = ?"), teacherID)
	return sum, errors.Wrap(err, "summing teacher earnings")
}

func (repo revenueRepository) SumWithdrawals(ctx context.Context, teacherID string, statuses []string, exec ...core.DBExecutor) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	var sums []int64
	err := selectIn(ctx, repo.getExec(exec), &sums,
		"SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests WHERE teacher_id = ? AND status IN (?)", teacherID, statuses)
	if err != nil || len(sums) == 0 {
		return 0, errors.Wrap(err, "summing withdrawals")
	}
	return sums[0], nil
}

func (repo revenueRepository) AgencyTotals(ctx context.Context, exec ...core.DBExecutor) (revenue.AgencyTotals, error) {
	ex := repo.getExec(exec)
	var totals struct {
		GrossTotal     int64 `db:"gross_total"`
		TeacherTotal   int64 `db:"teacher_total"`
		AgencyTotal    int64 `db:"agency_total"`
		RecordCount    int   `db:"record_count"`
		PaidOut        int64 `db:"paid_out"`
		PendingPayouts int64 `db:"pending_payouts"`
	}
	err := ex.GetContext(ctx, &totals, ex.Rebind(`
		SELECT COALESCE(SUM(gross_amount), 0) AS gross_total,
		       COALESCE(SUM(teacher_amount), 0) AS teacher_total,
		       COALESCE(SUM(agency_amount), 0) AS agency_total,
		       COUNT(*) AS record_count,
		       (SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests WHERE status = ?) AS paid_out,
		       (SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests WHERE status IN (?, ?)) AS pending_payouts
		FROM revenue_records`), revenue.StatusPaid, revenue.StatusPending, revenue.StatusApproved)
	if err != nil {
		return revenue.AgencyTotals{}, errors.Wrap(err, "computing agency totals")
	}
	return revenue.AgencyTotals{
		GrossTotal:     totals.GrossTotal,
		TeacherTotal:   totals.TeacherTotal,
		AgencyTotal:    totals.AgencyTotal,
		PaidOut:        totals.PaidOut,
		PendingPayouts: totals.PendingPayouts,
		RecordCount:    totals.RecordCount,
	}, nil
}

// LockTeacher takes a transaction scoped advisory lock keyed on the teacher.
func (repo revenueRepository) LockTeacher(ctx context.Context, teacherID string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind("SELECT pg_advisory_xact_lock(hashtext(?))"), "revenue:"+teacherID)
	return errors.Wrap(err, "locking teacher balance")
}

// Paid works

func (repo revenueRepository) CreatePaidWork(ctx context.Context, pw revenue.PaidWork, exec ...core.DBExecutor) (revenue.PaidWork, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO paid_works (id, teacher_id, title, description, amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		pw.ID, pw.TeacherID, pw.Title, nullString(pw.Description), pw.Amount, pw.Status, pw.CreatedAt.UTC(), pw.UpdatedAt.UTC(),
	)
	if err != nil {
		return revenue.PaidWork{}, errors.Wrap(err, "inserting paid work")
	}
	return repo.GetPaidWork(ctx, pw.ID, exec...)
}

func (repo revenueRepository) UpdatePaidWork(ctx context.Context, pw revenue.PaidWork, from string, exec ...core.DBExecutor) (revenue.PaidWork, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE paid_works SET title = ?, description = ?, amount = ?, status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		pw.Title, nullString(pw.Description), pw.Amount, pw.Status, pw.UpdatedAt.UTC(), pw.ID, from,
	)
	if err = checkAffected(res, err, revenue.ErrInvalidTransition, "updating paid work"); err != nil {
		return revenue.PaidWork{}, err
	}
	return repo.GetPaidWork(ctx, pw.ID, exec...)
}

func (repo revenueRepository) GetPaidWork(ctx context.Context, id string, exec ...core.DBExecutor) (revenue.PaidWork, error) {
	ex := repo.getExec(exec)
	var row paidWorkRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(paidWorkSelect+" WHERE pw.id = ?"), id); err != nil {
		return revenue.PaidWork{}, trapNoRowsErr(err, revenue.ErrPaidWorkNotFound, "getting paid work")
	}
	return row.toPaidWork(), nil
}

func (repo revenueRepository) QueryPaidWorks(ctx context.Context, filter *revenue.PaidWorkFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]revenue.PaidWork, error) {
	var w where
	if filter != nil {
		if filter.TeacherID != "" {
			w.add("pw.teacher_id = ?", filter.TeacherID)
		}
		if filter.Status != "" {
			w.add("pw.status = ?", filter.Status)
		}
	}
	query := paidWorkSelect + w.String() + " ORDER BY " + core.OrderBy(ordering, paidWorkOrderings, "pw.created_at DESC")

	var rows []paidWorkRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying paid works")
	}
	works := make([]revenue.PaidWork, 0, len(rows))
	for _, row := range rows {
		works = append(works, row.toPaidWork())
	}
	return works, nil
}

// Withdrawals

func (repo revenueRepository) CreateWithdrawal(ctx context.Context, w revenue.Withdrawal, exec ...core.DBExecutor) (revenue.Withdrawal, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO withdrawal_requests (id, teacher_id, amount, method, account_details, status, admin_note, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		w.ID, w.TeacherID, w.Amount, w.Method, w.AccountDetails, w.Status, nullString(w.AdminNote), w.CreatedAt.UTC(),
		nullTimePtr(w.ProcessedAt),
	)
	if err != nil {
		return revenue.Withdrawal{}, errors.Wrap(err, "inserting withdrawal")
	}
	return repo.GetWithdrawal(ctx, w.ID, exec...)
}

func (repo revenueRepository) UpdateWithdrawal(ctx context.Context, w revenue.Withdrawal, from string, exec ...core.DBExecutor) (revenue.Withdrawal, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE withdrawal_requests SET status = ?, admin_note = ?, processed_at = ? WHERE id = ? AND status = ?`),
		w.Status, nullString(w.AdminNote), nullTimePtr(w.ProcessedAt), w.ID, from,
	)
	if err = checkAffected(res, err, revenue.ErrInvalidTransition, "updating withdrawal"); err != nil {
		return revenue.Withdrawal{}, err
	}
	return repo.GetWithdrawal(ctx, w.ID, exec...)
}

func (repo revenueRepository) GetWithdrawal(ctx context.Context, id string, exec ...core.DBExecutor) (revenue.Withdrawal, error) {
	ex := repo.getExec(exec)
	var row withdrawalRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(withdrawalSelect+" WHERE w.id = ?"), id); err != nil {
		return revenue.Withdrawal{}, trapNoRowsErr(err, revenue.ErrWithdrawalNotFound, "getting withdrawal")
	}
	return row.toWithdrawal(), nil
}

func (repo revenueRepository) QueryWithdrawals(ctx context.Context, filter *revenue.WithdrawalFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]revenue.Withdrawal, error) {
	var w where
	if filter != nil {
		if filter.TeacherID != "" {
			w.add("w.teacher_id = ?", filter.TeacherID)
		}
		if filter.Status != "" {
			w.add("w.status = ?", filter.Status)
		}
	}
	query := withdrawalSelect + w.String() + " ORDER BY " + core.OrderBy(ordering, withdrawalOrderings, "w.created_at DESC")

	var rows []withdrawalRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying withdrawals")
	}
	out := make([]revenue.Withdrawal, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toWithdrawal())
	}
	return out, nil
}
