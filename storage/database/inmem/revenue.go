package inmemdb

import (
	"context"
	"sort"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/revenue"
)

type revenueRepository struct {
	db *DB
}

var _ revenue.Repository = (*revenueRepository)(nil) // interface compliance check

func NewRevenueRepository(db *DB) *revenueRepository {
	return &revenueRepository{db: db}
}

// Records

func (repo *revenueRepository) CreateRecord(_ context.Context, r revenue.Record, _ ...core.DBExecutor) (revenue.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.records {
		if (r.PaymentID != "" && other.PaymentID == r.PaymentID) || (r.PaidWorkID != "" && other.PaidWorkID == r.PaidWorkID) {
			return revenue.Record{}, revenue.ErrAlreadyRecorded
		}
	}
	repo.db.records[r.ID] = &r
	out := r
	out.TeacherName = repo.db.fullName(r.TeacherID)
	return out, nil
}

func (repo *revenueRepository) QueryRecords(_ context.Context, filter *revenue.RecordFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]revenue.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]revenue.Record, 0, len(repo.db.records))
	for _, r := range repo.db.records {
		if filter != nil {
			if filter.TeacherID != "" && r.TeacherID != filter.TeacherID {
				continue
			}
			if filter.CourseID != "" && r.CourseID != filter.CourseID {
				continue
			}
			if filter.Source != "" && r.Source != filter.Source {
				continue
			}
			if !filter.From.IsZero() && r.CreatedAt.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && r.CreatedAt.After(filter.To) {
				continue
			}
		}
		out := *r
		out.TeacherName = repo.db.fullName(r.TeacherID)
		records = append(records, out)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records, nil
}

func (repo *revenueRepository) GetRecordByPayment(_ context.Context, paymentID string, _ ...core.DBExecutor) (revenue.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, r := range repo.db.records {
		if paymentID != "" && r.PaymentID == paymentID {
			out := *r
			out.TeacherName = repo.db.fullName(r.TeacherID)
			return out, nil
		}
	}
	return revenue.Record{}, revenue.ErrRecordNotFound
}

func (repo *revenueRepository) SumTeacherEarnings(_ context.Context, teacherID string, _ ...core.DBExecutor) (int64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sum int64
	for _, r := range repo.db.records {
		if r.TeacherID == teacherID {
			sum += r.TeacherAmount
		}
	}
	return sum, nil
}

func (repo *revenueRepository) SumWithdrawals(_ context.Context, teacherID string, statuses []string, _ ...core.DBExecutor) (int64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sum int64
	for _, w := range repo.db.withdrawals {
		if w.TeacherID == teacherID && contains(statuses, w.Status) {
			sum += w.Amount
		}
	}
	return sum, nil
}

func (repo *revenueRepository) AgencyTotals(_ context.Context, _ ...core.DBExecutor) (revenue.AgencyTotals, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var totals revenue.AgencyTotals
	for _, r := range repo.db.records {
		totals.GrossTotal += r.GrossAmount
		totals.TeacherTotal += r.TeacherAmount
		totals.AgencyTotal += r.AgencyAmount
		totals.RecordCount++
	}
	for _, w := range repo.db.withdrawals {
		switch w.Status {
		case revenue.StatusPaid:
			totals.PaidOut += w.Amount
		case revenue.StatusPending, revenue.StatusApproved:
			totals.PendingPayouts += w.Amount
		}
	}
	return totals, nil
}

// LockTeacher is a no-op: TxRunner already runs transactions one at a time.
func (repo *revenueRepository) LockTeacher(context.Context, string, ...core.DBExecutor) error {
	return nil
}

// Paid works

func (repo *revenueRepository) paidWork(pw *revenue.PaidWork) revenue.PaidWork {
	out := *pw
	out.TeacherName = repo.db.fullName(pw.TeacherID)
	return out
}

func (repo *revenueRepository) CreatePaidWork(_ context.Context, pw revenue.PaidWork, _ ...core.DBExecutor) (revenue.PaidWork, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.paidWorks[pw.ID] = &pw
	return repo.paidWork(&pw), nil
}

func (repo *revenueRepository) UpdatePaidWork(_ context.Context, pw revenue.PaidWork, from string, _ ...core.DBExecutor) (revenue.PaidWork, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.paidWorks[pw.ID]
	if !ok {
		return revenue.PaidWork{}, revenue.ErrPaidWorkNotFound
	}
	if orig.Status != from {
		return revenue.PaidWork{}, revenue.ErrInvalidTransition
	}
	orig.Title, orig.Description, orig.Amount = pw.Title, pw.Description, pw.Amount
	orig.Status, orig.UpdatedAt = pw.Status, pw.UpdatedAt
	return repo.paidWork(orig), nil
}

func (repo *revenueRepository) GetPaidWork(_ context.Context, id string, _ ...core.DBExecutor) (revenue.PaidWork, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if pw, ok := repo.db.paidWorks[id]; ok {
		return repo.paidWork(pw), nil
	}
	return revenue.PaidWork{}, revenue.ErrPaidWorkNotFound
}

func (repo *revenueRepository) QueryPaidWorks(_ context.Context, filter *revenue.PaidWorkFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]revenue.PaidWork, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	works := make([]revenue.PaidWork, 0, len(repo.db.paidWorks))
	for _, pw := range repo.db.paidWorks {
		if filter != nil {
			if filter.TeacherID != "" && pw.TeacherID != filter.TeacherID {
				continue
			}
			if filter.Status != "" && pw.Status != filter.Status {
				continue
			}
		}
		works = append(works, repo.paidWork(pw))
	}
	sort.Slice(works, func(i, j int) bool { return works[i].CreatedAt.After(works[j].CreatedAt) })
	return works, nil
}

// Withdrawals

func (repo *revenueRepository) withdrawal(w *revenue.Withdrawal) revenue.Withdrawal {
	out := *w
	out.TeacherName = repo.db.fullName(w.TeacherID)
	out.ProcessedAt = copyTime(w.ProcessedAt)
	return out
}

func (repo *revenueRepository) CreateWithdrawal(_ context.Context, w revenue.Withdrawal, _ ...core.DBExecutor) (revenue.Withdrawal, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	w.ProcessedAt = copyTime(w.ProcessedAt)
	repo.db.withdrawals[w.ID] = &w
	return repo.withdrawal(&w), nil
}

func (repo *revenueRepository) UpdateWithdrawal(_ context.Context, w revenue.Withdrawal, from string, _ ...core.DBExecutor) (revenue.Withdrawal, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.withdrawals[w.ID]
	if !ok {
		return revenue.Withdrawal{}, revenue.ErrWithdrawalNotFound
	}
	if orig.Status != from {
		return revenue.Withdrawal{}, revenue.ErrInvalidTransition
	}
	orig.Status, orig.AdminNote, orig.ProcessedAt = w.Status, w.AdminNote, copyTime(w.ProcessedAt)
	return repo.withdrawal(orig), nil
}

func (repo *revenueRepository) GetWithdrawal(_ context.Context, id string, _ ...core.DBExecutor) (revenue.Withdrawal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if w, ok := repo.db.withdrawals[id]; ok {
		return repo.withdrawal(w), nil
	}
	return revenue.Withdrawal{}, revenue.ErrWithdrawalNotFound
}

func (repo *revenueRepository) QueryWithdrawals(_ context.Context, filter *revenue.WithdrawalFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]revenue.Withdrawal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]revenue.Withdrawal, 0, len(repo.db.withdrawals))
	for _, w := range repo.db.withdrawals {
		if filter != nil {
			if filter.TeacherID != "" && w.TeacherID != filter.TeacherID {
				continue
			}
			if filter.Status != "" && w.Status != filter.Status {
				continue
			}
		}
		out = append(out, repo.withdrawal(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
