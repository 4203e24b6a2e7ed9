package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func clonePayment(p *payment.Payment) payment.Payment {
	out := *p
	out.PaidAt = copyTime(p.PaidAt)
	return out
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.payments {
		if other.OrderID == p.OrderID {
			return payment.Payment{}, errors.New("order id already used")
		}
	}
	stored := clonePayment(&p)
	repo.db.payments[p.ID] = &stored
	return clonePayment(&stored), nil
}

func (repo *paymentRepository) UpdatePayment(_ context.Context, p payment.Payment, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.payments[p.ID]
	if !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	orig.Status, orig.SnapToken, orig.RedirectURL = p.Status, p.SnapToken, p.RedirectURL
	orig.PaidAt = copyTime(p.PaidAt)
	return clonePayment(orig), nil
}

func (repo *paymentRepository) GetPaymentByOrder(_ context.Context, orderID string, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.payments {
		if p.OrderID == orderID {
			return clonePayment(p), nil
		}
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(_ context.Context, filter *payment.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]payment.Payment, 0, len(repo.db.payments))
	for _, p := range repo.db.payments {
		if filter != nil {
			if filter.StudentID != "" && p.StudentID != filter.StudentID {
				continue
			}
			if filter.CourseID != "" && p.CourseID != filter.CourseID {
				continue
			}
			if filter.Status != "" && p.Status != filter.Status {
				continue
			}
		}
		out = append(out, clonePayment(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
