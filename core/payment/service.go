package payment

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/revenue"
	"github.com/alphazero/academy/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("payment not found")
	ErrInvalidSignature = errors.New("invalid notification signature")
	ErrAmountMismatch   = errors.New("notified amount does not match the payment")
	ErrAlreadyOwned     = errors.New("you already have access to this course")
	ErrNotForSale       = errors.New("this course cannot be purchased")
	ErrGatewayDisabled  = errors.New("payments are not configured")
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		UpdatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		GetPaymentByOrder(ctx context.Context, orderID string, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Payment, error)
	}

	// Gateway opens transactions on the payment provider.
	Gateway interface {
		CreateTransaction(ctx context.Context, o Order) (Transaction, error)
		// ServerKey is the secret notifications are signed with.
		ServerKey() string
	}

	Service struct {
		repo      Repository
		tx        core.TxRunner
		gateway   Gateway
		users     *user.Service
		courses   *course.Service
		passcodes *passcode.Service
		revenue   *revenue.Service
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	tx core.TxRunner,
	gateway Gateway,
	users *user.Service,
	courses *course.Service,
	passcodes *passcode.Service,
	revenue *revenue.Service,
	logger core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		gateway:   gateway,
		users:     users,
		courses:   courses,
		passcodes: passcodes,
		revenue:   revenue,
		logger:    logger,
	}
}

func newOrderID(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("AZ-%d-%s", now.Unix(), strings.ToUpper(hex.EncodeToString(b))), nil
}

// Checkout opens a transaction for the actor to buy a course.
func (svc *Service) Checkout(ctx context.Context, actor core.Actor, courseID string) (Payment, error) {
	if svc.gateway == nil {
		return Payment{}, ErrGatewayDisabled
	}
	crs, err := svc.courses.Get(ctx, courseID)
	if err != nil {
		return Payment{}, err
	}
	if !crs.IsPublic() || crs.Price <= 0 {
		return Payment{}, ErrNotForSale
	}
	owned, err := svc.passcodes.HasAccess(ctx, actor.ID, crs.ID)
	if err != nil {
		return Payment{}, errors.Wrap(err, "checking access")
	}
	if owned {
		return Payment{}, ErrAlreadyOwned
	}
	student, err := svc.users.GetByID(ctx, actor.ID)
	if err != nil {
		return Payment{}, errors.Wrap(err, "getting student")
	}

	now := time.Now().UTC()
	orderID, err := newOrderID(now)
	if err != nil {
		return Payment{}, errors.Wrap(err, "generating order id")
	}
	p, err := svc.repo.CreatePayment(ctx, Payment{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		StudentID: student.ID,
		CourseID:  crs.ID,
		Amount:    crs.Price,
		Status:    StatusPending,
		CreatedAt: now,
	})
	if err != nil {
		return Payment{}, errors.Wrap(err, "creating payment")
	}

	trx, err := svc.gateway.CreateTransaction(ctx, Order{
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		ItemID:        crs.ID,
		ItemName:      crs.Title,
		CustomerName:  student.FullName,
		CustomerEmail: student.Email,
		CustomerPhone: student.Phone,
	})
	if err != nil {
		p.Status = StatusFailed
		if _, uerr := svc.repo.UpdatePayment(ctx, p); uerr != nil {
			svc.logger.Error(fmt.Sprintf("%+v", errors.Wrap(uerr, "failing payment")))
		}
		return Payment{}, errors.Wrap(err, "creating gateway transaction")
	}
	p.SnapToken = trx.Token
	p.RedirectURL = trx.RedirectURL
	return svc.repo.UpdatePayment(ctx, p)
}

func (svc *Service) verify(n Notification) error {
	if svc.gateway == nil {
		return ErrGatewayDisabled
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, svc.gateway.ServerKey())
	if subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(n.SignatureKey))) == 0 {
		return ErrInvalidSignature
	}
	return nil
}

// parseAmount reads a gateway amount such as "150000.00" in minor units.
func parseAmount(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f + 0.5), nil
}

// HandleNotification applies a gateway notification. A paid payment grants the course to the
// student and credits the teacher; replays of the same notification change nothing.
func (svc *Service) HandleNotification(ctx context.Context, n Notification) (Payment, error) {
	if err := svc.verify(n); err != nil {
		return Payment{}, err
	}
	status := MapStatus(n.TransactionStatus, n.FraudStatus)

	var p Payment
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetPaymentByOrder(ctx, n.OrderID, exec); err != nil {
			return err
		}
		if status == "" || p.Status == StatusPaid || p.Status == status {
			return nil
		}
		if amount, err := parseAmount(n.GrossAmount); err != nil || amount != p.Amount {
			return ErrAmountMismatch
		}

		p.Status = status
		if status == StatusPaid {
			now := time.Now().UTC()
			p.PaidAt = &now
		}
		if p, err = svc.repo.UpdatePayment(ctx, p, exec); err != nil {
			return errors.Wrap(err, "updating payment")
		}
		if status != StatusPaid {
			return nil
		}
		return svc.fulfill(ctx, p, exec)
	})
	return p, err
}

func (svc *Service) fulfill(ctx context.Context, p Payment, exec core.DBExecutor) error {
	if _, err := svc.passcodes.Grant(ctx, core.System.ID, p.StudentID, []string{p.CourseID}, exec); err != nil {
		return errors.Wrap(err, "granting course")
	}
	crs, err := svc.courses.Get(ctx, p.CourseID)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	if crs.TeacherID == "" {
		return nil
	}
	if _, err = svc.revenue.RecordCourseSale(ctx, crs.TeacherID, crs.ID, p.ID, p.Amount, exec); err != nil {
		return errors.Wrap(err, "recording course sale")
	}
	return nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter, ordering)
}
