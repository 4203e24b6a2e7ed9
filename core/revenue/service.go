package revenue

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/user"
)

var (
	// errors
	ErrRecordNotFound      = errors.New("revenue record not found")
	ErrPaidWorkNotFound    = errors.New("paid work not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal request not found")
	ErrInsufficientBalance = errors.New("amount exceeds the available balance")
	ErrInvalidTransition   = errors.New("status change not allowed")
	ErrAlreadyRecorded     = errors.New("revenue already recorded")
)

type (
	Repository interface {
		// CreateRecord returns ErrAlreadyRecorded when the payment or the paid work was credited before.
		CreateRecord(ctx context.Context, r Record, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, filter *RecordFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
		GetRecordByPayment(ctx context.Context, paymentID string, exec ...core.DBExecutor) (Record, error)
		SumTeacherEarnings(ctx context.Context, teacherID string, exec ...core.DBExecutor) (int64, error)
		SumWithdrawals(ctx context.Context, teacherID string, statuses []string, exec ...core.DBExecutor) (int64, error)
		AgencyTotals(ctx context.Context, exec ...core.DBExecutor) (AgencyTotals, error)
		// LockTeacher serializes balance-dependent writes of a teacher until the transaction ends.
		LockTeacher(ctx context.Context, teacherID string, exec ...core.DBExecutor) error

		CreatePaidWork(ctx context.Context, pw PaidWork, exec ...core.DBExecutor) (PaidWork, error)
		// UpdatePaidWork saves pw if its stored status is still from, else returns ErrInvalidTransition.
		UpdatePaidWork(ctx context.Context, pw PaidWork, from string, exec ...core.DBExecutor) (PaidWork, error)
		GetPaidWork(ctx context.Context, id string, exec ...core.DBExecutor) (PaidWork, error)
		QueryPaidWorks(ctx context.Context, filter *PaidWorkFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]PaidWork, error)

		CreateWithdrawal(ctx context.Context, w Withdrawal, exec ...core.DBExecutor) (Withdrawal, error)
		// UpdateWithdrawal saves w if its stored status is still from, else returns ErrInvalidTransition.
		UpdateWithdrawal(ctx context.Context, w Withdrawal, from string, exec ...core.DBExecutor) (Withdrawal, error)
		GetWithdrawal(ctx context.Context, id string, exec ...core.DBExecutor) (Withdrawal, error)
		QueryWithdrawals(ctx context.Context, filter *WithdrawalFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Withdrawal, error)
	}

	Service struct {
		repo    Repository
		tx      core.TxRunner
		users   *user.Service
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	tx core.TxRunner,
	users *user.Service,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, tx: tx, users: users, mailSvc: mailSvc, conf: conf, logger: logger}
}

func (svc *Service) newRecord(teacherID, source string, gross int64, percent int) Record {
	teacherAmount, agencyAmount := Split(gross, percent)
	return Record{
		ID:             uuid.NewString(),
		TeacherID:      teacherID,
		Source:         source,
		GrossAmount:    gross,
		TeacherPercent: percent,
		TeacherAmount:  teacherAmount,
		AgencyAmount:   agencyAmount,
		CreatedAt:      time.Now().UTC(),
	}
}

// RecordCourseSale writes the course_sale record of a payment, at most once per payment.
func (svc *Service) RecordCourseSale(ctx context.Context, teacherID, courseID, paymentID string, gross int64, exec ...core.DBExecutor) (Record, error) {
	existing, err := svc.repo.GetRecordByPayment(ctx, paymentID, exec...)
	if err == nil {
		return existing, nil
	} else if errors.Cause(err) != ErrRecordNotFound {
		return Record{}, errors.Wrap(err, "getting record by payment")
	}

	r := svc.newRecord(teacherID, SourceCourseSale, gross, svc.conf.Revenue.TeacherSharePercent)
	r.CourseID = courseID
	r.PaymentID = paymentID
	return svc.repo.CreateRecord(ctx, r, exec...)
}

// RecordManual writes a record entered by an admin; the percent defaults to the configured share.
func (svc *Service) RecordManual(ctx context.Context, nr NewManualRecord) (Record, error) {
	if _, err := svc.users.GetByID(ctx, nr.TeacherID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Record{}, core.NewFieldError("teacher_id", "teacher not found")
		}
		return Record{}, errors.Wrap(err, "getting teacher")
	}
	percent := svc.conf.Revenue.TeacherSharePercent
	if nr.TeacherPercent != nil {
		percent = *nr.TeacherPercent
	}
	r := svc.newRecord(nr.TeacherID, SourceManual, nr.GrossAmount, percent)
	r.CourseID = nr.CourseID
	r.Note = nr.Note
	return svc.repo.CreateRecord(ctx, r)
}

func (svc *Service) QueryRecords(ctx context.Context, filter *RecordFilter, ordering []core.DBOrdering) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter, ordering)
}

// Paid works

func (svc *Service) CreatePaidWork(ctx context.Context, nw NewPaidWork) (PaidWork, error) {
	teacher, err := svc.users.GetByID(ctx, nw.TeacherID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return PaidWork{}, core.NewFieldError("teacher_id", "teacher not found")
		}
		return PaidWork{}, errors.Wrap(err, "getting teacher")
	}
	if !teacher.IsTeacher() {
		return PaidWork{}, core.NewFieldError("teacher_id", "user is not a teacher")
	}
	now := time.Now().UTC()
	return svc.repo.CreatePaidWork(ctx, PaidWork{
		ID:          uuid.NewString(),
		TeacherID:   nw.TeacherID,
		TeacherName: teacher.FullName,
		Title:       nw.Title,
		Description: nw.Description,
		Amount:      nw.Amount,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetPaidWork(ctx context.Context, id string) (PaidWork, error) {
	if !core.IsUUID(id) {
		return PaidWork{}, ErrPaidWorkNotFound
	}
	return svc.repo.GetPaidWork(ctx, id)
}

func (svc *Service) QueryPaidWorks(ctx context.Context, filter *PaidWorkFilter, ordering []core.DBOrdering) ([]PaidWork, error) {
	return svc.repo.QueryPaidWorks(ctx, filter, ordering)
}

// UpdatePaidWorkStatus moves a paid work forward. Marking it paid credits the teacher in full.
func (svc *Service) UpdatePaidWorkStatus(ctx context.Context, id, status string) (PaidWork, error) {
	var pw PaidWork
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if !core.IsUUID(id) {
			return ErrPaidWorkNotFound
		}
		if pw, err = svc.repo.GetPaidWork(ctx, id, exec); err != nil {
			return err
		}
		from := pw.Status
		if !canTransition(paidWorkTransitions, from, status) {
			return ErrInvalidTransition
		}
		pw.Status = status
		pw.UpdatedAt = time.Now().UTC()
		if pw, err = svc.repo.UpdatePaidWork(ctx, pw, from, exec); err != nil {
			return errors.Wrap(err, "updating paid work")
		}

		if status == StatusPaid {
			r := svc.newRecord(pw.TeacherID, SourcePaidWork, pw.Amount, 100)
			r.PaidWorkID = pw.ID
			r.Note = pw.Title
			if _, err = svc.repo.CreateRecord(ctx, r, exec); err != nil {
				return errors.Wrap(err, "creating paid work record")
			}
		}
		return nil
	})
	return pw, err
}

// Balance

// Summary returns the balance of a teacher. Pending and approved withdrawals are reserved.
func (svc *Service) Summary(ctx context.Context, teacherID string, exec ...core.DBExecutor) (Summary, error) {
	earned, err := svc.repo.SumTeacherEarnings(ctx, teacherID, exec...)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summing earnings")
	}
	paid, err := svc.repo.SumWithdrawals(ctx, teacherID, []string{StatusPaid}, exec...)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summing paid withdrawals")
	}
	pending, err := svc.repo.SumWithdrawals(ctx, teacherID, []string{StatusPending, StatusApproved}, exec...)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summing pending withdrawals")
	}
	return Summary{
		TeacherID:          teacherID,
		TotalEarned:        earned,
		TotalWithdrawn:     paid,
		PendingWithdrawals: pending,
		Available:          balance(earned, paid, pending),
	}, nil
}

func (svc *Service) AgencyTotals(ctx context.Context) (AgencyTotals, error) {
	return svc.repo.AgencyTotals(ctx)
}

// Withdrawals

// RequestWithdrawal reserves amount out of the available balance of the teacher.
func (svc *Service) RequestWithdrawal(ctx context.Context, actor core.Actor, nw NewWithdrawal) (Withdrawal, error) {
	if !actor.Teacher {
		return Withdrawal{}, core.ErrForbidden
	}
	if nw.Amount < svc.conf.Revenue.MinWithdrawal {
		return Withdrawal{}, core.NewFieldError("amount", fmt.Sprintf("amount must be at least %d", svc.conf.Revenue.MinWithdrawal))
	}

	var w Withdrawal
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.LockTeacher(ctx, actor.ID, exec); err != nil {
			return errors.Wrap(err, "locking teacher")
		}
		sum, err := svc.Summary(ctx, actor.ID, exec)
		if err != nil {
			return err
		}
		if nw.Amount > sum.Available {
			return ErrInsufficientBalance
		}
		w, err = svc.repo.CreateWithdrawal(ctx, Withdrawal{
			ID:             uuid.NewString(),
			TeacherID:      actor.ID,
			Amount:         nw.Amount,
			Method:         nw.Method,
			AccountDetails: nw.AccountDetails,
			Status:         StatusPending,
			CreatedAt:      time.Now().UTC(),
		}, exec)
		return errors.Wrap(err, "creating withdrawal")
	})
	return w, err
}

func (svc *Service) GetWithdrawal(ctx context.Context, id string) (Withdrawal, error) {
	if !core.IsUUID(id) {
		return Withdrawal{}, ErrWithdrawalNotFound
	}
	return svc.repo.GetWithdrawal(ctx, id)
}

func (svc *Service) QueryWithdrawals(ctx context.Context, filter *WithdrawalFilter, ordering []core.DBOrdering) ([]Withdrawal, error) {
	return svc.repo.QueryWithdrawals(ctx, filter, ordering)
}

// ProcessWithdrawal moves a withdrawal request forward and notifies the teacher.
// Concurrent decisions on the same request are serialized: only the first one applies.
func (svc *Service) ProcessWithdrawal(ctx context.Context, id string, pw ProcessWithdrawal) (Withdrawal, error) {
	w, err := svc.GetWithdrawal(ctx, id)
	if err != nil {
		return Withdrawal{}, err
	}
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.LockTeacher(ctx, w.TeacherID, exec); err != nil {
			return errors.Wrap(err, "locking teacher")
		}
		var err error
		if w, err = svc.repo.GetWithdrawal(ctx, id, exec); err != nil {
			return err
		}
		from := w.Status
		if !canTransition(withdrawalTransitions, from, pw.Status) {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		w.Status = pw.Status
		w.ProcessedAt = &now
		if pw.AdminNote != "" {
			w.AdminNote = pw.AdminNote
		}
		w, err = svc.repo.UpdateWithdrawal(ctx, w, from, exec)
		return errors.Wrap(err, "updating withdrawal")
	})
	if err != nil {
		return Withdrawal{}, err
	}

	svc.notifyProcessed(ctx, w)
	return w, nil
}

// notifyProcessed mails the teacher the new status, with a receipt once paid.
func (svc *Service) notifyProcessed(ctx context.Context, w Withdrawal) {
	teacher, err := svc.users.GetByID(ctx, w.TeacherID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("%+v", errors.Wrap(err, "getting teacher to notify")))
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: teacher.FullName, Address: teacher.Email}},
		Subject:      "Withdrawal request " + w.Status,
		TemplateName: "withdrawal_processed",
		TemplateData: struct {
			Name   string
			Amount int64
			Status string
			Note   string
		}{Name: teacher.FullName, Amount: w.Amount, Status: w.Status, Note: w.AdminNote},
	}
	if w.Status == StatusPaid {
		if w.TeacherName == "" {
			w.TeacherName = teacher.FullName
		}
		receipt, err := Receipt(w)
		if err == nil {
			err = msg.Attach(bytes.NewReader(receipt), receiptName(w), "text/csv")
		}
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("%+v", errors.Wrap(err, "attaching withdrawal receipt")))
		}
	}
	svc.mailSvc.SendMessages(msg)
}
