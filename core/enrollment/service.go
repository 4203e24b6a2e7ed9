package enrollment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("enrollment request not found")
	ErrAlreadyProcessed = errors.New("enrollment request already processed")
)

type (
	Repository interface {
		CreateRequest(ctx context.Context, r Request, exec ...core.DBExecutor) (Request, error)
		// UpdateRequest saves r if its stored status is still from, else returns ErrAlreadyProcessed.
		UpdateRequest(ctx context.Context, r Request, from string, exec ...core.DBExecutor) (Request, error)
		GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (Request, error)
		QueryRequests(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Request, error)
	}

	Service struct {
		repo      Repository
		tx        core.TxRunner
		users     *user.Service
		courses   *course.Service
		passcodes *passcode.Service
		mailSvc   core.EmailService
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	tx core.TxRunner,
	users *user.Service,
	courses *course.Service,
	passcodes *passcode.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		users:     users,
		courses:   courses,
		passcodes: passcodes,
		mailSvc:   mailSvc,
		logger:    logger,
	}
}

// Submit stores a pending enrollment request once the applicant proved they own the email.
func (svc *Service) Submit(ctx context.Context, pe PublicEnrollment) (Request, error) {
	if err := svc.users.VerifyOTP(ctx, pe.Email, pe.OTP); err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidOTP, user.ErrTooManyOTPTry:
			return Request{}, core.NewFieldError("otp", err.Error())
		}
		return Request{}, errors.Wrap(err, "verifying otp")
	}
	for _, id := range pe.CourseIDs {
		c, err := svc.courses.Get(ctx, id)
		if err != nil {
			if errors.Cause(err) == course.ErrNotFound {
				return Request{}, core.NewFieldError("course_ids", "unknown course "+id)
			}
			return Request{}, errors.Wrap(err, "getting course")
		}
		if !c.IsPublic() {
			return Request{}, core.NewFieldError("course_ids", "unknown course "+id)
		}
	}

	r, err := svc.repo.CreateRequest(ctx, Request{
		ID:        uuid.NewString(),
		FullName:  pe.FullName,
		Email:     pe.Email,
		Phone:     pe.Phone,
		Message:   pe.Message,
		CourseIDs: pe.CourseIDs,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Request{}, errors.Wrap(err, "creating enrollment request")
	}

	data := struct {
		Name  string
		Email string
	}{Name: r.FullName, Email: r.Email}
	messages := []*core.EmailMessage{{
		To:           []mail.Address{{Name: r.FullName, Address: r.Email}},
		Subject:      "We received your enrollment",
		TemplateName: "enrollment_received",
		TemplateData: data,
	}}
	if admins, err := svc.users.AdminEmails(ctx); err != nil {
		svc.logger.Error(fmt.Sprintf("%+v", err))
	} else if len(admins) > 0 {
		messages = append(messages, &core.EmailMessage{
			To:           admins,
			Subject:      "New enrollment request",
			TemplateName: "enrollment_admin",
			TemplateData: data,
		})
	}
	svc.mailSvc.SendMessages(messages...)
	return r, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Request, error) {
	if !core.IsUUID(id) {
		return Request{}, ErrNotFound
	}
	return svc.repo.GetRequest(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Request, error) {
	return svc.repo.QueryRequests(ctx, filter, ordering)
}

// Approve onboards the applicant: their account is reused or created, and a pass code granting
// the requested courses is bound to it.
func (svc *Service) Approve(ctx context.Context, actor core.Actor, id string) (Request, Provisioned, error) {
	r, err := svc.Get(ctx, id)
	if err != nil {
		return Request{}, Provisioned{}, err
	}
	if r.Status != StatusPending {
		return Request{}, Provisioned{}, ErrAlreadyProcessed
	}

	var (
		approved Request
		prov     Provisioned
	)
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		// claim the request first so a concurrent approval or rejection loses
		now := time.Now().UTC()
		r.Status = StatusApproved
		r.ProcessedAt = &now
		claimed, err := svc.repo.UpdateRequest(ctx, r, StatusPending, exec)
		if err != nil {
			return errors.Wrap(err, "claiming enrollment request")
		}
		prov, err = svc.provision(ctx, actor, user.NewStudent{
			FullName:  claimed.FullName,
			Email:     claimed.Email,
			Phone:     claimed.Phone,
			CourseIDs: claimed.CourseIDs,
		}, true, exec)
		if err != nil {
			return err
		}
		claimed.StudentID = prov.Student.ID
		approved, err = svc.repo.UpdateRequest(ctx, claimed, StatusApproved, exec)
		return errors.Wrap(err, "updating enrollment request")
	})
	if err != nil {
		return Request{}, Provisioned{}, err
	}
	svc.sendWelcome(prov)
	return approved, prov, nil
}

func (svc *Service) Reject(ctx context.Context, id, reason string) (Request, error) {
	r, err := svc.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if r.Status != StatusPending {
		return Request{}, ErrAlreadyProcessed
	}
	now := time.Now().UTC()
	r.Status = StatusRejected
	r.AdminNote = reason
	r.ProcessedAt = &now
	return svc.repo.UpdateRequest(ctx, r, StatusPending)
}

// Provision creates a student account (function "create-student"), granting ns.CourseIDs through
// a pass code, and mails the credentials.
func (svc *Service) Provision(ctx context.Context, actor core.Actor, ns user.NewStudent) (Provisioned, error) {
	var prov Provisioned
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		prov, err = svc.provision(ctx, actor, ns, false, exec)
		return err
	})
	if err != nil {
		return Provisioned{}, err
	}
	svc.sendWelcome(prov)
	return prov, nil
}

// provision creates the student, or reuses the existing account of ns.Email when reuse is set.
func (svc *Service) provision(ctx context.Context, actor core.Actor, ns user.NewStudent, reuse bool, exec core.DBExecutor) (Provisioned, error) {
	var prov Provisioned
	existing, err := svc.users.GetByEmail(ctx, ns.Email)
	switch {
	case err == nil && reuse:
		prov.Student = existing
	case err == nil || errors.Cause(err) == user.ErrNotFound:
		if prov.Student, prov.Password, err = svc.users.CreateStudent(ctx, ns, exec); err != nil {
			return Provisioned{}, err
		}
	default:
		return Provisioned{}, errors.Wrap(err, "finding user by email")
	}

	if len(ns.CourseIDs) > 0 {
		pc, err := svc.passcodes.Grant(ctx, actor.ID, prov.Student.ID, ns.CourseIDs, exec)
		if err != nil {
			return Provisioned{}, errors.Wrap(err, "granting courses")
		}
		prov.PassCode = &pc
	}
	if ns.Password != "" {
		prov.Password = "" // chosen by the caller, never echoed
	}
	return prov, nil
}

func (svc *Service) sendWelcome(prov Provisioned) {
	var code string
	if prov.PassCode != nil {
		code = prov.PassCode.Code
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: prov.Student.FullName, Address: prov.Student.Email}},
		Subject:      "Welcome to the academy",
		TemplateName: "welcome_student",
		TemplateData: struct {
			Name     string
			Email    string
			Password string
			PassCode string
		}{Name: prov.Student.FullName, Email: prov.Student.Email, Password: prov.Password, PassCode: code},
	})
}
