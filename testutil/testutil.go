// Package testutil wires the whole application on top of the in-memory database for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/chat"
	"github.com/alphazero/academy/core/content"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/enrollment"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/payment"
	"github.com/alphazero/academy/core/progress"
	"github.com/alphazero/academy/core/revenue"
	"github.com/alphazero/academy/core/user"
	"github.com/alphazero/academy/services/email"
	"github.com/alphazero/academy/services/logger"
	"github.com/alphazero/academy/services/media"
	"github.com/alphazero/academy/services/otpstore"
	"github.com/alphazero/academy/services/realtime"
	"github.com/alphazero/academy/storage/database/inmem"
	"github.com/alphazero/academy/storage/objectstore"
)

// Env is a fully wired application backed by memory.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	DB      *inmemdb.DB
	Mail    *emailsvc.ConsoleServiceMock
	OTP     *otpstore.MemoryStore
	Broker  *realtime.LocalBroker
	Storage *objectstore.LocalStorage

	UserRepo     user.Repository
	CourseRepo   course.Repository
	PassCodeRepo passcode.Repository

	UserSvc       *user.Service
	CourseSvc     *course.Service
	PassCodeSvc   *passcode.Service
	ProgressSvc   *progress.Service
	RevenueSvc    *revenue.Service
	EnrollmentSvc *enrollment.Service
	PaymentSvc    *payment.Service
	ChatSvc       *chat.Service
	ContentSvc    *content.Service
	MediaSvc      *media.Service
}

// NewConfig returns the TEST configuration, storing uploads under a temporary directory.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Debug = false
	conf.Storage.LocalDir = t.TempDir()
	conf.Storage.PublicBaseURL = "http://cdn.test/media"
	return conf
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	passcode.InitValidators(validate, translator)
	return validate, translator
}

// NewEnv wires every service. gateway may be nil to disable checkout.
func NewEnv(t *testing.T, gateway payment.Gateway) *Env {
	t.Helper()

	conf := NewConfig(t)
	logger := logsvc.New("TEST : ", conf)
	core.ParseEmailTemplates(conf, logger)
	validate, translator := NewValidator()

	store, err := objectstore.NewLocalStorage(conf.Storage.LocalDir, conf.Storage.PublicBaseURL)
	if err != nil {
		t.Fatalf("NewLocalStorage(): %v", err)
	}

	db := inmemdb.Open()
	tx := inmemdb.NewTxRunner(db)
	env := &Env{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		DB:           db,
		Mail:         emailsvc.NewConsoleServiceMock(conf, logger),
		OTP:          otpstore.NewMemoryStore(),
		Broker:       realtime.NewLocalBroker(),
		Storage:      store,
		UserRepo:     inmemdb.NewUserRepository(db),
		CourseRepo:   inmemdb.NewCourseRepository(db),
		PassCodeRepo: inmemdb.NewPassCodeRepository(db),
	}

	env.UserSvc = user.NewService(env.UserRepo, env.OTP, env.Mail, conf, logger)
	env.CourseSvc = course.NewService(env.CourseRepo, tx)
	env.PassCodeSvc = passcode.NewService(env.PassCodeRepo, tx)
	env.ProgressSvc = progress.NewService(inmemdb.NewProgressRepository(db), tx, env.CourseSvc, env.PassCodeSvc, logger)
	env.RevenueSvc = revenue.NewService(inmemdb.NewRevenueRepository(db), tx, env.UserSvc, env.Mail, conf, logger)
	env.EnrollmentSvc = enrollment.NewService(
		inmemdb.NewEnrollmentRepository(db), tx, env.UserSvc, env.CourseSvc, env.PassCodeSvc, env.Mail, logger,
	)
	env.PaymentSvc = payment.NewService(
		inmemdb.NewPaymentRepository(db), tx, gateway, env.UserSvc, env.CourseSvc, env.PassCodeSvc, env.RevenueSvc, logger,
	)
	env.ChatSvc = chat.NewService(inmemdb.NewChatRepository(db), tx, env.Broker, env.UserSvc, env.CourseSvc, logger)
	env.ContentSvc = content.NewService(inmemdb.NewContentRepository(db))
	env.MediaSvc = media.NewService(store, conf)
	return env
}

// CreateUser stores a user directly, bypassing the service rules.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		FullName:  name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	for _, r := range roles {
		if r == user.RoleTeacher {
			usr.TeacherApplicant, usr.TeacherApproved = true, true
		}
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// CreateCourse stores a course owned by teacherID.
func CreateCourse(t *testing.T, repo course.Repository, teacherID, title string, price int64, public bool) course.Course {
	t.Helper()
	now := time.Now().UTC()
	c, err := repo.CreateCourse(context.Background(), course.Course{
		ID:          uuid.NewString(),
		Title:       title,
		Price:       price,
		IsPublished: public,
		IsApproved:  public,
		TeacherID:   teacherID,
		CourseType:  course.TypeRecorded,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return c
}

// CreateVideo appends a video to a course.
func CreateVideo(t *testing.T, repo course.Repository, courseID, title string, order int) course.Video {
	t.Helper()
	v, err := repo.CreateVideo(context.Background(), course.Video{
		ID:         uuid.NewString(),
		CourseID:   courseID,
		Title:      title,
		VideoURL:   "https://www.youtube.com/watch?v=" + title,
		VideoType:  course.VideoYoutube,
		OrderIndex: order,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateVideo(): %v", err)
	}
	return v
}

// Grant gives a student access to courses through an active pass code.
func Grant(t *testing.T, svc *passcode.Service, adminID, studentID string, courseIDs ...string) passcode.PassCode {
	t.Helper()
	pc, err := svc.Grant(context.Background(), adminID, studentID, courseIDs)
	if err != nil {
		t.Fatalf("Grant(): %v", err)
	}
	return pc
}
