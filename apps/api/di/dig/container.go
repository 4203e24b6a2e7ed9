package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/alphazero/academy/apps/api/echo"
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
	emailsvc "github.com/alphazero/academy/services/email"
	"github.com/alphazero/academy/services/jobs"
	logsvc "github.com/alphazero/academy/services/logger"
	"github.com/alphazero/academy/services/media"
	"github.com/alphazero/academy/services/metrics"
	"github.com/alphazero/academy/services/otpstore"
	paymentsvc "github.com/alphazero/academy/services/payment"
	"github.com/alphazero/academy/services/realtime"
	redisclient "github.com/alphazero/academy/services/redis"
	"github.com/alphazero/academy/storage/database"
	inmemdb "github.com/alphazero/academy/storage/database/inmem"
	"github.com/alphazero/academy/storage/database/sqlxrepos"
	"github.com/alphazero/academy/storage/objectstore"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Closer releases a backing resource on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// HealthCheck is a named readiness check served on /health.
type HealthCheck struct {
	Name  string
	Check echoapi.HealthCheck
}

// Repositories is everything the database layer provides.
type Repositories struct {
	dig.Out

	Tx          core.TxRunner
	Users       user.Repository
	Courses     course.Repository
	PassCodes   passcode.Repository
	Progress    progress.Repository
	Revenue     revenue.Repository
	Enrollments enrollment.Repository
	Payments    payment.Repository
	Chat        chat.Repository
	Content     content.Repository

	Closer Closer      `group:"closers"`
	Health HealthCheck `group:"health"`
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New("API : ", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New("DB : ", conf)
}

func newValidator(conf *core.Config, logger core.Logger) (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	passcode.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)
	return validate, translator
}

// newRepositories opens PostgreSQL (created and migrated on the fly) or the in-memory database.
func newRepositories(conf *core.Config, dbLogger DBLoggerParam) Repositories {
	if conf.IsInMemory() {
		db := inmemdb.Open()
		dbLogger.Logger.Info("using the in-memory database")
		return Repositories{
			Tx:          inmemdb.NewTxRunner(db),
			Users:       inmemdb.NewUserRepository(db),
			Courses:     inmemdb.NewCourseRepository(db),
			PassCodes:   inmemdb.NewPassCodeRepository(db),
			Progress:    inmemdb.NewProgressRepository(db),
			Revenue:     inmemdb.NewRevenueRepository(db),
			Enrollments: inmemdb.NewEnrollmentRepository(db),
			Payments:    inmemdb.NewPaymentRepository(db),
			Chat:        inmemdb.NewChatRepository(db),
			Content:     inmemdb.NewContentRepository(db),
			Closer:      Closer{Name: "database", Close: func() error { return nil }},
			Health:      HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		dbLogger.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		dbLogger.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(db.DB); err != nil {
		dbLogger.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}

	return Repositories{
		Tx:          database.NewTxRunner(db),
		Users:       sqlxrepos.NewUserRepository(db),
		Courses:     sqlxrepos.NewCourseRepository(db),
		PassCodes:   sqlxrepos.NewPassCodeRepository(db),
		Progress:    sqlxrepos.NewProgressRepository(db),
		Revenue:     sqlxrepos.NewRevenueRepository(db),
		Enrollments: sqlxrepos.NewEnrollmentRepository(db),
		Payments:    sqlxrepos.NewPaymentRepository(db),
		Chat:        sqlxrepos.NewChatRepository(db),
		Content:     sqlxrepos.NewContentRepository(db),
		Closer:      Closer{Name: "database", Close: db.Close},
		Health:      HealthCheck{Name: "database", Check: db.PingContext},
	}
}

type RealtimeResult struct {
	dig.Out

	OTP    user.OTPStore
	Broker core.Broker

	Closer Closer      `group:"closers"`
	Health HealthCheck `group:"health"`
}

// newRealtime shares Redis between the OTP store and the chat broker. Without a Redis URL both
// stay in process, which only works with a single API instance.
func newRealtime(conf *core.Config, logger core.Logger) RealtimeResult {
	rc, err := redisclient.New(context.Background(), conf.Redis)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	if rc == nil {
		logger.Warn("REDIS_URL not set: OTPs and chat events stay in process")
		return RealtimeResult{
			OTP:    otpstore.NewMemoryStore(),
			Broker: realtime.NewLocalBroker(),
			Closer: Closer{Name: "redis", Close: func() error { return nil }},
			Health: HealthCheck{Name: "redis", Check: func(context.Context) error { return nil }},
		}
	}
	return RealtimeResult{
		OTP:    otpstore.NewRedisStore(rc.Client),
		Broker: realtime.NewRedisBroker(rc.Client),
		Closer: Closer{Name: "redis", Close: rc.Close},
		Health: HealthCheck{Name: "redis", Check: rc.Health},
	}
}

func newFileStorage(conf *core.Config, logger core.Logger) core.FileStorage {
	storage, err := objectstore.New(conf.Storage)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}
	return storage
}

func newReaper(storage core.FileStorage, conf *core.Config, logger core.Logger, m *metrics.Metrics) *jobs.Reaper {
	return jobs.NewReaper(storage, conf.Storage, logger, m)
}

// newScheduler registers the maintenance jobs; the caller starts it.
func newScheduler(conf *core.Config, logger core.Logger, m *metrics.Metrics, reaper *jobs.Reaper, progressSvc *progress.Service) (*jobs.Scheduler, error) {
	s := jobs.NewScheduler(logger, m)
	if err := jobs.Register(s, conf.Storage, reaper, progressSvc); err != nil {
		return nil, err
	}
	return s, nil
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Metrics    *metrics.Metrics
	Health     []HealthCheck `group:"health"`

	UserSvc       *user.Service
	CourseSvc     *course.Service
	ProgressSvc   *progress.Service
	PassCodeSvc   *passcode.Service
	RevenueSvc    *revenue.Service
	EnrollmentSvc *enrollment.Service
	PaymentSvc    *payment.Service
	ChatSvc       *chat.Service
	ContentSvc    *content.Service
	MediaSvc      *media.Service
}

func newServer(p ServerParams) *echoapi.Server {
	checks := make(map[string]echoapi.HealthCheck, len(p.Health))
	for _, hc := range p.Health {
		checks[hc.Name] = hc.Check
	}
	return echoapi.NewServer(echoapi.Options{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Metrics:       p.Metrics,
		HealthChecks:  checks,
		UserSvc:       p.UserSvc,
		CourseSvc:     p.CourseSvc,
		ProgressSvc:   p.ProgressSvc,
		PassCodeSvc:   p.PassCodeSvc,
		RevenueSvc:    p.RevenueSvc,
		EnrollmentSvc: p.EnrollmentSvc,
		PaymentSvc:    p.PaymentSvc,
		ChatSvc:       p.ChatSvc,
		ContentSvc:    p.ContentSvc,
		MediaSvc:      p.MediaSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// infrastructure
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newValidator))
	must(c.Provide(newRepositories))
	must(c.Provide(newRealtime))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newFileStorage))
	must(c.Provide(paymentsvc.NewGateway))
	must(c.Provide(metrics.New))

	// business
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(passcode.NewService))
	must(c.Provide(progress.NewService))
	must(c.Provide(revenue.NewService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(payment.NewService))
	must(c.Provide(chat.NewService))
	must(c.Provide(content.NewService))
	must(c.Provide(media.NewService))

	// entry points
	must(c.Provide(newReaper))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// Visualize writes the dependency graph in DOT format.
func Visualize(c *dig.Container) error {
	return dig.Visualize(c, os.Stdout)
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
