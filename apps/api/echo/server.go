package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

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
	"github.com/alphazero/academy/services/media"
	"github.com/alphazero/academy/services/metrics"
)

const bodyLimit = "25M"

type (
	// HealthCheck reports whether a backing service (database, redis, ...) is reachable.
	HealthCheck func(ctx context.Context) error

	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Metrics        *metrics.Metrics // optional
		DisableReqLogs bool
		HealthChecks   map[string]HealthCheck

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

	Server struct {
		opts     Options
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.opts.Metrics != nil {
		s.app.Use(metricsMiddleware(s.opts.Metrics))
	}
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.AllowedOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: conf.Server.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	s.app.Use(middleware.BodyLimit(bodyLimit))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)
	if conf.Storage.Driver == "local" {
		s.app.Static("/media", conf.Storage.LocalDir)
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf, "header:"+echo.HeaderAuthorization))
	optJwt := optionalJWT(conf)
	wsJwt := middleware.JWTWithConfig(jwtConfig(conf, "query:token"))

	registerAuthAPI(v1, jwt, conf, s.opts.UserSvc, s.opts.Validate)
	registerUserAPI(v1, jwt, s.opts.UserSvc, s.opts.MediaSvc, s.opts.Validate, s.opts.Logger)
	registerCourseAPI(v1, jwt, optJwt, s.opts.CourseSvc, s.opts.ProgressSvc, s.opts.MediaSvc, s.opts.Validate, s.opts.Logger)
	registerProgressAPI(v1, jwt, s.opts.ProgressSvc, s.opts.PassCodeSvc)
	registerPassCodeAPI(v1, jwt, s.opts.PassCodeSvc, s.opts.Validate)
	registerRevenueAPI(v1, jwt, s.opts.RevenueSvc, s.opts.Validate)
	registerEnrollmentAPI(v1, jwt, s.opts.EnrollmentSvc, s.opts.Validate)
	registerPaymentAPI(v1, jwt, s.opts.PaymentSvc, s.opts.Validate, s.opts.Logger)
	registerChatAPI(v1, jwt, wsJwt, s.opts.ChatSvc, s.opts.Validate, conf, s.opts.Logger, s.opts.Metrics)
	registerContentAPI(v1, jwt, optJwt, s.opts.ContentSvc, s.opts.Validate)
	registerUploadAPI(v1, jwt, s.opts.MediaSvc)
	registerFunctionAPI(v1, jwt, s.opts.UserSvc, s.opts.EnrollmentSvc, s.opts.Validate, s.opts.Translator)
	registerDashboardAPI(v1, jwt, dashboardDeps{
		users:       s.opts.UserSvc,
		courses:     s.opts.CourseSvc,
		progress:    s.opts.ProgressSvc,
		passcodes:   s.opts.PassCodeSvc,
		revenue:     s.opts.RevenueSvc,
		enrollments: s.opts.EnrollmentSvc,
	})
}

// Start listens on Server.Address; a listening failure is sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}

func (s *Server) health(ctx echo.Context) error {
	status := make(map[string]string, len(s.opts.HealthChecks))
	code := http.StatusOK
	for name, check := range s.opts.HealthChecks {
		if err := check(ctx.Request().Context()); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	return ctx.JSON(code, status)
}
