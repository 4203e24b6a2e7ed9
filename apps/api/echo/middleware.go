package echoapi

import (
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/services/metrics"
)

// roleMiddleware lets the request through when the claims satisfy allowed.
func roleMiddleware(allowed func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(c Claims) bool { return c.IsAdmin })
}

// teacherMiddleware also admits admins.
func teacherMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(c Claims) bool { return c.IsAdmin || c.IsTeacher })
}

func studentMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(c Claims) bool { return c.IsStudent })
}

// metricsMiddleware records the count and latency of requests by route pattern.
func metricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// resolve the status code now; the error handler runs after us
				ctx.Error(err)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}

// functionErrorsMiddleware flattens validation errors into a single {error} message, the
// contract of the /functions endpoints.
func functionErrorsMiddleware(translator ut.Translator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			err := next(ctx)
			if err == nil {
				return nil
			}
			switch verr := errors.Cause(err).(type) {
			case validator.ValidationErrors:
				if len(verr) > 0 {
					return echo.NewHTTPError(http.StatusBadRequest, verr[0].Translate(translator))
				}
			case *core.ValidationError:
				return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
			}
			return err
		}
	}
}
