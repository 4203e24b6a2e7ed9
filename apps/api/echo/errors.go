package echoapi

import (
	"net/http"
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

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
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden  = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainErrors maps the sentinel errors of the services to HTTP status codes.
// Their message is returned as is.
var domainErrors = map[error]int{
	core.ErrForbidden: http.StatusForbidden,

	user.ErrNotFound:       http.StatusNotFound,
	user.ErrEmailExists:    http.StatusBadRequest,
	user.ErrAuthFailed:     http.StatusBadRequest,
	user.ErrDeactivated:    http.StatusForbidden,
	user.ErrInvalidOTP:     http.StatusBadRequest,
	user.ErrTooManyOTPTry:  http.StatusTooManyRequests,
	user.ErrNotApplicant:   http.StatusBadRequest,
	user.ErrAccountMissing: http.StatusBadRequest,

	course.ErrNotFound:         http.StatusNotFound,
	course.ErrVideoNotFound:    http.StatusNotFound,
	course.ErrMaterialNotFound: http.StatusNotFound,

	passcode.ErrNotFound:  http.StatusNotFound,
	passcode.ErrCodeTaken: http.StatusConflict,
	passcode.ErrInactive:  http.StatusBadRequest,

	progress.ErrNoAccess:            http.StatusForbidden,
	progress.ErrCertificateNotFound: http.StatusNotFound,

	revenue.ErrRecordNotFound:      http.StatusNotFound,
	revenue.ErrPaidWorkNotFound:    http.StatusNotFound,
	revenue.ErrWithdrawalNotFound:  http.StatusNotFound,
	revenue.ErrInsufficientBalance: http.StatusBadRequest,
	revenue.ErrInvalidTransition:   http.StatusConflict,
	revenue.ErrAlreadyRecorded:     http.StatusConflict,

	enrollment.ErrNotFound:         http.StatusNotFound,
	enrollment.ErrAlreadyProcessed: http.StatusConflict,

	payment.ErrNotFound:         http.StatusNotFound,
	payment.ErrInvalidSignature: http.StatusUnauthorized,
	payment.ErrAmountMismatch:   http.StatusBadRequest,
	payment.ErrAlreadyOwned:     http.StatusConflict,
	payment.ErrNotForSale:       http.StatusBadRequest,
	payment.ErrGatewayDisabled:  http.StatusServiceUnavailable,

	chat.ErrRoomNotFound: http.StatusNotFound,
	chat.ErrNotMember:    http.StatusForbidden,

	content.ErrTeamMemberNotFound: http.StatusNotFound,
	content.ErrWorkNotFound:       http.StatusNotFound,
	content.ErrOfferingNotFound:   http.StatusNotFound,
	content.ErrFooterLinkNotFound: http.StatusNotFound,
	content.ErrSettingNotFound:    http.StatusNotFound,

	media.ErrUnsupportedType: http.StatusUnsupportedMediaType,
	media.ErrTooLarge:        http.StatusRequestEntityTooLarge,
	media.ErrEmptyFile:       http.StatusBadRequest,
	media.ErrUnknownKind:     http.StatusBadRequest,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := httpError(err, translator)

		if code == http.StatusInternalServerError {
			logger.Error(
				http.StatusText(code),
				errors.Wrap(err, http.StatusText(code)),
				getActor(ctx),
				map[string]interface{}{"method": ctx.Request().Method, "path": ctx.Path()},
			)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// httpError turns err into a status code and a response message: either a string or a
// {field: message} map for validation errors.
func httpError(err error, translator ut.Translator) (int, interface{}) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, origErr.Message
		}
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return http.StatusBadRequest, fldErrs
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, origErr.Error()
	default:
		if origErr == nil || !reflect.TypeOf(origErr).Comparable() {
			break
		}
		if code, ok := domainErrors[origErr]; ok {
			return code, origErr.Error()
		}
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
