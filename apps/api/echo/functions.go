package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core/enrollment"
	"github.com/alphazero/academy/core/user"
)

// functionsApi serves the privileged operations the dashboards and the public site invoke by
// name. Every response is {"success": true, ...} or {"error": "..."}.
type functionsApi struct {
	users       *user.Service
	enrollments *enrollment.Service
	validate    *validator.Validate
}

func registerFunctionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	userSvc *user.Service,
	enrollmentSvc *enrollment.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := functionsApi{users: userSvc, enrollments: enrollmentSvc, validate: validate}

	fg := g.Group("/functions", functionErrorsMiddleware(translator))
	fg.POST("/send-otp", api.sendOTP)
	fg.POST("/public-enrollment", api.publicEnrollment)
	fg.POST("/create-student", api.createStudent, jwt, adminMiddleware())
	fg.POST("/create-admin", api.createAdmin, jwt, adminMiddleware())
}

func (api *functionsApi) sendOTP(ctx echo.Context) error {
	var data PasswordResetRequest // just an email
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.users.SendOTP(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "sending otp")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *functionsApi) publicEnrollment(ctx echo.Context) error {
	var data enrollment.PublicEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PublicEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.enrollments.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting enrollment")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "request_id": req.ID})
}

func (api *functionsApi) createStudent(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prov, err := api.enrollments.Provision(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "provisioning student")
	}
	res := echo.Map{"success": true, "user": prov.Student}
	if prov.Password != "" {
		res["password"] = prov.Password
	}
	if prov.PassCode != nil {
		res["pass_code"] = prov.PassCode
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *functionsApi) createAdmin(ctx echo.Context) error {
	var data user.NewAdmin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAdmin")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.users.CreateAdmin(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating admin")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "user": usr})
}
