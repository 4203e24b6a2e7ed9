package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/passcode"
)

type passCodeApi struct {
	svc      *passcode.Service
	validate *validator.Validate
}

func registerPassCodeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *passcode.Service, validate *validator.Validate) {
	api := passCodeApi{svc: svc, validate: validate}

	pg := g.Group("/passcodes", jwt)
	pg.POST("/redeem", api.redeem, studentMiddleware())

	ag := pg.Group("", adminMiddleware())
	ag.POST("", api.generate)
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id/courses", api.assignCourses)
	ag.PUT("/:id/student", api.assignStudent)
	ag.POST("/:id/activate", api.activate)
	ag.POST("/:id/deactivate", api.deactivate)
	ag.DELETE("/:id", api.destroy)
}

func (api *passCodeApi) generate(ctx echo.Context) error {
	var data passcode.GeneratePassCodes
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GeneratePassCodes")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	codes, err := api.svc.Generate(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "generating pass codes")
	}
	return ctx.JSON(http.StatusCreated, codes)
}

func (api *passCodeApi) query(ctx echo.Context) error {
	filter := new(passcode.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []passcode.PassCode{})
	}
	filter.Clean()

	codes, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying pass codes")
	}
	if codes == nil {
		codes = []passcode.PassCode{}
	}
	return ctx.JSON(http.StatusOK, codes)
}

func (api *passCodeApi) retrieve(ctx echo.Context) error {
	pc, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting pass code")
	}
	return ctx.JSON(http.StatusOK, pc)
}

func (api *passCodeApi) assignCourses(ctx echo.Context) error {
	var data passcode.AssignCourses
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignCourses")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pc, err := api.svc.AssignCourses(ctx.Request().Context(), ctx.Param("id"), data.CourseIDs)
	if err != nil {
		return errors.Wrap(err, "assigning courses")
	}
	return ctx.JSON(http.StatusOK, pc)
}

func (api *passCodeApi) assignStudent(ctx echo.Context) error {
	var data passcode.AssignStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignStudent")
	}
	data.StudentID = core.CleanString(data.StudentID)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	pc, err := api.svc.AssignStudent(ctx.Request().Context(), ctx.Param("id"), data.StudentID)
	if err != nil {
		return errors.Wrap(err, "assigning student")
	}
	return ctx.JSON(http.StatusOK, pc)
}

func (api *passCodeApi) activate(ctx echo.Context) error {
	return api.setActive(ctx, true)
}

func (api *passCodeApi) deactivate(ctx echo.Context) error {
	return api.setActive(ctx, false)
}

func (api *passCodeApi) setActive(ctx echo.Context, active bool) error {
	pc, err := api.svc.SetActive(ctx.Request().Context(), ctx.Param("id"), active)
	if err != nil {
		return errors.Wrap(err, "setting active")
	}
	return ctx.JSON(http.StatusOK, pc)
}

func (api *passCodeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting pass code")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *passCodeApi) redeem(ctx echo.Context) error {
	var data passcode.Redeem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Redeem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pc, err := api.svc.Redeem(ctx.Request().Context(), getActor(ctx).ID, data.Code)
	if err != nil {
		return errors.Wrap(err, "redeeming pass code")
	}
	return ctx.JSON(http.StatusOK, pc)
}
