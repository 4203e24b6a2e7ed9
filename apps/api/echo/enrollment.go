package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core/enrollment"
)

type enrollmentApi struct {
	svc      *enrollment.Service
	validate *validator.Validate
}

// ApproveResponse carries the processed request and the credentials to hand to the student.
type ApproveResponse struct {
	Request     enrollment.Request     `json:"request"`
	Provisioned enrollment.Provisioned `json:"provisioned"`
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *enrollment.Service, validate *validator.Validate) {
	api := enrollmentApi{svc: svc, validate: validate}

	// submissions come in through the "public-enrollment" function
	eg := g.Group("/enrollments", jwt, adminMiddleware())
	eg.GET("", api.query)
	eg.GET("/:id", api.retrieve)
	eg.POST("/:id/approve", api.approve)
	eg.POST("/:id/reject", api.reject)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	filter := new(enrollment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Request{})
	}
	filter.Clean()

	reqs, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying enrollment requests")
	}
	if reqs == nil {
		reqs = []enrollment.Request{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	req, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *enrollmentApi) approve(ctx echo.Context) error {
	req, prov, err := api.svc.Approve(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving enrollment request")
	}
	return ctx.JSON(http.StatusOK, ApproveResponse{Request: req, Provisioned: prov})
}

func (api *enrollmentApi) reject(ctx echo.Context) error {
	var data enrollment.RejectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	if err != nil {
		return errors.Wrap(err, "rejecting enrollment request")
	}
	return ctx.JSON(http.StatusOK, req)
}
