package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/payment"
)

type paymentApi struct {
	svc      *payment.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *payment.Service, validate *validator.Validate, logger core.Logger) {
	api := paymentApi{svc: svc, validate: validate, logger: logger}

	pg := g.Group("/payments")
	// posted by the gateway; trust comes from the signature
	pg.POST("/notification", api.notify)
	pg.POST("/checkout", api.checkout, jwt, studentMiddleware())
	pg.GET("", api.query, jwt)
}

func (api *paymentApi) checkout(ctx echo.Context) error {
	var data payment.CheckoutRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckoutRequest")
	}
	data.CourseID = core.CleanString(data.CourseID)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	p, err := api.svc.Checkout(ctx.Request().Context(), getActor(ctx), data.CourseID)
	if err != nil {
		return errors.Wrap(err, "checking out")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *paymentApi) notify(ctx echo.Context) error {
	var data payment.Notification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Notification")
	}

	p, err := api.svc.HandleNotification(ctx.Request().Context(), data)
	if err != nil {
		api.logger.Warn(fmt.Sprintf("payment notification for order %q: %v", data.OrderID, err))
		return errors.Wrap(err, "handling payment notification")
	}
	return ctx.JSON(http.StatusOK, echoMapStatus(p))
}

func (api *paymentApi) query(ctx echo.Context) error {
	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []payment.Payment{})
	}
	filter.StudentID = core.CleanString(filter.StudentID)
	filter.CourseID = core.CleanString(filter.CourseID)
	filter.Status = core.CleanString(filter.Status, true /* lower */)
	if actor := getActor(ctx); !actor.Admin {
		filter.StudentID = actor.ID
	}

	payments, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func echoMapStatus(p payment.Payment) echo.Map {
	return echo.Map{"order_id": p.OrderID, "status": p.Status}
}
