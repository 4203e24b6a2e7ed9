package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/revenue"
)

type revenueApi struct {
	svc      *revenue.Service
	validate *validator.Validate
}

func registerRevenueAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *revenue.Service, validate *validator.Validate) {
	api := revenueApi{svc: svc, validate: validate}

	// teachers only ever see their own ledger
	rg := g.Group("/revenue", jwt, teacherMiddleware())
	rg.GET("/records", api.queryRecords)
	rg.POST("/records", api.recordManual, adminMiddleware())
	rg.GET("/summary", api.summary)
	rg.GET("/totals", api.agencyTotals, adminMiddleware())

	wg := g.Group("/withdrawals", jwt, teacherMiddleware())
	wg.POST("", api.requestWithdrawal)
	wg.GET("", api.queryWithdrawals)
	wg.GET("/:id", api.retrieveWithdrawal)
	wg.PUT("/:id", api.processWithdrawal, adminMiddleware())

	pg := g.Group("/paid-works", jwt, teacherMiddleware())
	pg.POST("", api.createPaidWork, adminMiddleware())
	pg.GET("", api.queryPaidWorks)
	pg.GET("/:id", api.retrievePaidWork)
	pg.PUT("/:id/status", api.updatePaidWorkStatus, adminMiddleware())
}

// scopedTeacher returns the teacher whose data the actor may read: themselves unless admin.
func scopedTeacher(actor core.Actor, requested string) string {
	if actor.Admin {
		return requested
	}
	return actor.ID
}

// Records

func (api *revenueApi) queryRecords(ctx echo.Context) error {
	filter := new(revenue.RecordFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []revenue.Record{})
	}
	filter.Clean()
	filter.TeacherID = scopedTeacher(getActor(ctx), filter.TeacherID)

	records, err := api.svc.QueryRecords(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying revenue records")
	}
	if records == nil {
		records = []revenue.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *revenueApi) recordManual(ctx echo.Context) error {
	var data revenue.NewManualRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewManualRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.RecordManual(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording manual revenue")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *revenueApi) summary(ctx echo.Context) error {
	teacherID := scopedTeacher(getActor(ctx), core.CleanString(ctx.QueryParam("teacher")))
	if teacherID == "" {
		return core.NewFieldError("teacher", "this field is required")
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), teacherID)
	if err != nil {
		return errors.Wrap(err, "computing revenue summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *revenueApi) agencyTotals(ctx echo.Context) error {
	totals, err := api.svc.AgencyTotals(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing agency totals")
	}
	return ctx.JSON(http.StatusOK, totals)
}

// Withdrawals

func (api *revenueApi) requestWithdrawal(ctx echo.Context) error {
	var data revenue.NewWithdrawal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWithdrawal")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	w, err := api.svc.RequestWithdrawal(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "requesting withdrawal")
	}
	return ctx.JSON(http.StatusCreated, w)
}

func (api *revenueApi) queryWithdrawals(ctx echo.Context) error {
	filter := new(revenue.WithdrawalFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []revenue.Withdrawal{})
	}
	filter.Clean()
	filter.TeacherID = scopedTeacher(getActor(ctx), filter.TeacherID)

	ws, err := api.svc.QueryWithdrawals(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying withdrawals")
	}
	if ws == nil {
		ws = []revenue.Withdrawal{}
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *revenueApi) retrieveWithdrawal(ctx echo.Context) error {
	w, err := api.svc.GetWithdrawal(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting withdrawal")
	}
	if !getActor(ctx).CanManage(w.TeacherID) {
		return revenue.ErrWithdrawalNotFound
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *revenueApi) processWithdrawal(ctx echo.Context) error {
	var data revenue.ProcessWithdrawal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProcessWithdrawal")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	w, err := api.svc.ProcessWithdrawal(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "processing withdrawal")
	}
	return ctx.JSON(http.StatusOK, w)
}

// Paid works

func (api *revenueApi) createPaidWork(ctx echo.Context) error {
	var data revenue.NewPaidWork
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPaidWork")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pw, err := api.svc.CreatePaidWork(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating paid work")
	}
	return ctx.JSON(http.StatusCreated, pw)
}

func (api *revenueApi) queryPaidWorks(ctx echo.Context) error {
	filter := new(revenue.PaidWorkFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []revenue.PaidWork{})
	}
	filter.Clean()
	filter.TeacherID = scopedTeacher(getActor(ctx), filter.TeacherID)

	works, err := api.svc.QueryPaidWorks(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying paid works")
	}
	if works == nil {
		works = []revenue.PaidWork{}
	}
	return ctx.JSON(http.StatusOK, works)
}

func (api *revenueApi) retrievePaidWork(ctx echo.Context) error {
	pw, err := api.svc.GetPaidWork(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting paid work")
	}
	if !getActor(ctx).CanManage(pw.TeacherID) {
		return revenue.ErrPaidWorkNotFound
	}
	return ctx.JSON(http.StatusOK, pw)
}

func (api *revenueApi) updatePaidWorkStatus(ctx echo.Context) error {
	var data revenue.UpdatePaidWorkStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePaidWorkStatus")
	}
	data.Status = core.CleanString(data.Status, true /* lower */)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	pw, err := api.svc.UpdatePaidWorkStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "updating paid work status")
	}
	return ctx.JSON(http.StatusOK, pw)
}
