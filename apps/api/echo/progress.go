package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/progress"
)

type progressApi struct {
	svc       *progress.Service
	passcodes *passcode.Service
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *progress.Service, passcodeSvc *passcode.Service) {
	api := progressApi{svc: svc, passcodes: passcodeSvc}

	g.POST("/videos/:id/progress", api.record, jwt)
	g.GET("/progress", api.overview, jwt, studentMiddleware())

	cg := g.Group("/certificates")
	cg.GET("", api.listCertificates, jwt)
	// public verification
	cg.GET("/:number", api.retrieveCertificate)
}

func (api *progressApi) record(ctx echo.Context) error {
	var data progress.RecordProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordProgress")
	}

	res, err := api.svc.Record(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "recording progress")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *progressApi) overview(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	actor := getActor(ctx)

	courseIDs, err := api.passcodes.AccessibleCourseIDs(rctx, actor.ID)
	if err != nil {
		return errors.Wrap(err, "listing accessible courses")
	}
	overview, err := api.svc.Overview(rctx, actor.ID, courseIDs)
	if err != nil {
		return errors.Wrap(err, "computing progress overview")
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (api *progressApi) listCertificates(ctx echo.Context) error {
	certs, err := api.svc.ListCertificates(ctx.Request().Context(), getActor(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	if certs == nil {
		certs = []progress.Certificate{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *progressApi) retrieveCertificate(ctx echo.Context) error {
	cert, err := api.svc.GetCertificate(ctx.Request().Context(), ctx.Param("number"))
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}
