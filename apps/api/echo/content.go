package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/content"
)

type contentApi struct {
	svc      *content.Service
	validate *validator.Validate
}

func registerContentAPI(g *echo.Group, jwt, optJwt echo.MiddlewareFunc, svc *content.Service, validate *validator.Validate) {
	api := contentApi{svc: svc, validate: validate}

	// public site; admins may pass ?all=true to include hidden entries
	pg := g.Group("/content", optJwt)
	pg.GET("/team", api.listTeamMembers)
	pg.GET("/works", api.listWorks)
	pg.GET("/services", api.listOfferings)
	pg.GET("/footer", api.footer)
	pg.GET("/settings", api.settings)
	pg.GET("/pages/:page", api.pageSections)

	ag := g.Group("/content", jwt, adminMiddleware())
	ag.POST("/team", api.createTeamMember)
	ag.PUT("/team/:id", api.updateTeamMember)
	ag.DELETE("/team/:id", api.destroyTeamMember)

	ag.POST("/works", api.createWork)
	ag.PUT("/works/:id", api.updateWork)
	ag.DELETE("/works/:id", api.destroyWork)

	ag.POST("/services", api.createOffering)
	ag.PUT("/services/:id", api.updateOffering)
	ag.DELETE("/services/:id", api.destroyOffering)

	ag.GET("/footer/links", api.listFooterLinks)
	ag.POST("/footer/links", api.createFooterLink)
	ag.PUT("/footer/links/:id", api.updateFooterLink)
	ag.DELETE("/footer/links/:id", api.destroyFooterLink)

	ag.PUT("/settings", api.setSetting)
	ag.DELETE("/settings/:key", api.destroySetting)

	ag.GET("/pages", api.listPageSections)
	ag.PUT("/pages", api.setPageSection)
}

// showAll reports whether hidden entries were requested by an admin.
func showAll(ctx echo.Context) bool {
	return getActor(ctx).Admin && queryBool(ctx, "all", false)
}

// Team

func (api *contentApi) listTeamMembers(ctx echo.Context) error {
	members, err := api.svc.ListTeamMembers(ctx.Request().Context(), !showAll(ctx))
	if err != nil {
		return errors.Wrap(err, "listing team members")
	}
	if members == nil {
		members = []content.TeamMember{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *contentApi) createTeamMember(ctx echo.Context) error {
	var data content.TeamMemberInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeamMemberInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tm, err := api.svc.CreateTeamMember(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating team member")
	}
	return ctx.JSON(http.StatusCreated, tm)
}

func (api *contentApi) updateTeamMember(ctx echo.Context) error {
	var data content.TeamMemberInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeamMemberInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tm, err := api.svc.UpdateTeamMember(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating team member")
	}
	return ctx.JSON(http.StatusOK, tm)
}

func (api *contentApi) destroyTeamMember(ctx echo.Context) error {
	if err := api.svc.DeleteTeamMember(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting team member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Works

func (api *contentApi) listWorks(ctx echo.Context) error {
	category := core.CleanString(ctx.QueryParam("category"), true /* lower */)
	works, err := api.svc.ListWorks(ctx.Request().Context(), !showAll(ctx), category)
	if err != nil {
		return errors.Wrap(err, "listing works")
	}
	if works == nil {
		works = []content.Work{}
	}
	return ctx.JSON(http.StatusOK, works)
}

func (api *contentApi) createWork(ctx echo.Context) error {
	var data content.WorkInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WorkInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	w, err := api.svc.CreateWork(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating work")
	}
	return ctx.JSON(http.StatusCreated, w)
}

func (api *contentApi) updateWork(ctx echo.Context) error {
	var data content.WorkInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WorkInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	w, err := api.svc.UpdateWork(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating work")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *contentApi) destroyWork(ctx echo.Context) error {
	if err := api.svc.DeleteWork(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting work")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Services

func (api *contentApi) listOfferings(ctx echo.Context) error {
	offerings, err := api.svc.ListOfferings(ctx.Request().Context(), !showAll(ctx))
	if err != nil {
		return errors.Wrap(err, "listing services")
	}
	if offerings == nil {
		offerings = []content.Offering{}
	}
	return ctx.JSON(http.StatusOK, offerings)
}

func (api *contentApi) createOffering(ctx echo.Context) error {
	var data content.OfferingInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OfferingInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	o, err := api.svc.CreateOffering(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating service")
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *contentApi) updateOffering(ctx echo.Context) error {
	var data content.OfferingInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OfferingInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	o, err := api.svc.UpdateOffering(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating service")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *contentApi) destroyOffering(ctx echo.Context) error {
	if err := api.svc.DeleteOffering(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting service")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Footer

func (api *contentApi) footer(ctx echo.Context) error {
	sections, err := api.svc.FooterSections(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing footer sections")
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *contentApi) listFooterLinks(ctx echo.Context) error {
	links, err := api.svc.ListFooterLinks(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing footer links")
	}
	if links == nil {
		links = []content.FooterLink{}
	}
	return ctx.JSON(http.StatusOK, links)
}

func (api *contentApi) createFooterLink(ctx echo.Context) error {
	var data content.FooterLinkInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FooterLinkInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fl, err := api.svc.CreateFooterLink(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating footer link")
	}
	return ctx.JSON(http.StatusCreated, fl)
}

func (api *contentApi) updateFooterLink(ctx echo.Context) error {
	var data content.FooterLinkInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FooterLinkInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fl, err := api.svc.UpdateFooterLink(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating footer link")
	}
	return ctx.JSON(http.StatusOK, fl)
}

func (api *contentApi) destroyFooterLink(ctx echo.Context) error {
	if err := api.svc.DeleteFooterLink(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting footer link")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Settings

func (api *contentApi) settings(ctx echo.Context) error {
	settings, err := api.svc.Settings(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}

func (api *contentApi) setSetting(ctx echo.Context) error {
	var data content.SettingInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SettingInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.SetSetting(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "setting setting")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *contentApi) destroySetting(ctx echo.Context) error {
	if err := api.svc.DeleteSetting(ctx.Request().Context(), ctx.Param("key")); err != nil {
		return errors.Wrap(err, "deleting setting")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Pages

func (api *contentApi) pageSections(ctx echo.Context) error {
	sections, err := api.svc.PageSections(ctx.Request().Context(), core.CleanString(ctx.Param("page"), true /* lower */))
	if err != nil {
		return errors.Wrap(err, "listing page sections")
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *contentApi) listPageSections(ctx echo.Context) error {
	sections, err := api.svc.ListPageSections(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing page sections")
	}
	if sections == nil {
		sections = []content.PageSection{}
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *contentApi) setPageSection(ctx echo.Context) error {
	var data content.PageSectionInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PageSectionInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ps, err := api.svc.SetPageSection(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "setting page section")
	}
	return ctx.JSON(http.StatusOK, ps)
}
