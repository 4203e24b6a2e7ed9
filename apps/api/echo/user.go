package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/user"
	"github.com/alphazero/academy/services/media"
)

var (
	errUsrNotFoundInCtx  = errors.New("user object not found in echo.Context")
	errNoPermsToSetRoles = "not enough rights to set these roles"
)

const objectContextKey = "object"

type userApi struct {
	svc      *user.Service
	media    *media.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *user.Service,
	mediaSvc *media.Service,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := userApi{svc: svc, media: mediaSvc, validate: validate, logger: logger}

	// public teacher sign-up
	tg := g.Group("/teachers")
	tg.POST("/apply", api.applyAsTeacher)
	tg.POST("/:id/approve", api.approveTeacher, jwt, adminMiddleware())
	tg.POST("/:id/revoke", api.revokeTeacher, jwt, adminMiddleware())

	ug := g.Group("/users", jwt)
	ug.POST("", api.create, adminMiddleware())
	ug.GET("", api.query, adminMiddleware())
	ug.DELETE("", api.destroyMultiple, adminMiddleware())
	ug.GET("/roles", api.queryRoles, adminMiddleware())

	// detail endpoints
	dg := ug.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.PUT("/avatar", api.setAvatar)
	dg.POST("/activate", api.activate, adminMiddleware())
	dg.POST("/deactivate", api.deactivate, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(claims.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNoPermsToSetRoles})
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) applyAsTeacher(ctx echo.Context) error {
	var data user.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.ApplyAsTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "applying as teacher")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) approveTeacher(ctx echo.Context) error {
	return api.setTeacherApproval(ctx, true)
}

func (api *userApi) revokeTeacher(ctx echo.Context) error {
	return api.setTeacherApproval(ctx, false)
}

func (api *userApi) setTeacherApproval(ctx echo.Context, approved bool) error {
	usr, err := api.svc.SetTeacherApproval(ctx.Request().Context(), ctx.Param("id"), approved)
	if err != nil {
		return errors.Wrap(err, "setting teacher approval")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()

	users, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get(objectContextKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get(objectContextKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin {
		// `IsActive`, `Roles` and `Email` can only be changed by admin
		if data.IsActive != nil || data.Roles != nil || (data.Email != "" && data.Email != usr.Email) {
			return errHttpForbidden
		}
	}

	if err := data.Validate(usr, api.validate); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(claims.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNoPermsToSetRoles})
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setAvatar(ctx echo.Context) error {
	usr, ok := ctx.Get(objectContextKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	file, _, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer file.Close()

	rctx := ctx.Request().Context()
	upload, err := api.media.UploadImage(rctx, media.KindAvatar, file)
	if err != nil {
		return errors.Wrap(err, "uploading avatar")
	}
	updated, err := api.svc.SetAvatar(rctx, usr.ID, upload.URL)
	if err != nil {
		return errors.Wrap(err, "setting avatar")
	}
	if usr.AvatarURL != "" {
		if err := api.media.Discard(rctx, usr.AvatarURL); err != nil {
			api.logger.Warn(fmt.Sprintf("%+v", errors.Wrap(err, "discarding previous avatar")), err)
		}
	}
	return ctx.JSON(http.StatusOK, updated)
}

func (api *userApi) activate(ctx echo.Context) error {
	return api.setActive(ctx, true)
}

func (api *userApi) deactivate(ctx echo.Context) error {
	return api.setActive(ctx, false)
}

func (api *userApi) setActive(ctx echo.Context, active bool) error {
	usr, ok := ctx.Get(objectContextKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !active && usr.ID == claims.Subject {
		return errHttpForbidden
	}

	usr, err = api.svc.SetActive(ctx.Request().Context(), usr.ID, active)
	if err != nil {
		return errors.Wrap(err, "setting active")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get(objectContextKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if usr.ID == claims.Subject {
		return errHttpForbidden
	}

	if _, err := api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	for _, id := range query.IDs {
		if id == claims.Subject {
			return errHttpForbidden
		}
	}

	if _, err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

// ctxUserOrAdminMiddleware loads the user of the :id param into the context when the caller is
// that user or an admin.
func ctxUserOrAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			if ctx.Param("id") == claims.Subject || claims.IsAdmin {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set(objectContextKey, usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}
