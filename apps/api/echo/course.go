package echoapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/progress"
	"github.com/alphazero/academy/services/media"
)

type courseApi struct {
	svc      *course.Service
	progress *progress.Service
	media    *media.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerCourseAPI(
	g *echo.Group,
	jwt, optJwt echo.MiddlewareFunc,
	svc *course.Service,
	progressSvc *progress.Service,
	mediaSvc *media.Service,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := courseApi{svc: svc, progress: progressSvc, media: mediaSvc, validate: validate, logger: logger}

	cg := g.Group("/courses")
	// created first: Group.Use registers catch-all routes on the prefix
	ag := cg.Group("", jwt)

	// the catalog is public; a token widens what is visible
	cg.GET("", api.query, optJwt)
	cg.GET("/:id", api.retrieve, optJwt)

	ag.POST("", api.create, teacherMiddleware())
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/publish", api.publish)
	ag.POST("/:id/unpublish", api.unpublish)
	ag.POST("/:id/approve", api.approve, adminMiddleware())
	ag.POST("/:id/reject", api.reject, adminMiddleware())
	ag.PUT("/:id/thumbnail", api.setThumbnail)
	ag.GET("/:id/videos", api.listVideos)
	ag.POST("/:id/videos", api.addVideo)
	ag.PUT("/:id/videos/order", api.reorderVideos)
	ag.GET("/:id/progress", api.courseProgress)

	vg := g.Group("/videos/:id", jwt)
	vg.PUT("", api.updateVideo)
	vg.DELETE("", api.destroyVideo)
	vg.GET("/materials", api.listMaterials)
	vg.POST("/materials", api.addMaterial)
	vg.POST("/materials/upload", api.uploadMaterial)

	mg := g.Group("/materials/:id", jwt)
	mg.PUT("", api.updateMaterial)
	mg.DELETE("", api.destroyMaterial)
}

// Courses

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()

	courses, err := api.svc.Query(ctx.Request().Context(), getActor(ctx), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.View(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "viewing course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), getActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) publish(ctx echo.Context) error {
	return api.setPublished(ctx, true)
}

func (api *courseApi) unpublish(ctx echo.Context) error {
	return api.setPublished(ctx, false)
}

func (api *courseApi) setPublished(ctx echo.Context, published bool) error {
	c, err := api.svc.SetPublished(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), published)
	if err != nil {
		return errors.Wrap(err, "setting published")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) approve(ctx echo.Context) error {
	return api.setApproval(ctx, true)
}

func (api *courseApi) reject(ctx echo.Context) error {
	return api.setApproval(ctx, false)
}

func (api *courseApi) setApproval(ctx echo.Context, approved bool) error {
	c, err := api.svc.SetApproval(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), approved)
	if err != nil {
		return errors.Wrap(err, "setting approval")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) setThumbnail(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	actor := getActor(ctx)

	// check the rights before storing anything
	c, err := api.managedCourse(rctx, actor, ctx.Param("id"))
	if err != nil {
		return err
	}

	file, _, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer file.Close()

	upload, err := api.media.UploadImage(rctx, media.KindThumbnail, file)
	if err != nil {
		return errors.Wrap(err, "uploading thumbnail")
	}
	updated, err := api.svc.SetThumbnail(rctx, actor, c.ID, upload.URL)
	if err != nil {
		return errors.Wrap(err, "setting thumbnail")
	}
	api.discard(rctx, c.ThumbnailURL)
	return ctx.JSON(http.StatusOK, updated)
}

// Videos

func (api *courseApi) listVideos(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	c, err := api.accessibleCourse(rctx, getActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}

	videos, err := api.svc.ListVideos(rctx, c.ID, true)
	if err != nil {
		return errors.Wrap(err, "listing videos")
	}
	if videos == nil {
		videos = []course.Video{}
	}
	return ctx.JSON(http.StatusOK, videos)
}

func (api *courseApi) addVideo(ctx echo.Context) error {
	var data course.NewVideo
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVideo")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	v, err := api.svc.AddVideo(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding video")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *courseApi) reorderVideos(ctx echo.Context) error {
	var data course.ReorderVideos
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderVideos")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	videos, err := api.svc.ReorderVideos(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data.VideoIDs)
	if err != nil {
		return errors.Wrap(err, "reordering videos")
	}
	return ctx.JSON(http.StatusOK, videos)
}

func (api *courseApi) updateVideo(ctx echo.Context) error {
	var data course.UpdateVideo
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateVideo")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	v, err := api.svc.UpdateVideo(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating video")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *courseApi) destroyVideo(ctx echo.Context) error {
	if err := api.svc.DeleteVideo(ctx.Request().Context(), getActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting video")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) courseProgress(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	actor := getActor(ctx)
	c, err := api.accessibleCourse(rctx, actor, ctx.Param("id"))
	if err != nil {
		return err
	}

	cp, err := api.progress.CourseProgress(rctx, actor.ID, c)
	if err != nil {
		return errors.Wrap(err, "computing course progress")
	}
	return ctx.JSON(http.StatusOK, cp)
}

// Materials

func (api *courseApi) listMaterials(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	v, err := api.svc.GetVideo(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting video")
	}
	if _, err = api.accessibleCourse(rctx, getActor(ctx), v.CourseID); err != nil {
		return err
	}

	materials, err := api.svc.ListMaterials(rctx, v.ID)
	if err != nil {
		return errors.Wrap(err, "listing materials")
	}
	if materials == nil {
		materials = []course.Material{}
	}
	return ctx.JSON(http.StatusOK, materials)
}

func (api *courseApi) addMaterial(ctx echo.Context) error {
	var data course.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.AddMaterial(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding material")
	}
	return ctx.JSON(http.StatusCreated, m)
}

// uploadMaterial stores a pdf/doc(x) file and attaches it to the video in one go.
// The multipart form carries "file" and "title".
func (api *courseApi) uploadMaterial(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	actor := getActor(ctx)

	v, err := api.svc.GetVideo(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting video")
	}
	if _, err = api.managedCourse(rctx, actor, v.CourseID); err != nil {
		return err
	}

	file, fh, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer file.Close()

	title := core.CleanString(ctx.FormValue("title"))
	if title == "" {
		title = fh.Filename
	}

	upload, err := api.media.UploadDocument(rctx, fh.Filename, file)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	materialType := course.MaterialDoc
	if upload.ContentType == "application/pdf" {
		materialType = course.MaterialPDF
	}
	data := course.NewMaterial{Title: title, MaterialType: materialType, MaterialURL: upload.URL}
	if err := data.Validate(api.validate); err != nil {
		api.discard(rctx, upload.URL)
		return err
	}

	m, err := api.svc.AddMaterial(rctx, actor, v.ID, data)
	if err != nil {
		api.discard(rctx, upload.URL)
		return errors.Wrap(err, "adding material")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *courseApi) updateMaterial(ctx echo.Context) error {
	var data course.UpdateMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.UpdateMaterial(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating material")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *courseApi) destroyMaterial(ctx echo.Context) error {
	if err := api.svc.DeleteMaterial(ctx.Request().Context(), getActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Helpers

// accessibleCourse returns the course if the actor may follow it.
func (api *courseApi) accessibleCourse(ctx context.Context, actor core.Actor, id string) (course.Course, error) {
	c, err := api.svc.Get(ctx, id)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	ok, err := api.progress.CanAccess(ctx, actor, c)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "checking access")
	}
	if !ok {
		return course.Course{}, progress.ErrNoAccess
	}
	return c, nil
}

// managedCourse returns the course if the actor may mutate it.
func (api *courseApi) managedCourse(ctx context.Context, actor core.Actor, id string) (course.Course, error) {
	c, err := api.svc.Get(ctx, id)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	if !actor.CanManage(c.TeacherID) {
		return course.Course{}, core.ErrForbidden
	}
	return c, nil
}

// discard moves a replaced upload to the trash; failures are only logged.
func (api *courseApi) discard(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := api.media.Discard(ctx, url); err != nil {
		api.logger.Warn(fmt.Sprintf("%+v", errors.Wrap(err, "discarding upload")), err)
	}
}
