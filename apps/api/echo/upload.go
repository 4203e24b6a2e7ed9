package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/services/media"
)

type uploadApi struct {
	media *media.Service
}

// registerUploadAPI exposes raw uploads for editors (course content, marketing images); avatars
// and thumbnails go through their owner endpoints.
func registerUploadAPI(g *echo.Group, jwt echo.MiddlewareFunc, mediaSvc *media.Service) {
	api := uploadApi{media: mediaSvc}

	ug := g.Group("/uploads", jwt, teacherMiddleware())
	ug.POST("/images", api.uploadImage)
	ug.POST("/documents", api.uploadDocument)
}

func (api *uploadApi) uploadImage(ctx echo.Context) error {
	kind := core.CleanString(ctx.QueryParam("kind"), true /* lower */)
	if kind == "" {
		kind = media.KindContent
	}

	file, _, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer file.Close()

	upload, err := api.media.UploadImage(ctx.Request().Context(), kind, file)
	if err != nil {
		return errors.Wrap(err, "uploading image")
	}
	return ctx.JSON(http.StatusCreated, upload)
}

func (api *uploadApi) uploadDocument(ctx echo.Context) error {
	file, fh, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer file.Close()

	upload, err := api.media.UploadDocument(ctx.Request().Context(), fh.Filename, file)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusCreated, upload)
}
