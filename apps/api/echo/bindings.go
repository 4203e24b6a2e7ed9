package echoapi

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
)

const (
	orderingParam = "ordering"
	fileField     = "file"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindOrdering is a shortcut returning the orderings requested by ?ordering=.
func bindOrdering(ctx echo.Context) []core.DBOrdering {
	ord := new(Ordering)
	ord.Bind(ctx)
	return ord.Orderings
}

// queryBool parses a boolean query param; missing or malformed values yield def.
func queryBool(ctx echo.Context, name string, def bool) bool {
	if b, err := strconv.ParseBool(ctx.QueryParam(name)); err == nil {
		return b
	}
	return def
}

// formFile opens the file uploaded in the "file" form field.
func formFile(ctx echo.Context) (multipart.File, *multipart.FileHeader, error) {
	fh, err := ctx.FormFile(fileField)
	if err != nil {
		return nil, nil, core.NewFieldError(fileField, "a file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening uploaded file")
	}
	return f, fh, nil
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)
