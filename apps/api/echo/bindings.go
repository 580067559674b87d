package echoapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bodyLimit returns the request body limit fitting two uploads of maxUpload bytes plus form fields.
func bodyLimit(maxUpload int64) string {
	return strconv.FormatInt(2*maxUpload/1024+64, 10) + "K"
}

func paramID(ctx echo.Context, name ...string) (int64, error) {
	param := "id"
	if len(name) > 0 {
		param = name[0]
	}
	id, err := strconv.ParseInt(ctx.Param(param), 10, 64)
	if err != nil || id < 1 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// formFile opens the multipart file of field. A missing optional file yields a nil Upload.
// The returned func closes the file and is never nil.
func formFile(ctx echo.Context, field string, required bool) (*core.Upload, func(), error) {
	noop := func() {}

	fh, err := ctx.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			if required {
				return nil, noop, core.NewValidationError(nil, core.FieldError{Field: field, Error: "this field is required"})
			}
			return nil, noop, nil
		}
		return nil, noop, errors.Wrapf(err, "reading form file %q", field)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, errors.Wrapf(err, "opening form file %q", field)
	}
	return &core.Upload{Filename: fh.Filename, Content: f}, func() { _ = f.Close() }, nil
}

// fieldError binds a field-less validation error, such as an upload rejected by the file store, to field.
func fieldError(err error, field string) error {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) == 0 && vErr.Err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: vErr.Err.Error()})
	}
	return err
}

// sendFile writes the stored file content with its detected content type.
func sendFile(ctx echo.Context, rc io.ReadCloser, name string) error {
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return errors.Wrap(err, "reading file")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+name+`"`)
	return ctx.Blob(http.StatusOK, mimetype.Detect(content).String(), content)
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []int64 `query:"id"`
	}

	StatusFilter struct {
		Status string `query:"status"`
	}
)

func (sf *StatusFilter) Clean() {
	sf.Status = core.CleanString(sf.Status, true /* lower */)
}
