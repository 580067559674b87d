package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/schedule"
)

type scheduleApi struct {
	svc      *schedule.Service
	validate *validator.Validate
}

func registerScheduleAPI(g *echo.Group, jwt, ctxUser echo.MiddlewareFunc, svc *schedule.Service, validate *validator.Validate) {
	api := scheduleApi{svc: svc, validate: validate}

	sg := g.Group("/schedules", jwt)
	sg.GET("/me", api.mine, studentMiddleware(), ctxUser)

	adg := sg.Group("", adminMiddleware(), ctxUser)
	adg.GET("", api.list)
	adg.POST("", api.create)
	adg.DELETE("/:id", api.destroy)
}

func (api *scheduleApi) mine(ctx echo.Context) error {
	userID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	return api.sendEntries(ctx, userID)
}

func (api *scheduleApi) list(ctx echo.Context) error {
	var filter ScheduleFilter
	if err := ctx.Bind(&filter); err != nil || filter.UserID < 1 {
		return core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "this field is required"})
	}
	return api.sendEntries(ctx, filter.UserID)
}

func (api *scheduleApi) sendEntries(ctx echo.Context, userID int64) error {
	entries, err := api.svc.ListForUser(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing schedule entries")
	}
	if entries == nil {
		entries = []schedule.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *scheduleApi) create(ctx echo.Context) error {
	var data schedule.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating schedule entry")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *scheduleApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting schedule entry")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type ScheduleFilter struct {
	UserID int64 `query:"user_id"`
}
