package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core/meeting"
)

type meetingApi struct {
	svc      *meeting.Service
	validate *validator.Validate
}

func registerMeetingAPI(g *echo.Group, jwt, ctxUser echo.MiddlewareFunc, svc *meeting.Service, validate *validator.Validate) {
	api := meetingApi{svc: svc, validate: validate}

	mg := g.Group("/meetings")
	mg.POST("", api.book)
	mg.GET("", api.list, jwt, adminMiddleware(), ctxUser)
	mg.PUT("/:id", api.decide, jwt, adminMiddleware(), ctxUser)
}

func (api *meetingApi) book(ctx echo.Context) error {
	var data meeting.NewMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMeeting")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Book(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "booking meeting")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *meetingApi) list(ctx echo.Context) error {
	filter := new(StatusFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []meeting.Meeting{})
	}
	filter.Clean()

	meetings, err := api.svc.List(ctx.Request().Context(), filter.Status)
	if err != nil {
		return errors.Wrap(err, "listing meetings")
	}
	if meetings == nil {
		meetings = []meeting.Meeting{}
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *meetingApi) decide(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	var data meeting.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Decide(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "deciding meeting")
	}
	return ctx.JSON(http.StatusOK, m)
}
