package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core/certificate"
)

type certificateApi struct {
	svc      *certificate.Service
	validate *validator.Validate
}

func registerCertificateAPI(g *echo.Group, jwt, ctxUser echo.MiddlewareFunc, svc *certificate.Service, validate *validator.Validate) {
	api := certificateApi{svc: svc, validate: validate}

	cg := g.Group("/certificates")
	cg.GET("/types", api.types)

	sg := cg.Group("", jwt, studentMiddleware(), ctxUser)
	sg.GET("/me", api.overview)
	sg.POST("/apply", api.apply)

	adg := cg.Group("", jwt, adminMiddleware(), ctxUser)
	adg.GET("", api.list)
	adg.PUT("/:id", api.decide)
}

func (api *certificateApi) types(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, certificate.Catalog)
}

func (api *certificateApi) overview(ctx echo.Context) error {
	userID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	ov, err := api.svc.Overview(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "getting certificates overview")
	}
	if ov.Certificates == nil {
		ov.Certificates = []certificate.Certificate{}
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *certificateApi) apply(ctx echo.Context) error {
	userID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data certificate.Application
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Application")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cert, err := api.svc.Apply(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "applying for certificate")
	}
	return ctx.JSON(http.StatusCreated, cert)
}

func (api *certificateApi) list(ctx echo.Context) error {
	filter := new(StatusFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []certificate.StudentCertificate{})
	}
	filter.Clean()

	certs, err := api.svc.List(ctx.Request().Context(), filter.Status)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	if certs == nil {
		certs = []certificate.StudentCertificate{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *certificateApi) decide(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	var data certificate.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cert, err := api.svc.Decide(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "deciding certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}
