package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core/branch"
)

type branchApi struct {
	svc      *branch.Service
	validate *validator.Validate
}

func registerBranchAPI(g *echo.Group, jwt, ctxUser echo.MiddlewareFunc, svc *branch.Service, validate *validator.Validate) {
	api := branchApi{svc: svc, validate: validate}

	bg := g.Group("/branches")
	bg.GET("", api.list)
	bg.POST("", api.create, jwt, adminMiddleware(), ctxUser)
}

func (api *branchApi) list(ctx echo.Context) error {
	branches, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing branches")
	}
	if branches == nil {
		branches = []branch.Branch{}
	}
	return ctx.JSON(http.StatusOK, branches)
}

func (api *branchApi) create(ctx echo.Context) error {
	var data branch.NewBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBranch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating branch")
	}
	return ctx.JSON(http.StatusCreated, b)
}
