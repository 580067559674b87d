package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core/document"
	"github.com/trezcool/natya/core/user"
)

const documentField = "file"

type documentApi struct {
	svc      *document.Service
	validate *validator.Validate
}

func registerDocumentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	ctxUser echo.MiddlewareFunc,
	svc *document.Service,
	validate *validator.Validate,
) {
	api := documentApi{svc: svc, validate: validate}

	g.POST("/users/:id/documents", api.upload, jwt, adminMiddleware(), ctxUser)
	g.GET("/users/:id/documents", api.listForUser, jwt, adminMiddleware(), ctxUser)

	dg := g.Group("/documents", jwt, ctxUser)
	dg.GET("/me", api.mine, studentMiddleware())
	dg.GET("/:id/file", api.file)
	dg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *documentApi) upload(ctx echo.Context) error {
	userID, err := paramID(ctx)
	if err != nil {
		return err
	}
	admin, ok := ctx.Get(contextUserKey).(user.User)
	if !ok {
		return errUnauthorized
	}

	var data document.NewDocument
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDocument")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	upload, closeUpload, err := formFile(ctx, documentField, true)
	defer closeUpload()
	if err != nil {
		return err
	}

	doc, err := api.svc.Upload(ctx.Request().Context(), userID, admin.ID, data, *upload)
	if err != nil {
		return errors.Wrap(fieldError(err, documentField), "uploading document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *documentApi) listForUser(ctx echo.Context) error {
	userID, err := paramID(ctx)
	if err != nil {
		return err
	}
	return api.sendDocuments(ctx, userID)
}

func (api *documentApi) mine(ctx echo.Context) error {
	userID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	return api.sendDocuments(ctx, userID)
}

func (api *documentApi) sendDocuments(ctx echo.Context, userID int64) error {
	docs, err := api.svc.ListForUser(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing documents")
	}
	if docs == nil {
		docs = []document.Document{}
	}
	return ctx.JSON(http.StatusOK, docs)
}

// file serves the document to admins and to the student owning it.
func (api *documentApi) file(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, ok := ctx.Get(contextUserKey).(user.User)
	if !ok {
		return errUnauthorized
	}

	doc, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting document")
	}
	if !ctxUsr.IsAdmin() && doc.UserID != ctxUsr.ID {
		return errHttpNotFound
	}

	rc, err := api.svc.Open(ctx.Request().Context(), doc)
	if err != nil {
		return errors.Wrap(err, "opening document")
	}
	return sendFile(ctx, rc, doc.FileName)
}

func (api *documentApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return ctx.NoContent(http.StatusNoContent)
}
