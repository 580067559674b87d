package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core/admission"
	"github.com/trezcool/natya/core/user"
)

// multipart form fields of the application files
const (
	idProofField = "id_proof"
	paymentField = "payment_screenshot"
)

type admissionApi struct {
	svc      *admission.Service
	validate *validator.Validate
}

func registerAdmissionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	ctxUser echo.MiddlewareFunc,
	svc *admission.Service,
	validate *validator.Validate,
) {
	api := admissionApi{svc: svc, validate: validate}

	ag := g.Group("/admissions")
	ag.POST("/trial", api.submitTrial)
	ag.POST("", api.submitAdmission)

	admin := []echo.MiddlewareFunc{jwt, adminMiddleware(), ctxUser}
	ag.GET("", api.list, admin...)
	ag.GET("/:id", api.retrieve, admin...)
	ag.GET("/:id/files/:kind", api.file, admin...)
	ag.PUT("/:id/payment", api.verifyPayment, admin...)
	ag.POST("/:id/schedule-trial", api.scheduleTrial, admin...)
	ag.POST("/:id/complete-trial", api.completeTrial, admin...)
	ag.POST("/:id/approve", api.approve, admin...)
	ag.POST("/:id/reject", api.reject, admin...)
}

func (api *admissionApi) bindApplication(ctx echo.Context) (admission.NewApplication, error) {
	var data admission.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewApplication")
	}
	return data, data.Validate(api.validate)
}

func (api *admissionApi) submitTrial(ctx echo.Context) error {
	data, err := api.bindApplication(ctx)
	if err != nil {
		return err
	}
	idProof, closeIDProof, err := formFile(ctx, idProofField, false)
	defer closeIDProof()
	if err != nil {
		return err
	}

	pa, err := api.svc.SubmitTrial(ctx.Request().Context(), data, idProof)
	if err != nil {
		return errors.Wrap(err, "submitting trial application")
	}
	return ctx.JSON(http.StatusCreated, pa)
}

func (api *admissionApi) submitAdmission(ctx echo.Context) error {
	data, err := api.bindApplication(ctx)
	if err != nil {
		return err
	}
	idProof, closeIDProof, err := formFile(ctx, idProofField, false)
	defer closeIDProof()
	if err != nil {
		return err
	}
	payment, closePayment, err := formFile(ctx, paymentField, false)
	defer closePayment()
	if err != nil {
		return err
	}

	pa, err := api.svc.SubmitAdmission(ctx.Request().Context(), data, idProof, payment)
	if err != nil {
		return errors.Wrap(err, "submitting admission application")
	}
	return ctx.JSON(http.StatusCreated, pa)
}

func (api *admissionApi) list(ctx echo.Context) error {
	filter := new(StatusFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []admission.PreAdmission{})
	}
	filter.Clean()

	apps, err := api.svc.List(ctx.Request().Context(), filter.Status)
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}
	if apps == nil {
		apps = []admission.PreAdmission{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *admissionApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	pa, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting application")
	}
	return ctx.JSON(http.StatusOK, pa)
}

func (api *admissionApi) file(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	kind := ctx.Param("kind")
	if kind != admission.FileIDProof && kind != admission.FilePayment {
		return errHttpNotFound
	}

	rc, name, err := api.svc.File(ctx.Request().Context(), id, kind)
	if err != nil {
		return errors.Wrap(err, "opening application file")
	}
	return sendFile(ctx, rc, name)
}

func (api *admissionApi) verifyPayment(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	var data admission.PaymentDecision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentDecision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pa, err := api.svc.VerifyPayment(ctx.Request().Context(), id, data.Status)
	if err != nil {
		return errors.Wrap(err, "verifying payment")
	}
	return ctx.JSON(http.StatusOK, pa)
}

func (api *admissionApi) scheduleTrial(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	var data admission.ScheduleTrial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleTrial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pa, err := api.svc.ApproveTrial(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "scheduling trial")
	}
	return ctx.JSON(http.StatusOK, pa)
}

func (api *admissionApi) bindNotes(ctx echo.Context) (int64, string, error) {
	id, err := paramID(ctx)
	if err != nil {
		return 0, "", err
	}

	var data admission.Notes
	if err := ctx.Bind(&data); err != nil {
		return 0, "", errors.Wrap(err, "binding to Notes")
	}
	if err := data.Validate(api.validate); err != nil {
		return 0, "", err
	}
	return id, data.Notes, nil
}

func (api *admissionApi) completeTrial(ctx echo.Context) error {
	id, notes, err := api.bindNotes(ctx)
	if err != nil {
		return err
	}

	pa, err := api.svc.CompleteTrial(ctx.Request().Context(), id, notes)
	if err != nil {
		return errors.Wrap(err, "completing trial")
	}
	return ctx.JSON(http.StatusOK, pa)
}

func (api *admissionApi) approve(ctx echo.Context) error {
	id, notes, err := api.bindNotes(ctx)
	if err != nil {
		return err
	}
	admin, ok := ctx.Get(contextUserKey).(user.User)
	if !ok {
		return errUnauthorized
	}

	pa, usr, err := api.svc.ApproveAdmission(ctx.Request().Context(), id, admin.ID, notes)
	if err != nil {
		return errors.Wrap(err, "approving admission")
	}
	return ctx.JSON(http.StatusOK, AdmissionApproved{Application: pa, Student: usr})
}

func (api *admissionApi) reject(ctx echo.Context) error {
	id, notes, err := api.bindNotes(ctx)
	if err != nil {
		return err
	}

	pa, err := api.svc.Reject(ctx.Request().Context(), id, notes)
	if err != nil {
		return errors.Wrap(err, "rejecting application")
	}
	return ctx.JSON(http.StatusOK, pa)
}

type AdmissionApproved struct {
	Application admission.PreAdmission `json:"application"`
	Student     user.User              `json:"student"`
}
