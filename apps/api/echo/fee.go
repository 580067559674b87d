package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core/fee"
)

const screenshotField = "screenshot"

type feeApi struct {
	svc      *fee.Service
	validate *validator.Validate
}

func registerFeeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	ctxUser echo.MiddlewareFunc,
	svc *fee.Service,
	validate *validator.Validate,
) {
	api := feeApi{svc: svc, validate: validate}

	fg := g.Group("/fees", jwt)
	fg.GET("/policy", api.policy)

	// student endpoints
	fg.GET("/me", api.mine, studentMiddleware(), ctxUser)
	fg.POST("/pay", api.pay, studentMiddleware(), ctxUser)

	// admin endpoints
	fg.POST("/generate", api.generate, adminMiddleware(), ctxUser)
	fg.GET("", api.list, adminMiddleware(), ctxUser)
	fg.PUT("/:id/verify", api.verify, adminMiddleware(), ctxUser)
	fg.POST("/cash", api.cash, adminMiddleware(), ctxUser)
	fg.GET("/:id/screenshot", api.screenshot, adminMiddleware(), ctxUser)
}

func (api *feeApi) policy(ctx echo.Context) error {
	p := api.svc.Policy()
	return ctx.JSON(http.StatusOK, FeePolicy{DueDay: p.DueDay, GraceDays: p.GraceDays, PerDayPenalty: p.PerDayLate})
}

func (api *feeApi) mine(ctx echo.Context) error {
	userID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	ov, err := api.svc.MyFees(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "getting fees overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *feeApi) pay(ctx echo.Context) error {
	userID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data fee.Period
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Period")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	screenshot, closeScreenshot, err := formFile(ctx, screenshotField, true)
	defer closeScreenshot()
	if err != nil {
		return err
	}

	r, err := api.svc.PayFee(ctx.Request().Context(), userID, data, *screenshot)
	if err != nil {
		return errors.Wrap(fieldError(err, screenshotField), "paying fee")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *feeApi) generate(ctx echo.Context) error {
	var data fee.GenerateFees
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateFees")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	created, err := api.svc.GenerateMonthlyFees(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating monthly fees")
	}
	return ctx.JSON(http.StatusOK, FeesGenerated{Created: created})
}

func (api *feeApi) list(ctx echo.Context) error {
	filter := new(StatusFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []fee.StudentRecord{})
	}
	filter.Clean()

	records, err := api.svc.AllFees(ctx.Request().Context(), filter.Status)
	if err != nil {
		return errors.Wrap(err, "listing fees")
	}
	if records == nil {
		records = []fee.StudentRecord{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *feeApi) verify(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	var data fee.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.VerifyPayment(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "verifying payment")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *feeApi) cash(ctx echo.Context) error {
	var data fee.CashPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CashPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.RecordCashPayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording cash payment")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *feeApi) screenshot(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	rc, name, err := api.svc.Screenshot(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "opening payment screenshot")
	}
	return sendFile(ctx, rc, name)
}

type (
	FeePolicy struct {
		DueDay        int   `json:"due_day"`
		GraceDays     int   `json:"grace_days"`
		PerDayPenalty int64 `json:"per_day_penalty"`
	}

	FeesGenerated struct {
		Created int64 `json:"created"`
	}
)
