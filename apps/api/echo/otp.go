package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/otp"
)

type otpApi struct {
	svc      *otp.Service
	validate *validator.Validate
	exposed  bool // codes are returned to the client in DEV|TEST mode
}

func registerOTPAPI(g *echo.Group, conf *core.Config, svc *otp.Service, validate *validator.Validate) {
	api := otpApi{
		svc:      svc,
		validate: validate,
		exposed:  conf.Debug || conf.TestMode,
	}

	og := g.Group("/otp")
	og.POST("/send", api.send)
	og.POST("/verify", api.verify)
}

func (api *otpApi) send(ctx echo.Context) error {
	var data otp.SendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	code, err := api.svc.Send(ctx.Request().Context(), data.Phone, data.Purpose)
	if err != nil {
		return errors.Wrap(err, "sending otp code")
	}

	resp := OTPSentResponse{Success: "A verification code has been sent.", ExpiresAt: code.ExpiresAt}
	if api.exposed {
		resp.Code = code.Code
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *otpApi) verify(ctx echo.Context) error {
	var data otp.VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.Verify(ctx.Request().Context(), data.Phone, data.Code, data.Purpose); err != nil {
		return errors.Wrap(err, "verifying otp code")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Phone number verified."})
}

type OTPSentResponse struct {
	Success   string    `json:"success"`
	ExpiresAt time.Time `json:"expires_at"`
	Code      string    `json:"code,omitempty"`
}
