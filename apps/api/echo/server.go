package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/admission"
	"github.com/trezcool/natya/core/branch"
	"github.com/trezcool/natya/core/certificate"
	"github.com/trezcool/natya/core/document"
	"github.com/trezcool/natya/core/fee"
	"github.com/trezcool/natya/core/meeting"
	"github.com/trezcool/natya/core/otp"
	"github.com/trezcool/natya/core/schedule"
	"github.com/trezcool/natya/core/user"
)

type (
	ServerDeps struct {
		dig.In

		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        *user.Service
		OTPSvc         *otp.Service
		BranchSvc      *branch.Service
		AdmissionSvc   *admission.Service
		FeeSvc         *fee.Service
		CertificateSvc *certificate.Service
		MeetingSvc     *meeting.Service
		ScheduleSvc    *schedule.Service
		DocumentSvc    *document.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit(bodyLimit(conf.Uploads.MaxSize)))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	ctxUser := ctxUserMiddleware(s.deps.UserSvc)

	registerUserAPI(v1, jwt, ctxUser, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerOTPAPI(v1, conf, s.deps.OTPSvc, s.deps.Validate)
	registerBranchAPI(v1, jwt, ctxUser, s.deps.BranchSvc, s.deps.Validate)
	registerAdmissionAPI(v1, jwt, ctxUser, s.deps.AdmissionSvc, s.deps.Validate)
	registerFeeAPI(v1, jwt, ctxUser, s.deps.FeeSvc, s.deps.Validate)
	registerCertificateAPI(v1, jwt, ctxUser, s.deps.CertificateSvc, s.deps.Validate)
	registerMeetingAPI(v1, jwt, ctxUser, s.deps.MeetingSvc, s.deps.Validate)
	registerScheduleAPI(v1, jwt, ctxUser, s.deps.ScheduleSvc, s.deps.Validate)
	registerDocumentAPI(v1, jwt, ctxUser, s.deps.DocumentSvc, s.deps.Validate)
}

// Start listens until the server is shut down. Listening errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
