package dig_container

import (
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/natya/apps/api/echo"
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
	appfs "github.com/trezcool/natya/fs"
	emailsvc "github.com/trezcool/natya/services/email"
	"github.com/trezcool/natya/services/filestore"
	logsvc "github.com/trezcool/natya/services/logger"
	"github.com/trezcool/natya/storage/database"
	sqlxrepos "github.com/trezcool/natya/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Mailer is an EmailService whose pending sends can be awaited before exiting.
	Mailer interface {
		core.EmailService
		Wait()
	}

	serviceDeps struct {
		dig.In

		Conf    *core.Config
		Logger  core.Logger
		DB      *sqlx.DB
		MailSvc core.EmailService
		Files   core.FileStore
	}

	// Services are the domain services, wired together.
	Services struct {
		dig.Out

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
)

func newRollbarLogger(conf *core.Config) (*logsvc.RollbarLogger, error) {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "creating zap logger")
	}
	return logsvc.NewRollbarLogger(zl.Named("api"), conf), nil
}

func newLogger(l *logsvc.RollbarLogger) core.Logger { return l }

func newDBLogger(conf *core.Config) (core.Logger, error) {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "creating zap logger")
	}
	return logsvc.NewRollbarLogger(zl.Named("db"), conf), nil
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailTemplates(conf *core.Config, logger core.Logger) *core.EmailTemplates {
	return core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
}

func newEmailService(conf *core.Config, tmpls *core.EmailTemplates, logger core.Logger) (core.EmailService, Mailer) {
	if conf.Debug || conf.SendgridApiKey == "" {
		svc := emailsvc.NewConsoleService(conf, tmpls, logger)
		return svc, svc
	}
	svc := emailsvc.NewSendgridService(conf, tmpls, logger)
	return svc, svc
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

// newServices builds the domain services. Users own the documents, schedules, fees and certificates
// deleted along with them.
func newServices(deps serviceDeps) Services {
	db := deps.DB
	usrRepo := sqlxrepos.NewUserRepository(db)
	branchRepo := sqlxrepos.NewBranchRepository(db)

	otpSvc := otp.NewService(sqlxrepos.NewOTPRepository(db), deps.Conf)
	feeSvc := fee.NewService(db, sqlxrepos.NewFeeRepository(db), usrRepo, deps.Files, deps.MailSvc, deps.Logger, deps.Conf)
	certSvc := certificate.NewService(db, sqlxrepos.NewCertificateRepository(db), usrRepo, deps.MailSvc, deps.Logger, deps.Conf)
	scheduleSvc := schedule.NewService(sqlxrepos.NewScheduleRepository(db), usrRepo)
	documentSvc := document.NewService(sqlxrepos.NewDocumentRepository(db), usrRepo, deps.Files, deps.Logger)
	userSvc := user.NewService(db, usrRepo, deps.MailSvc, deps.Conf, documentSvc, scheduleSvc, feeSvc, certSvc)

	return Services{
		UserSvc:   userSvc,
		OTPSvc:    otpSvc,
		BranchSvc: branch.NewService(branchRepo),
		AdmissionSvc: admission.NewService(
			db, sqlxrepos.NewAdmissionRepository(db), otpSvc, userSvc, branchRepo,
			deps.Files, deps.MailSvc, deps.Logger, deps.Conf,
		),
		FeeSvc:         feeSvc,
		CertificateSvc: certSvc,
		MeetingSvc:     meeting.NewService(sqlxrepos.NewMeetingRepository(db), deps.MailSvc),
		ScheduleSvc:    scheduleSvc,
		DocumentSvc:    documentSvc,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newRollbarLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailTemplates))
	must(c.Provide(newEmailService))
	must(c.Provide(filestore.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newServices))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
