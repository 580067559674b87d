package main

import (
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/fee"
	"github.com/trezcool/natya/core/otp"
	"github.com/trezcool/natya/core/user"
	appfs "github.com/trezcool/natya/fs"
	emailsvc "github.com/trezcool/natya/services/email"
	"github.com/trezcool/natya/services/filestore"
	logsvc "github.com/trezcool/natya/services/logger"
	"github.com/trezcool/natya/storage/database"
	sqlxrepos "github.com/trezcool/natya/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer logger.Sync()

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()

	files, err := filestore.New(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening file store: %v", err), err)
	}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords, logger)

	tmpls := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	mailSvc := emailsvc.NewConsoleService(conf, tmpls, logger)
	defer mailSvc.Wait()
	usrRepo := sqlxrepos.NewUserRepository(db)

	// start CLI
	cli := commandLine{
		db:         db,
		usrSvc:     user.NewService(db, usrRepo, mailSvc, conf),
		feeSvc:     fee.NewService(db, sqlxrepos.NewFeeRepository(db), usrRepo, files, mailSvc, logger, conf),
		otpSvc:     otp.NewService(sqlxrepos.NewOTPRepository(db), conf),
		validate:   validate,
		translator: translator,
	}
	if err := cli.run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		mailSvc.Wait()
		logger.Sync()
		_ = db.Close()
		os.Exit(1)
	}
}
