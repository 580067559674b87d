package main

import (
	"fmt"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/natya/core/fee"
	"github.com/trezcool/natya/core/otp"
	"github.com/trezcool/natya/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNoPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	db         *sqlx.DB
	usrSvc     *user.Service
	feeSvc     *fee.Service
	otpSvc     *otp.Service
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Natya administration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		cli.migrateCommand(),
		cli.addUserCommand(),
		cli.resetPasswordCommand(),
		cli.generateFeesCommand(),
		cli.purgeOTPCommand(),
	)
	return cmd
}

// run executes the command line args, program name included.
func (cli *commandLine) run(args []string) error {
	cmd := cli.rootCommand()
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func (cli *commandLine) readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}
	return string(pwd), nil
}

// translate turns validation errors into a single readable error.
func (cli *commandLine) translate(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}
	msgs := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Translate(cli.translator)))
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}
