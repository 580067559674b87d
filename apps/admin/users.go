package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/user"
)

func (cli *commandLine) addUserCommand() *cobra.Command {
	var na user.NewAdmin
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create an admin account, or update the account of the email. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.readPassword(cmd)
			if err != nil {
				return err
			}
			na.Password = pwd
			if err = na.Validate(cli.validate); err != nil {
				return cli.translate(err)
			}

			usr, err := cli.usrSvc.SaveAdmin(cmd.Context(), na)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q saved (id %d)\n", usr.Email, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&na.Name, "name", "", "the admin's name")
	cmd.Flags().StringVar(&na.Email, "email", "", "the admin's email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) resetPasswordCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset the password of a user. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.readPassword(cmd)
			if err != nil {
				return err
			}
			return cli.usrSvc.SetPassword(cmd.Context(), core.CleanString(email, true /* lower */), pwd)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
