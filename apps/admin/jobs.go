package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trezcool/natya/core/fee"
)

var nowFunc = time.Now // mockable

func (cli *commandLine) generateFeesCommand() *cobra.Command {
	var gf fee.GenerateFees
	cmd := &cobra.Command{
		Use:   "generatefees",
		Short: "Create the monthly fee records of the active students (defaults to the current month)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := nowFunc()
			if gf.Month == 0 {
				gf.Month = int(now.Month())
			}
			if gf.Year == 0 {
				gf.Year = now.Year()
			}
			if err := gf.Validate(cli.validate); err != nil {
				return cli.translate(err)
			}

			created, err := cli.feeSvc.GenerateMonthlyFees(cmd.Context(), gf)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d fee records created for %02d/%d\n", created, gf.Month, gf.Year)
			return nil
		},
	}
	cmd.Flags().IntVar(&gf.Month, "month", 0, "month (1-12)")
	cmd.Flags().IntVar(&gf.Year, "year", 0, "year")
	cmd.Flags().Int64Var(&gf.BaseAmount, "amount", 0, "base fee amount")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (cli *commandLine) purgeOTPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purgeotp",
		Short: "Delete the expired OTP codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := cli.otpSvc.Purge(cmd.Context(), nowFunc())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d OTP codes purged\n", n)
			return nil
		},
	}
}
