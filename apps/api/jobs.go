package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/otp"
)

const purgeTimeout = time.Minute

// startJobs schedules the background jobs. The returned cron must be stopped on shutdown.
func startJobs(conf *core.Config, otpSvc *otp.Service, logger core.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(conf.OTP.PurgeSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()

		n, err := otpSvc.Purge(ctx, time.Now())
		if err != nil {
			logger.Error("purging OTP codes", err)
			return
		}
		if n > 0 {
			logger.Info(fmt.Sprintf("purged %d expired OTP codes", n))
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scheduling OTP purge %q", conf.OTP.PurgeSchedule)
	}

	c.Start()
	return c, nil
}
