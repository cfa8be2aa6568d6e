package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncobase/blobjob/config"
	"github.com/ncobase/blobjob/events"
	"github.com/ncobase/blobjob/logging/logger"
	"github.com/ncobase/blobjob/metrics"
	"github.com/ncobase/blobjob/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *options) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the validation consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.store(ctx)
			if err != nil {
				return err
			}
			pub, err := a.events()
			if err != nil {
				return err
			}

			collector, err := metrics.NewCollector(a.cfg.Metrics)
			if err != nil {
				return err
			}
			collector.Start(ctx)
			defer collector.Stop()

			m, err := scheduler.NewManager(a.cfg.Scheduler, jobs, a.runner(), pub, scheduler.WithObserver(collector))
			if err != nil {
				return err
			}
			if err := m.Start(ctx); err != nil {
				return err
			}

			if a.cfg.Events.ValidateTopic != "" {
				svc, err := a.validationService(ctx)
				if err != nil {
					return err
				}
				consumer, err := events.NewKafkaConsumer(a.cfg.Events, svc.Handle)
				if err != nil {
					return err
				}
				defer consumer.Close()
				go func() {
					if err := consumer.Run(ctx); err != nil {
						logger.Errorf(ctx, "validation consumer stopped: %v", err)
					}
				}()
			}

			if err := config.Watch(func(c *config.Config) {
				if _, err := logger.New(c.Logger); err != nil {
					logger.Errorf(ctx, "failed to apply logger config: %v", err)
					return
				}
				logger.Infof(ctx, "configuration reloaded; storage, redis and event changes apply on restart")
			}, func(err error) {
				logger.Errorf(ctx, "ignoring invalid configuration change: %v", err)
			}); err != nil {
				logger.Warnf(ctx, "config watch disabled: %v", err)
			}

			logger.Infof(ctx, "%s serving, %d jobs scheduled", a.cfg.AppName, len(m.Scheduled()))
			<-ctx.Done()

			logger.Infof(context.Background(), "shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			m.Stop(sctx)
			logger.WithFields(context.Background(), logrus.Fields{
				"runs": collector.GetMetrics()["runs"],
				"pool": m.GetMetrics(),
			}).Info("stopped")
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "time to wait for running jobs on shutdown")
	return cmd
}
