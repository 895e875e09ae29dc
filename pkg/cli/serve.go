package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/efemerides-ve/efemerides/pkg/metrics"
	"github.com/efemerides-ve/efemerides/pkg/server"
	"github.com/efemerides-ve/efemerides/pkg/usecase/ephemeris"
	"github.com/efemerides-ve/efemerides/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg             config
		addr            string
		enableMetrics   bool
		shutdownTimeout time.Duration
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("EFEMERIDES_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "metrics",
			Usage:       "Expose Prometheus metrics at /metrics",
			Value:       true,
			Sources:     cli.EnvVars("EFEMERIDES_METRICS"),
			Destination: &enableMetrics,
		},
		&cli.DurationFlag{
			Name:        "shutdown-timeout",
			Usage:       "Grace period for in-flight requests on shutdown",
			Value:       10 * time.Second,
			Destination: &shutdownTimeout,
		},
	}
	flags = append(flags, repositoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the today endpoint over HTTP",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			var opts []server.Option
			if enableMetrics {
				opts = append(opts, server.WithMetrics(metrics.New(true)))
			}

			uc := ephemeris.New(repo, nil)
			httpServer := server.NewHTTPServer(addr, server.New(uc, opts...))
			baseCtx := context.WithoutCancel(ctx)
			httpServer.BaseContext = func(net.Listener) context.Context { return baseCtx }

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logging.From(ctx).Info("server started", "addr", addr, "backend", cfg.backend)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to serve", goerr.V("addr", addr))
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logging.From(ctx).Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shut down server")
			}
			return nil
		},
	}
}
