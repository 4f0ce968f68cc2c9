// Package hrmscli is the hrms command line: writing a starter .env and
// running the backend, the portal, or both in one process.
package hrmscli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/phillip-england/hrms/internal/apiapp"
	"github.com/phillip-england/hrms/internal/clientapp"
	"github.com/phillip-england/hrms/internal/envutil"
	"github.com/phillip-england/hrms/internal/logging"
	"github.com/phillip-england/hrms/internal/security"
	"github.com/phillip-england/hrms/internal/telemetry"
)

type processConfig struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	Environment  string `env:"GO_APP_ENV" envDefault:"development"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
}

// Execute runs the command line with args (without the program name).
func Execute(args []string) error {
	cmd := NewRootCmd(os.Stdout)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func NewRootCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hrms",
		Short:         "HRMS backend and web portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newRunCmd())
	return cmd
}

type setupOptions struct {
	AdminUsername string
	AdminPassword string
	SessionStore  string
	EnvPath       string
	Force         bool
}

func newSetupCmd() *cobra.Command {
	var opts setupOptions
	cmd := &cobra.Command{
		Use:   "setup --admin-password <password>",
		Short: "Write a starter .env file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.AdminPassword == "" {
				return errors.New("--admin-password is required")
			}
			if _, err := security.HashPassword(opts.AdminPassword); err != nil {
				return errors.Wrap(err, "invalid admin password")
			}
			values := map[string]string{
				"ADMIN_USERNAME": opts.AdminUsername,
				"ADMIN_PASSWORD": opts.AdminPassword,
				"API_ADDR":       ":8080",
				"CLIENT_ADDR":    ":3000",
				"API_BASE_URL":   "http://localhost:8080",
				"SESSION_STORE":  opts.SessionStore,
				"LOG_LEVEL":      "info",
				"GO_APP_ENV":     "development",
			}
			if err := envutil.Write(opts.EnvPath, values, opts.Force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.EnvPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.AdminUsername, "admin-username", "admin@hrms.local", "initial admin username")
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", "", "initial admin password")
	cmd.Flags().StringVar(&opts.SessionStore, "session-store", "memory", "portal session store: memory or redis")
	cmd.Flags().StringVar(&opts.EnvPath, "env-file", ".env", "path to .env file")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing env file")
	return cmd
}

func newRunCmd() *cobra.Command {
	var envPath string
	cmd := &cobra.Command{
		Use:       "run api|client|all",
		Short:     "Run the backend, the portal, or both",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"api", "client", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := envutil.Load(envPath); err != nil {
				return err
			}
			proc, err := env.ParseAs[processConfig]()
			if err != nil {
				return errors.Wrap(err, "parse process config")
			}
			logger := logging.New(proc.LogLevel, proc.Environment)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			shutdown := telemetry.Setup(ctx, telemetry.Config{
				ServiceName: "hrms-" + args[0],
				Endpoint:    proc.OTLPEndpoint,
				Insecure:    proc.OTLPInsecure,
			}, logger)
			defer func() {
				flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer flushCancel()
				if err := shutdown(flushCtx); err != nil {
					logger.WithError(err).Warn("telemetry shutdown")
				}
			}()

			return run(ctx, args[0], logger)
		},
	}
	cmd.Flags().StringVar(&envPath, "env-file", ".env", "path to .env file")
	return cmd
}

func run(ctx context.Context, target string, logger *logrus.Logger) error {
	switch target {
	case "api":
		return runAPI(ctx, logger)
	case "client":
		return runClient(ctx, logger)
	default:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return runAPI(gctx, logger) })
		g.Go(func() error {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-gctx.Done():
				return nil
			}
			return runClient(gctx, logger)
		})
		return g.Wait()
	}
}

func runAPI(ctx context.Context, logger *logrus.Logger) error {
	cfg, err := apiapp.DefaultConfigFromEnv()
	if err != nil {
		return err
	}
	return ignoreCanceled(apiapp.Run(ctx, cfg, logger))
}

func runClient(ctx context.Context, logger *logrus.Logger) error {
	cfg, err := clientapp.DefaultConfigFromEnv()
	if err != nil {
		return err
	}
	return ignoreCanceled(clientapp.Run(ctx, cfg, logger))
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
