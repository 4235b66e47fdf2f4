package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantgate/internal/app"
	"github.com/dropDatabas3/tenantgate/internal/config"
	httpx "github.com/dropDatabas3/tenantgate/internal/http"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:           "tenantgate",
		Short:         "Tenant-isolated authentication and permission resolution service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to YAML config (optional)")

	root.AddCommand(serveCmd(&cfgPath), migrateCmd(&cfgPath), seedCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func boot(cfgPath string) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "tenantgate",
		Version:     version,
	})
	return cfg, nil
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := boot(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			logger.L().Info("server starting",
				logger.String("addr", cfg.Server.Addr),
				logger.Bool("cookie_secure", cfg.Auth.Cookie.Secure))
			return httpx.Start(ctx, cfg.Server.Addr, httpx.NewRouter(container))
		},
	}
}

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := boot(*cfgPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			container, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer container.Close()
			return container.Store.Migrate(ctx)
		},
	}
}
