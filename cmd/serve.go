package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Azure/toolguard/pkg/logger"
	"github.com/Azure/toolguard/pkg/mcp/config"
	"github.com/Azure/toolguard/pkg/mcp/service"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long:  `The serve command starts the MCP server on the configured transport and stops it on SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := serveConfig(v)
			if err != nil {
				return err
			}

			root := logger.Init(cfg.Server.LoggerConfig())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := service.NewServerFactory(root, cfg).CreateServer(ctx)
			if err != nil {
				return err
			}

			startErr := srv.Start(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				root.Error().Err(err).Msg("Error during server shutdown")
			}
			return startErr
		},
	}

	cmd.Flags().String("config", "", "Path to configuration file")
	cmd.Flags().String("transport", "", "Transport type (stdio, http)")
	cmd.Flags().Int("port", 0, "HTTP listen port")
	cmd.Flags().String("schema-store", "", "Path of the bbolt schema store")
	cmd.Flags().Bool("strict", false, "Reject unknown tools and methods")
	return cmd
}

// serveConfig loads the configuration and applies the flags and
// environment values viper resolved
func serveConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}

	if transport := v.GetString("transport"); transport != "" {
		cfg.Server.Transport = transport
	}
	if port := v.GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if store := v.GetString("schema-store"); store != "" {
		cfg.Validation.SchemaStorePath = store
	}
	if v.IsSet("strict") && v.GetBool("strict") {
		cfg.Validation.StrictMode = true
	}
	if Version != "dev" {
		cfg.Server.Version = Version
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
