package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/hospital-directory/internal/config"
	"github.com/sakif/hospital-directory/internal/logger"
	"github.com/sakif/hospital-directory/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Configuration comes from the environment;
with ENV=dev a .env file in the working directory is read first.

	hospital-directory serve
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log, err := logger.Setup(cfg.LogFormat, cfg.LogLevel, os.Stdout)
			if err != nil {
				return err
			}

			srv, err := server.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}
}
