package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/hospital-directory/internal/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hospital-directory",
		Short:         "REST backend for the hospital directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logger.Setup(os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"), os.Stdout)
			return err
		},
	}

	root.AddCommand(newServeCmd(), newMigrateCmd(), newUserCmd())
	return root
}
