package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/hospital-directory/internal/auth"
	"github.com/sakif/hospital-directory/internal/config"
	"github.com/sakif/hospital-directory/internal/server"
	"github.com/sakif/hospital-directory/internal/service"
)

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	userCmd.AddCommand(newCreateAdminCmd())
	return userCmd
}

// newCreateAdminCmd bootstraps the first administrator. POST /usuario is
// admin-only, so a fresh deployment has no other way to get one.
func newCreateAdminCmd() *cobra.Command {
	var in service.CreateUserInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator, or promote the user with that email",
		Example: `  hospital-directory user create-admin \
    --email admin@example.com --password s3cret --nombre Ana --apellido Pérez`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			store, err := server.OpenStore(cmd.Context(), db)
			if err != nil {
				return err
			}
			defer store.Close()

			users := service.NewUserService(store, auth.NewPasswordService(auth.DefaultCost), nil, slog.Default())
			admin, err := users.EnsureAdmin(cmd.Context(), in)
			if err != nil {
				return err
			}

			slog.Info("administrator ready",
				slog.String("userID", admin.ID),
				slog.String("email", admin.Email),
			)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "email address (required)")
	f.StringVar(&in.Password, "password", "", "password (required)")
	f.StringVar(&in.Nombre, "nombre", "", "first name (required)")
	f.StringVar(&in.PrimerApellido, "apellido", "", "first surname (required)")
	f.StringVar(&in.SegundoApellido, "segundo-apellido", "", "second surname")
	for _, name := range []string{"email", "password", "nombre", "apellido"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
