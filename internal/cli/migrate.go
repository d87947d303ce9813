package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/persona-registry/internal/app"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply pending schema migrations to the configured PostgreSQL database.

The embedded badger backend has no schema; the command reports nothing applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(rootOpts)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			applied, err := app.Migrate(cmd.Context(), cfg, logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "migrate", err)
			}
			return rootOpts.formatter(cmd).Success(migrateView{Applied: applied})
		},
	}
}
