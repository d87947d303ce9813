package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/persona-registry/internal/app"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(app.BuildVersion())
		},
	}
}
