package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/persona-registry/internal/app"
	"github.com/heartmarshall/persona-registry/internal/service/changelog"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Set  []string
	Note string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new persona",
		Long: `Register a new persona. Fields not given get their zero value.

Example:
  changelogctl create --actor $ME --set display_name="Anna Muster" --set is_cde_realm=true`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "field assignment name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note of the first generation")

	return cmd
}

func runCreate(cmd *cobra.Command, opts *CreateOptions) error {
	ctx, err := opts.callerCtx(cmd.Context(), true)
	if err != nil {
		return err
	}

	return opts.withRegistry(ctx, func(reg *app.Registry) error {
		fields, err := parseAssignments(reg.Schema, opts.Set)
		if err != nil {
			return err
		}

		p, err := reg.Changelog.Create(ctx, changelog.CreateInput{Fields: fields, Note: opts.Note})
		if err != nil {
			return err
		}
		return opts.formatter(cmd).Success(newPersonaView(p))
	})
}
