package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/persona-registry/internal/app"
	"github.com/heartmarshall/persona-registry/internal/service/changelog"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Accept       bool
	Reject       bool
	MarkReviewed bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <persona-id> <generation>",
		Short: "Accept or reject a pending change",
		Long: `Accept or reject a pending change. Resolving a generation that is no
longer pending does nothing.

Example:
  changelogctl resolve 6f1c... 5 --accept --mark-reviewed --actor $ME --role cde_admin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Accept, "accept", false, "commit the change")
	cmd.Flags().BoolVar(&opts.Reject, "reject", false, "reject the change")
	cmd.Flags().BoolVar(&opts.MarkReviewed, "mark-reviewed", false, "record the actor as reviewer")
	cmd.MarkFlagsMutuallyExclusive("accept", "reject")
	cmd.MarkFlagsOneRequired("accept", "reject")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, idArg, genArg string) error {
	personaID, err := parsePersonaID(idArg)
	if err != nil {
		return err
	}
	generation, err := strconv.ParseInt(genArg, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid generation %q", genArg), err)
	}
	ctx, err := opts.callerCtx(cmd.Context(), true)
	if err != nil {
		return err
	}

	return opts.withRegistry(ctx, func(reg *app.Registry) error {
		code, err := reg.Changelog.Resolve(ctx, changelog.ResolveInput{
			PersonaID:    personaID,
			Generation:   generation,
			Accept:       opts.Accept,
			MarkReviewed: opts.MarkReviewed,
		})
		if err != nil {
			return err
		}
		return opts.formatter(cmd).Success(resolveView{Code: code, Resolved: code > 0})
	})
}
