package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/persona-registry/internal/app"
	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/internal/service/changelog"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <persona-id>",
		Short: "Print a persona's canonical record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personaID, err := parsePersonaID(args[0])
			if err != nil {
				return err
			}
			ctx, err := rootOpts.callerCtx(cmd.Context(), false)
			if err != nil {
				return err
			}
			return rootOpts.withRegistry(ctx, func(reg *app.Registry) error {
				p, err := reg.Changelog.GetPersona(ctx, personaID)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(newPersonaView(p))
			})
		},
	}
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Generations []int64
	Fields      bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <persona-id>",
		Short: "List a persona's generations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personaID, err := parsePersonaID(args[0])
			if err != nil {
				return err
			}
			ctx, err := opts.callerCtx(cmd.Context(), false)
			if err != nil {
				return err
			}
			return opts.withRegistry(ctx, func(reg *app.Registry) error {
				entries, err := reg.Changelog.GetHistory(ctx, personaID, opts.Generations)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(newHistoryView(personaID, entries, opts.Fields))
			})
		},
	}

	cmd.Flags().Int64SliceVar(&opts.Generations, "gen", nil, "only these generations (repeatable)")
	cmd.Flags().BoolVar(&opts.Fields, "fields", false, "include the field snapshot of each generation")

	return cmd
}

// NewGenerationCommand creates the generation command.
func NewGenerationCommand(rootOpts *RootOptions) *cobra.Command {
	var committedOnly bool

	cmd := &cobra.Command{
		Use:   "generation <persona-id>",
		Short: "Print a persona's current generation",
		Long: `Print a persona's current generation, the value to pass to submit --expect.
The current generation is the latest pending or committed one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personaID, err := parsePersonaID(args[0])
			if err != nil {
				return err
			}
			ctx, err := rootOpts.callerCtx(cmd.Context(), false)
			if err != nil {
				return err
			}
			return rootOpts.withRegistry(ctx, func(reg *app.Registry) error {
				gen, err := reg.Changelog.GetGeneration(ctx, personaID, committedOnly)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(generationView{
					PersonaID:     personaID.String(),
					Generation:    gen,
					CommittedOnly: committedOnly,
				})
			})
		},
	}

	cmd.Flags().BoolVar(&committedOnly, "committed", false, "ignore a pending generation")

	return cmd
}

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions
	Limit  int
	Offset int
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List changes waiting for review, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := opts.callerCtx(cmd.Context(), false)
			if err != nil {
				return err
			}
			return opts.withRegistry(ctx, func(reg *app.Registry) error {
				page, err := reg.Changelog.ListPending(ctx, changelog.ListPendingInput{
					Limit:  opts.Limit,
					Offset: opts.Offset,
				})
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(newPendingView(page))
			})
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", changelog.DefaultPendingLimit, "page size")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of items to skip")

	return cmd
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit <persona-id>",
		Short: "Print a persona's audit trail, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personaID, err := parsePersonaID(args[0])
			if err != nil {
				return err
			}
			ctx, err := rootOpts.callerCtx(cmd.Context(), false)
			if err != nil {
				return err
			}
			return rootOpts.withRegistry(ctx, func(reg *app.Registry) error {
				records, err := reg.Audit.GetByEntity(ctx, domain.EntityTypePersona, personaID, limit)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(newAuditListView(records))
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of records")

	return cmd
}
