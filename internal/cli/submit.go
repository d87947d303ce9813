package cli

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/persona-registry/internal/app"
	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/internal/service/changelog"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Set         []string
	Note        string
	Expect      int64
	Urgent      bool
	ForceReview bool
	Automated   bool
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <persona-id>",
		Short: "Propose a change to a persona",
		Long: `Propose a change to a persona.

The change commits at once unless it touches a sensitive field and the actor
is not a reviewer of the persona; then it waits for review. Pass the
generation you based the change on with --expect to detect concurrent edits.
An --urgent change never waits: it moves a pending change aside, commits and
replays the pending change on top.

Exit code 3 means the expected generation was stale.

Example:
  changelogctl submit 6f1c... --actor $ME --expect 4 --set birthday=1990-05-01 --note "typo"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "field assignment name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "reason for the change (required)")
	cmd.Flags().Int64Var(&opts.Expect, "expect", 0, "generation the change is based on (0 skips the check)")
	cmd.Flags().BoolVar(&opts.Urgent, "urgent", false, "commit now, displacing a pending change")
	cmd.Flags().BoolVar(&opts.ForceReview, "force-review", false, "always wait for a reviewer")
	cmd.Flags().BoolVar(&opts.Automated, "automated", false, "mark the change as made by a machine")

	return cmd
}

func runSubmit(cmd *cobra.Command, opts *SubmitOptions, arg string) error {
	personaID, err := parsePersonaID(arg)
	if err != nil {
		return err
	}
	ctx, err := opts.callerCtx(cmd.Context(), true)
	if err != nil {
		return err
	}

	return opts.withRegistry(ctx, func(reg *app.Registry) error {
		fields, err := parseAssignments(reg.Schema, opts.Set)
		if err != nil {
			return err
		}
		fields[domain.FieldID] = domain.PersonaIDValue(personaID)

		input := changelog.SubmitInput{
			PersonaID:   personaID,
			Fields:      fields,
			MayWait:     !opts.Urgent,
			Note:        opts.Note,
			ForceReview: opts.ForceReview,
			Automated:   opts.Automated,
		}
		if opts.Expect != 0 {
			input.ExpectedGeneration = &opts.Expect
		}

		res, err := reg.Changelog.Submit(ctx, input)
		if err != nil {
			return err
		}

		f := opts.formatter(cmd)
		if err := f.Success(newSubmitView(res)); err != nil {
			return err
		}
		if res.Outcome == changelog.OutcomeConflict {
			return NewExitError(ExitConflict, res.Message)
		}
		return nil
	})
}
