// Package cli implements changelogctl, the operator command line of the
// persona registry.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/persona-registry/internal/app"
	"github.com/heartmarshall/persona-registry/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigPath string
	Actor      string
	Roles      []string

	open registryOpener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// registryOpener connects to the configured registry. Commands call it once
// per invocation and close the result when done.
type registryOpener func(ctx context.Context, opts *RootOptions) (*app.Registry, error)

// NewRootCommand creates the root command for changelogctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openFromConfig)
}

func newRootCommand(open registryOpener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "changelogctl",
		Short: "Persona registry changelog",
		Long: `Inspect and change personas through the registry's changelog.

Every change becomes a new generation of the persona's history. Changes to
sensitive fields wait for a reviewer unless the caller is one.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: $CONFIG_PATH or ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "", "ID of the acting user (default: $REGISTRY_ACTOR)")
	cmd.PersistentFlags().StringSliceVar(&opts.Roles, "role", nil, "role held by the acting user (repeatable)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewGenerationCommand(opts))
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// Execute runs the root command and reports a failure in the chosen format.
// It returns the process exit code.
func Execute(ctx context.Context, cmd *cobra.Command, stdout, stderr io.Writer) int {
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format, _ := cmd.PersistentFlags().GetString("format")
	if !slices.Contains(ValidFormats, format) {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stderr}
	_ = f.Error(errorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// withRegistry opens the registry, runs fn and closes the registry.
func (o *RootOptions) withRegistry(ctx context.Context, fn func(reg *app.Registry) error) error {
	reg, err := o.open(ctx, o)
	if err != nil {
		return WrapExitError(ExitCommandError, "open registry", err)
	}
	defer reg.Close()
	return fn(reg)
}

func openFromConfig(ctx context.Context, opts *RootOptions) (*app.Registry, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, logger)
}

// loadConfig reads the configuration and builds the logger. Verbose mode
// lowers the log level to debug.
func loadConfig(opts *RootOptions) (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFile(opts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, app.NewLogger(cfg.Log), nil
}
