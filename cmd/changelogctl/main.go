// Command changelogctl inspects and changes personas through the registry's
// changelog.
//
// Usage:
//
//	changelogctl [--config config.yaml] [--format text|json|yaml] <command>
//
// Configuration comes from the YAML file and environment variables; see
// internal/config.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/heartmarshall/persona-registry/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewRootCommand(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
