package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/pkg/ctxutil"
)

// actorEnv names the environment variable used when --actor is not given.
const actorEnv = "REGISTRY_ACTOR"

// callerCtx attaches a fresh request ID and, when known, the acting user and
// roles. Commands that change data require an actor.
func (o *RootOptions) callerCtx(ctx context.Context, requireActor bool) (context.Context, error) {
	ctx = ctxutil.WithRequestID(ctx, uuid.New().String())

	raw := strings.TrimSpace(o.Actor)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv(actorEnv))
	}
	if raw == "" {
		if requireActor {
			return nil, NewExitError(ExitCommandError, "--actor (or $"+actorEnv+") is required")
		}
		return ctx, nil
	}

	actor, err := uuid.Parse(raw)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --actor %q", raw), err)
	}
	ctx = ctxutil.WithUserID(ctx, actor)
	if len(o.Roles) > 0 {
		ctx = ctxutil.WithRoles(ctx, o.Roles...)
	}
	return ctx, nil
}

// parsePersonaID parses a persona ID argument.
func parsePersonaID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid persona id %q", arg), err)
	}
	return id, nil
}

// parseAssignments turns repeated --set name=value flags into typed fields.
func parseAssignments(schema domain.Schema, sets []string) (domain.Fields, error) {
	raw := make(map[string]string, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --set %q, want name=value", s))
		}
		raw[name] = value
	}
	return schema.ParseText(raw)
}
