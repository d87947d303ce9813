// Package privilege answers whether the caller may review changes to a given
// persona. Roles are taken from the context as set by the caller's
// authentication layer; this package never computes them.
package privilege

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
	"github.com/heartmarshall/persona-registry/pkg/ctxutil"
)

// RoleChecker decides relative-reviewer status from the caller's roles.
// A caller is a relative reviewer of a persona if it holds one of the global
// reviewer roles, or the admin role of a realm the persona belongs to.
type RoleChecker struct {
	globalRoles []string
	// realmRoles maps a realm flag field (e.g. "is_cde_realm") to the role
	// administering that realm (e.g. "cde_admin").
	realmRoles map[string]string
}

// NewRoleChecker creates a RoleChecker.
func NewRoleChecker(globalRoles []string, realmRoles map[string]string) *RoleChecker {
	rc := &RoleChecker{
		globalRoles: slices.Clone(globalRoles),
		realmRoles:  make(map[string]string, len(realmRoles)),
	}
	for flag, role := range realmRoles {
		rc.realmRoles[flag] = role
	}
	return rc
}

// IsRelativeReviewer reports whether the caller in ctx may review changes to
// the persona whose current state is fields.
func (c *RoleChecker) IsRelativeReviewer(ctx context.Context, _ uuid.UUID, fields domain.Fields) (bool, error) {
	roles := ctxutil.RolesFromCtx(ctx)
	if len(roles) == 0 {
		return false, nil
	}

	for _, role := range c.globalRoles {
		if slices.Contains(roles, role) {
			return true, nil
		}
	}

	for flag, role := range c.realmRoles {
		if !slices.Contains(roles, role) {
			continue
		}
		if domain.ValuesEqual(fields.Get(flag), domain.Bool(true)) {
			return true, nil
		}
	}
	return false, nil
}
