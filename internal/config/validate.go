package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if c.Storage.Backend == BackendPostgres && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the postgres backend")
	}
	if c.Database.LockTimeout < 0 {
		return fmt.Errorf("database.lock_timeout must not be negative")
	}

	if err := c.Changelog.validate(); err != nil {
		return fmt.Errorf("changelog: %w", err)
	}

	return nil
}

func (s *StorageConfig) validate() error {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	switch s.Backend {
	case BackendPostgres:
	case BackendBadger:
		if !s.InMemory && s.Path == "" {
			return fmt.Errorf("path is required for the badger backend unless in_memory is set")
		}
	default:
		return fmt.Errorf("backend must be %q or %q (got %q)", BackendPostgres, BackendBadger, s.Backend)
	}
	return nil
}

func (c *ChangelogConfig) validate() error {
	c.SensitiveFields = trimAll(c.SensitiveFields)
	c.ReviewerRoles = trimAll(c.ReviewerRoles)

	if strings.TrimSpace(c.CategoryField) == "" {
		return fmt.Errorf("category_field must not be empty, use %q to review every persona", NoCategory)
	}
	if strings.TrimSpace(c.ReplayNote) == "" {
		return fmt.Errorf("replay_note must not be empty")
	}
	for field, role := range c.RealmAdminRoles {
		if strings.TrimSpace(field) == "" || strings.TrimSpace(role) == "" {
			return fmt.Errorf("realm_admin_roles: empty field or role in %q:%q", field, role)
		}
	}
	return nil
}

// trimAll drops blank entries and surrounding whitespace.
func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
