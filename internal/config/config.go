package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Changelog ChangelogConfig `yaml:"changelog"`
	Log       LogConfig       `yaml:"log"`
}

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// StorageConfig selects where personas and their history live.
type StorageConfig struct {
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"postgres"`

	// Badger settings. Path is ignored when InMemory is set.
	Path       string `yaml:"path"        env:"STORAGE_PATH"        env-default:"./data/registry"`
	InMemory   bool   `yaml:"in_memory"   env:"STORAGE_IN_MEMORY"   env-default:"false"`
	SyncWrites bool   `yaml:"sync_writes" env:"STORAGE_SYNC_WRITES" env-default:"true"`

	// MigrateOnStart applies pending database migrations when the app starts.
	MigrateOnStart bool `yaml:"migrate_on_start" env:"STORAGE_MIGRATE_ON_START" env-default:"false"`
}

// DatabaseConfig holds PostgreSQL connection settings. DSN is required for
// the postgres backend only.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`

	// LockTimeout bounds how long a change waits for another change to the
	// same persona. Zero waits forever.
	LockTimeout time.Duration `yaml:"lock_timeout" env:"DATABASE_LOCK_TIMEOUT" env-default:"10s"`
}

// NoCategory as category_field makes the review policy apply to every persona.
const NoCategory = "none"

// ChangelogConfig holds the review policy and engine settings.
type ChangelogConfig struct {
	SensitiveFields []string `yaml:"sensitive_fields" env:"CHANGELOG_SENSITIVE_FIELDS" env-default:"birthday,family_name,given_names" env-separator:","`
	CategoryField   string   `yaml:"category_field"   env:"CHANGELOG_CATEGORY_FIELD"   env-default:"is_cde_realm"`
	AutoCommit      bool     `yaml:"auto_commit"      env:"CHANGELOG_AUTO_COMMIT"      env-default:"false"`
	ReplayNote      string   `yaml:"replay_note"      env:"CHANGELOG_REPLAY_NOTE"      env-default:"Displaced change replayed."`
	CreationNote    string   `yaml:"creation_note"    env:"CHANGELOG_CREATION_NOTE"    env-default:"Persona created."`

	// ReviewerRoles may review changes of any persona.
	ReviewerRoles []string `yaml:"reviewer_roles" env:"CHANGELOG_REVIEWER_ROLES" env-default:"core_admin" env-separator:","`
	// RealmAdminRoles maps a realm flag field to the role that reviews
	// personas having that flag set.
	RealmAdminRoles map[string]string `yaml:"realm_admin_roles" env:"CHANGELOG_REALM_ADMIN_ROLES" env-default:"is_cde_realm:cde_admin,is_event_realm:event_admin" env-separator:","`
}

// Category returns the configured category field, or "" when the policy
// applies to every persona.
func (c ChangelogConfig) Category() string {
	if c.CategoryField == NoCategory {
		return ""
	}
	return c.CategoryField
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
