// Package config centralizes thermidor's runtime configuration: cobra
// flags bound through viper, with environment variable fallback and
// optional .env loading, grounded on 88lin-divinesense's
// cmd/divinesense/main.go flag/viper wiring.
package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration for the serve and
// migrate subcommands.
type Config struct {
	// ListenAddr is the HTTP projection's bind address.
	ListenAddr string
	// CORSOrigin is the single origin allowed to read the HTTP projection.
	CORSOrigin string

	// WorkflowDir is where each workflow's JSON checkpoint lives, one file
	// per configured workflow name.
	WorkflowDir string
	// SnapshotDBPath is the bbolt file backing the read-side snapshot
	// cache (see internal/registry).
	SnapshotDBPath string

	// DatabaseURL is the Postgres URL the migrate subcommand connects to;
	// migrate refuses to run when it is empty. serve does not read it.
	DatabaseURL string
	// MigrationsDir holds the ordered *.sql files applied by `migrate`.
	MigrationsDir string

	// CronEnabled turns on scheduled re-execution of workflows.
	CronEnabled bool
	// CronSchedule is a standard 5-field cron expression or a descriptor
	// such as "@every 1h" (robfig/cron's default parser; there is no seconds
	// field), applied to every configured workflow when CronEnabled.
	CronSchedule string

	// JSONLog forces structured JSON logging regardless of
	// THERMIDOR_JSON_LOG; flags take precedence over the environment.
	JSONLog bool
}

// Defaults are applied by BindFlags before any flag, env var, or .env
// value is considered.
var Defaults = Config{
	ListenAddr:     "0.0.0.0:3000",
	CORSOrigin:     "http://localhost:3001",
	WorkflowDir:    "./data/workflows",
	SnapshotDBPath: "./data/snapshot.db",
	MigrationsDir:  "./migrations",
	CronSchedule:   "@every 1h",
}

// BindFlags registers the shared configuration flags on cmd's flag set and
// binds them into v, so later calls to Load read the resolved
// flag/env/default precedence chain.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()
	flags.String("listen-addr", Defaults.ListenAddr, "HTTP projection bind address")
	flags.String("cors-origin", Defaults.CORSOrigin, "origin allowed to read the HTTP projection")
	flags.String("workflow-dir", Defaults.WorkflowDir, "directory holding per-workflow JSON checkpoints")
	flags.String("snapshot-db", Defaults.SnapshotDBPath, "bbolt file backing the read-side snapshot cache")
	flags.String("database-url", "", "postgres URL used by the migrate subcommand")
	flags.String("migrations-dir", Defaults.MigrationsDir, "directory of ordered *.sql migration files")
	flags.Bool("cron-enabled", false, "enable scheduled workflow re-execution")
	flags.String("cron-schedule", Defaults.CronSchedule, "cron expression for scheduled re-execution")
	flags.Bool("json-log", false, "force structured JSON logging")

	for _, name := range []string{
		"listen-addr", "cors-origin", "workflow-dir", "snapshot-db",
		"database-url", "migrations-dir", "cron-enabled", "cron-schedule", "json-log",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	v.SetEnvPrefix("thermidor")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load resolves v's bound flags/env vars/defaults into a Config.
func Load(v *viper.Viper) Config {
	return Config{
		ListenAddr:     v.GetString("listen-addr"),
		CORSOrigin:     v.GetString("cors-origin"),
		WorkflowDir:    v.GetString("workflow-dir"),
		SnapshotDBPath: v.GetString("snapshot-db"),
		DatabaseURL:    v.GetString("database-url"),
		MigrationsDir:  v.GetString("migrations-dir"),
		CronEnabled:    v.GetBool("cron-enabled"),
		CronSchedule:   v.GetString("cron-schedule"),
		JSONLog:        v.GetBool("json-log"),
	}
}
