package migrations

import (
	"embed"
)

// RoverMigrations contains the internal migrations that back the
// packages carried over from the teacher stack: auth (users,
// sessions, audit trail, login attempts), jobs (run
// history), and mail (send log).
//
//go:embed rover/*.sql
var RoverMigrations embed.FS

// GetRoverMigrations returns the embedded filesystem containing
// Rover's own migrations. Host applications combine it with their
// own application-specific migration filesystem before constructing
// a Runner.
//
// Example usage in a host app:
//
//	func main() {
//	    runner := migrations.NewRunner(db, migrations.GetRoverMigrations())
//	    runner.Migrate(ctx)
//	}
func GetRoverMigrations() embed.FS {
	return RoverMigrations
}

// MigrationList returns the names of Rover's own migrations, in the
// order they apply.
func MigrationList() []string {
	return []string{
		"001_create_users",
		"002_create_sessions",
		"003_create_jobs",
		"004_create_mail_log",
	}
}

// Version reports the version of Rover's own migration set, so a host
// app can check compatibility before combining it with its own.
func Version() string {
	return "0.1.0"
}
