// Command rover is the thin CLI wrapping the rover package: "rover
// serve" reports the configured address and waits for a shutdown
// signal without starting the HTTP core, "rover migrate" applies the embedded
// migrations, "rover jobs:worker" runs the asynq+cron job runtime
// standalone, and "rover importmap" manages pinned JavaScript packages.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/gobuffalo/envy"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/roverlang/rover/importmap"
	"github.com/roverlang/rover/jobs"
	"github.com/roverlang/rover/migrations"
)

func main() {
	// GOMAXPROCS defaults to the number of visible CPUs, which on a
	// cgroup-limited container is wrong; set it once before anything
	// else starts.
	if _, err := maxprocs.Set(maxprocs.Logger(func(fmt string, args ...any) {})); err != nil {
		fmt.Fprintf(os.Stderr, "rover: maxprocs: %v\n", err)
	}

	root := &cobra.Command{
		Use:   "rover",
		Short: "Rover application runtime",
	}
	root.AddCommand(serveCmd(), migrateCmd(), jobsWorkerCmd(), importmap.Commands(importmap.NewManager()))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Print the serving address and wait for a shutdown signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := ":" + envy.Get("ROVER_PORT", "4242")
			host := envy.Get("ROVER_HOST", "0.0.0.0")
			if host != "0.0.0.0" {
				addr = host + addr
			}

			if watch {
				stop, err := watchScripts(envy.Get("ROVER_SCRIPT_DIR", "."))
				if err != nil {
					fmt.Fprintf(os.Stderr, "rover: dev watcher disabled: %v\n", err)
				} else {
					defer stop()
				}
			}

			fmt.Printf("rover: serving on %s (debug=%v)\n", addr, envy.Get("ROVER_LOG_LEVEL", "info") == "debug")
			// Embedding hosts call rover.New(cfg) and register routes
			// themselves; the bare CLI has no script source to load
			// routes from, so it starts no reactor: it only prints the
			// address, waits for TERM/INT, and (if --watch) runs the
			// dev-mode file watcher. A real deployment embeds this
			// package rather than running the bare binary.
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			fmt.Println("rover: shutting down")
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "log a message when a file in the script directory changes")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply Rover's embedded migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			runner := migrations.NewRunner(db, migrations.GetRoverMigrations())
			if err := runner.Migrate(context.Background()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("rover: migrations applied")
			return nil
		},
	}
	return cmd
}

func jobsWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs:worker",
		Short: "Run the background job worker (asynq + cron)",
		RunE: func(cmd *cobra.Command, args []string) error {
			redisURL := envy.Get("ROVER_REDIS_URL", "")
			runtime, err := jobs.NewRuntime(redisURL)
			if err != nil {
				return fmt.Errorf("jobs runtime: %w", err)
			}
			runtime.RegisterDefaults()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() { errCh <- runtime.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-sig:
				fmt.Println("rover: stopping job worker")
				return runtime.Stop()
			}
		},
	}
	return cmd
}

// openDatabase resolves ROVER_DATABASE_URL into a *sql.DB and dialect
// string. Rover only ships the sqlite3 driver, so any non-sqlite URL is rejected with a clear error rather
// than silently failing at query time.
func openDatabase() (*sql.DB, string, error) {
	dbURL := envy.Get("ROVER_DATABASE_URL", "rover_development.db")
	dialect := "sqlite3"
	path := dbURL
	switch {
	case strings.HasPrefix(dbURL, "sqlite3://"):
		path = dbURL[len("sqlite3://"):]
	case strings.HasPrefix(dbURL, "sqlite://"):
		path = dbURL[len("sqlite://"):]
	case strings.Contains(dbURL, "://"):
		return nil, "", fmt.Errorf("rover: unsupported database URL %q (only sqlite is bundled)", dbURL)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, "", fmt.Errorf("rover: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("rover: ping database: %w", err)
	}
	return db, dialect, nil
}

// watchScripts installs an fsnotify watcher on dir for a dev-mode
// `serve --watch`. On a write or create it prints a "reload pending"
// line; it does not reload or re-register any handler itself. The returned stop function
// closes the watcher; callers that get a nil error should defer it.
func watchScripts(dir string) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					fmt.Printf("rover: %s changed, reload pending\n", ev.Name)
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "rover: watch error: %v\n", werr)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Close()
	}, nil
}
