// Command molapd loads a molap database directory and keeps it live for
// an embedding process: the HTTP/legacy-binary front ends, TLS
// termination, and the worker-auth callback protocol are external
// collaborators (spec.md §1) this binary does not implement. What it
// does own is the engine's own lifecycle — load, journal, periodic
// snapshot, graceful shutdown — the same "thin main, real logic in
// internal/" split the torua coordinator and node mains use, just
// without their HTTP layer.
//
// Configuration:
//   - --config: path to a YAML config file (optional; env vars prefixed
//     MOLAP_ also apply, and both layer over internal/config.Defaults())
//   - --data-dir: overrides the config's data_dir
//
// Subcommands:
//
//	molapd serve           load the database, snapshot periodically, run until signaled
//	molapd check-config    resolve config and print it, without touching a data directory
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dreamware/molap/internal/config"
	"github.com/dreamware/molap/internal/cube"
	"github.com/dreamware/molap/internal/engine"
	"github.com/dreamware/molap/internal/journal"
	"github.com/dreamware/molap/internal/logx"
)

var (
	cfgPath      string
	dataDirFlag  string
	logLevelFlag string
)

func main() {
	root := &cobra.Command{
		Use:   "molapd",
		Short: "molap engine daemon",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "override the configured data directory")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "debug, info, warn, or error")

	root.AddCommand(serveCmd(), checkConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	return cfg, nil
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func checkConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "resolve configuration and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			fmt.Printf("%+v\n", cfg)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var snapshotInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "load the database and run until signaled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			logx.Init(os.Stderr, parseLevel(logLevelFlag))
			log := logx.For("molapd")

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}

			db, err := cube.LoadDatabase(cfg, cfg.DataDir)
			if err != nil {
				return fmt.Errorf("load database: %w", err)
			}
			wireJournals(db, cfg)
			eng := engine.New(db)
			_ = eng // held for embedding callers; this binary has no wire surface of its own

			log.Info().Str("data_dir", cfg.DataDir).Strs("cubes", db.Cubes()).Msg("database loaded")

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			ticker := time.NewTicker(snapshotInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if err := db.SaveSnapshot(cfg.DataDir); err != nil {
						log.Error().Err(err).Msg("periodic snapshot failed")
					} else {
						log.Info().Msg("snapshot saved")
					}
				case <-stop:
					log.Info().Msg("shutting down")
					db.Shutdown()
					if err := db.SaveSnapshot(cfg.DataDir); err != nil {
						return fmt.Errorf("final snapshot: %w", err)
					}
					return nil
				}
			}
		},
	}
	cmd.Flags().DurationVar(&snapshotInterval, "snapshot-interval", 5*time.Minute, "how often to save a snapshot and rotate journals")
	return cmd
}

// wireJournals attaches a CommandWriter to the database and to every
// cube it holds, so mutations made after load are appended for the next
// restart to replay. LoadDatabase itself runs with no journal wired,
// which is what keeps replay from re-journaling the very commands it is
// replaying.
func wireJournals(db *cube.Database, cfg config.Config) {
	db.WireJournal(journal.NewCommandWriter(cfg.DataDir+"/db.journal", cfg.JournalRotateBytes))
	for _, name := range db.Cubes() {
		c, ok := db.Cube(name)
		if !ok {
			continue
		}
		c.WireJournal(journal.NewCommandWriter(cfg.DataDir+"/cube_"+name+".journal", cfg.JournalRotateBytes))
	}
}
