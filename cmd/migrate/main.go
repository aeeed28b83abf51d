package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/infra/sqlite"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/golang-migrate/migrate/v4"
)

func main() {
	dbPath := flag.String("db", "", "Path to the sqlite database (defaults to database.path)")
	steps := flag.Int("steps", 1, "Number of migrations to roll back with 'down'")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-db PATH] [-steps N] up|down|version|force VERSION")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)

	if *dbPath == "" {
		*dbPath = cfg.Database.Path
	}
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(os.Stdout, *dbPath, flag.Arg(0), flag.Args()[1:], *steps); err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Str("command", flag.Arg(0)).Msg("Migration failed")
	}
	log.Info().Str("db", *dbPath).Str("command", flag.Arg(0)).Msg("Migration finished")
}

// run executes one migration command against the database at path.
func run(out io.Writer, path, command string, args []string, steps int) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}

	m, err := sqlite.NewMigrator(db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		if steps < 1 {
			return fmt.Errorf("steps must be at least 1, got %d", steps)
		}
		err = m.Steps(-steps)
	case "force":
		if len(args) != 1 {
			return errors.New("force requires a version")
		}
		v, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		err = m.Force(v)
	case "version":
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", command, err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(out, "version: none")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	fmt.Fprintf(out, "version: %d dirty: %t\n", version, dirty)
	return nil
}
