// Command migrate applies, inspects and scaffolds the goose SQL migrations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.cmd, "cmd", "up", "up|down|status|version|create|validate|automigrate")
	fs.StringVar(&o.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	fs.StringVar(&o.name, "name", "", "migration name for -cmd=create")
	fs.StringVar(&o.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	switch {
	case o.cmd == "create" && o.name == "":
		return o, errors.New("missing -name for create")
	case o.cmd == "version" && o.version == "":
		return o, errors.New("missing -version for version")
	}
	return o, nil
}

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	// file-only commands need neither config nor a database
	switch o.cmd {
	case "create":
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "created", path)
		return nil
	case "validate":
		versions, err := migrate.ValidateDir(o.dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d migrations valid\n", len(versions))
		return nil
	case "up", "down", "status", "version", "automigrate":
	default:
		return fmt.Errorf("unknown -cmd %q", o.cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": o.cmd, "dir": o.dir})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer client.Close()

	if o.cmd == "automigrate" {
		if err := migrate.Schema(ctx, client.DB(), o.dir); err != nil {
			return err
		}
		logg.Info(ctx, "schema up to date")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	if o.cmd == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, client.Dialect(), o.dir, o.version)
	} else {
		err = migrate.Run(ctx, sqlDB, client.Dialect(), o.dir, o.cmd)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", o.cmd, err)
	}
	logg.Info(ctx, "goose "+o.cmd+" done")
	return nil
}
