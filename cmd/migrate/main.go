// Package main applies the embedded schema migrations.
//
// Usage:
//
//	migrate [-config file] [-env file] up
//	migrate down N
//	migrate version
//	migrate force V
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"pharmastock/internal/infrastructure/config"
	"pharmastock/internal/infrastructure/migration"
	"pharmastock/pkg/logger"
)

func main() {
	configFile := flag.String("config", "", "path to config.toml")
	envFile := flag.String("env", ".env", "path to a .env file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] up | down N | version | force V\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	m, err := migration.New(cfg.Database.URL, log)
	if err != nil {
		log.Fatalw("failed to open migrations", "error", err)
	}
	defer func() { _ = m.Close() }()

	if err := run(m, flag.Args()); err != nil {
		log.Fatalw("migration failed", "command", flag.Arg(0), "error", err)
	}
}

func run(m *migration.Migrator, args []string) error {
	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		n, err := intArg(args, 1)
		if err != nil {
			return err
		}
		return m.Down(n)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	case "force":
		v, err := intArg(args, 0)
		if err != nil {
			return err
		}
		return m.Force(v)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func intArg(args []string, fallback int) (int, error) {
	if len(args) < 2 {
		if fallback > 0 {
			return fallback, nil
		}
		return 0, fmt.Errorf("%s needs a numeric argument", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid argument %q", args[1])
	}
	return n, nil
}
