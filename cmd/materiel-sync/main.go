package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"materiel-inventory-api/internal/config"
	"materiel-inventory-api/internal/database"
	"materiel-inventory-api/internal/storage"
	materielsync "materiel-inventory-api/internal/sync"
)

const usage = `Usage: materiel-sync [flags] <command>

Commands:
  export    PostgreSQL -> JSON documents
  import    JSON documents -> PostgreSQL
  sync      export, import, then export again
  check     compare record counts on both sides
  status    show the last synchronisation

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stdout, os.Stderr, os.Args[1:]))
}

func run(ctx context.Context, out, errOut io.Writer, args []string) int {
	flagSet := flag.NewFlagSet("materiel-sync", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.Usage = func() {
		fmt.Fprint(errOut, usage)
		flagSet.PrintDefaults()
	}

	envFile := flagSet.String("env-file", ".env", "Environment file to load")
	dataDir := flagSet.String("data-dir", "", "Directory of the JSON documents (overrides DATA_DIR)")
	statusFile := flagSet.String("status-file", "", "Status file path (default <data-dir>/"+materielsync.DefaultStatusFile+")")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return 2
	}
	command := flagSet.Arg(0)

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *statusFile == "" {
		*statusFile = filepath.Join(cfg.Storage.DataDir, materielsync.DefaultStatusFile)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: errOut}).Level(cfg.Level()).With().Timestamp().Logger()
	docs := storage.NewFileStorage(cfg.Storage.DataDir, cfg.Storage.RecordsFile, cfg.Storage.HistoryFile)

	// status only reads the local file
	if command == "status" {
		s := materielsync.NewSynchronizer(nil, docs, *statusFile, logger)
		return printStatus(out, s.Status())
	}

	switch command {
	case "export", "import", "sync", "check":
	default:
		fmt.Fprintf(errOut, "error: unknown command %q\n", command)
		flagSet.Usage()
		return 2
	}

	if err := cfg.ValidateDatabase(); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer db.Close()

	pg := storage.NewPostgresStorage(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	s := materielsync.NewSynchronizer(pg, docs, *statusFile, logger)

	switch command {
	case "export":
		n, err := s.Export(ctx)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		fmt.Fprintf(out, "Export PostgreSQL -> JSON done: %d records\n", n)

	case "import":
		result, err := s.Import(ctx)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		fmt.Fprintf(out, "Import JSON -> PostgreSQL done: %d added, %d updated\n", result.Added, result.Updated)

	case "sync":
		if err := s.Sync(ctx); err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		fmt.Fprintln(out, "Synchronisation complete")

	case "check":
		integrity, err := s.Check(ctx)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		fmt.Fprintf(out, "PostgreSQL: %d records\nJSON: %d records\n", integrity.Database, integrity.Documents)
		if !integrity.Consistent {
			fmt.Fprintln(out, "Mismatch detected, run sync")
			return 1
		}
		fmt.Fprintln(out, "Data is consistent")
	}

	return 0
}

func printStatus(out io.Writer, status materielsync.Status) int {
	timestamp := "never"
	if status.Timestamp != nil {
		timestamp = status.Timestamp.Format("2006-01-02 15:04:05")
	}

	fmt.Fprintln(out, "Last synchronisation:")
	fmt.Fprintf(out, "  Success: %v\n", status.Success)
	fmt.Fprintf(out, "  Date:    %s\n", timestamp)
	fmt.Fprintf(out, "  Message: %s\n", status.Message)
	return 0
}
