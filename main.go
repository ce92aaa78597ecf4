package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	// Artifacts are stamped in Asia/Kolkata no matter where this runs,
	// including scratch containers with no tz database.
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/saavnstats/playwatch/alerts"
	"github.com/saavnstats/playwatch/config"
	"github.com/saavnstats/playwatch/saavn"
	"github.com/saavnstats/playwatch/tracker"
)

func main() {

	if err := godotenv.Load(); err != nil {
		fmt.Println(err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.GetLogLevel(),
	}))
	slog.SetDefault(logger)

	// The scheduler invokes us with no arguments so the bare binary is
	// one update cycle.
	command := "update"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "update":
		t := tracker.New(cfg, saavn.NewClient(nil), alerts.NewNotifier(cfg.Pushover))
		if err := t.RunCycle(time.Now()); err != nil {
			os.Exit(1)
		}
	case "serve":
		if err := serve(cfg); err != nil {
			slog.Error("Server exited", slog.String("stack", err.Error()))
			os.Exit(1)
		}
	case "convert":
		if len(os.Args) != 4 {
			fmt.Fprintln(os.Stderr, "usage: playwatch convert <legacy.csv> <history.json>")
			os.Exit(2)
		}
		if err := convertHistory(os.Args[2], os.Args[3]); err != nil {
			slog.Error("Conversion failed", slog.String("stack", err.Error()))
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want update, serve or convert)\n", command)
		os.Exit(2)
	}
}
