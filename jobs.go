package main

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/saavnstats/playwatch/shared"
	"github.com/saavnstats/playwatch/tracker"
)

func setupJobs(t *tracker.Tracker) *gocron.Scheduler {
	s := gocron.NewScheduler(shared.Location)

	// One cycle straight away so a fresh deploy has artifacts to serve,
	// then hourly. gocron runs jobs serially per scheduler so cycles
	// can't overlap.
	s.Every(1).Hour().StartImmediately().Do(func() {
		if err := t.RunCycle(time.Now()); err != nil {
			slog.Error("Scheduled update cycle failed",
				slog.String("stack", err.Error()),
			)
		}
	})

	slog.Info("Jobs scheduled. Scheduler not running yet.")

	return s
}
