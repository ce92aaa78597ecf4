package main

import (
	"fmt"
	"log/slog"

	"github.com/saavnstats/playwatch/history"
)

// convertHistory migrates a legacy 15-minute CSV history into the hourly
// JSON artifact, thinning it to hourly spacing on the way.
func convertHistory(csvPath, jsonPath string) error {
	series, err := history.LoadCSV(csvPath)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("no usable rows in %s", csvPath)
	}

	thinned := history.ThinHourly(series)
	if err := history.NewStore(jsonPath).Write(thinned); err != nil {
		return err
	}

	slog.Info("Converted legacy history",
		slog.String("csv", csvPath),
		slog.String("json", jsonPath),
		slog.Int("rows", len(series)),
		slog.Int("kept", len(thinned)),
	)
	return nil
}
