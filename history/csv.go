package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Legacy CSV histories were appended every 15 minutes. When converting we
// thin them down to roughly hourly spacing; the slack stops a run that
// fired at :58 one hour and :02 the next from dropping a sample.
const minGap = 55 * time.Minute

// LoadCSV reads a legacy `timestamp,play_count` history file. Rows with
// missing fields are skipped, rows that fail to parse abort the
// conversion so nothing gets silently dropped.
func LoadCSV(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	tsCol, countCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "timestamp":
			tsCol = i
		case "play_count":
			countCol = i
		}
	}
	if tsCol < 0 || countCol < 0 {
		return nil, fmt.Errorf("csv %s is missing timestamp/play_count columns", path)
	}

	var series Series
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		ts := strings.TrimSpace(row[tsCol])
		rawCount := strings.TrimSpace(row[countCol])
		if ts == "" || rawCount == "" {
			continue
		}
		count, err := strconv.ParseInt(rawCount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %q: play_count is not an integer", row)
		}
		entry := Entry{Timestamp: ts, PlayCount: count}
		if _, err := entry.Time(); err != nil {
			return nil, fmt.Errorf("row %q: %w", row, err)
		}
		series = append(series, entry)
	}
	return series, nil
}

// ThinHourly sorts a series chronologically and keeps only entries at
// least minGap apart, always retaining the newest one.
func ThinHourly(series Series) Series {
	if len(series) == 0 {
		return series
	}

	sorted := make(Series, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, _ := sorted[i].Time()
		tj, _ := sorted[j].Time()
		return ti.Before(tj)
	})

	thinned := Series{sorted[0]}
	lastKept, _ := sorted[0].Time()
	for _, entry := range sorted[1:] {
		t, _ := entry.Time()
		if t.Sub(lastKept) >= minGap {
			thinned = append(thinned, entry)
			lastKept = t
		}
	}

	newest := sorted[len(sorted)-1]
	if thinned[len(thinned)-1].Timestamp != newest.Timestamp {
		thinned = append(thinned, newest)
	}
	return thinned
}
