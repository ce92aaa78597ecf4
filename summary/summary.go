package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/saavnstats/playwatch/history"
	"github.com/saavnstats/playwatch/shared"
	"github.com/saavnstats/playwatch/utils"
)

// Summary is a pure projection of the history artifacts, recomputed and
// overwritten wholesale every cycle.
type Summary struct {
	GeneratedAt string                 `json:"generated_at"`
	Granularity string                 `json:"granularity"`
	Songs       map[string]SongSummary `json:"songs"`
}

// SongSummary reports the newest sample and its movement against the
// samples one hour and one day back. Pointer fields are null in JSON when
// the series is too short for a reference, which keeps "no data yet"
// distinguishable from a genuine zero-change hour.
type SongSummary struct {
	Current      int64  `json:"current"`
	PreviousHour *int64 `json:"previous_hour"`
	HourIncrease *int64 `json:"hour_increase"`
	Previous24h  *int64 `json:"previous_24h"`
	DayIncrease  *int64 `json:"day_increase"`
	LastUpdated  string `json:"last_updated"`
	Entries      int    `json:"entries"`
}

// Build derives the summary for every song with at least one sample.
// It has no hidden state: same series and clock in, same summary out.
func Build(seriesBySong map[string]history.Series, now time.Time) Summary {
	now = now.In(shared.Location)
	s := Summary{
		GeneratedAt: now.Format(shared.TimestampLayout),
		Granularity: shared.GRANULARITY_HOURLY,
		Songs:       map[string]SongSummary{},
	}

	for id, series := range seriesBySong {
		last, ok := series.Last()
		if !ok {
			continue
		}
		song := SongSummary{
			Current:     last.PlayCount,
			LastUpdated: last.Timestamp,
			Entries:     len(series),
		}
		if ref, ok := referenceAt(series, now.Add(-time.Hour)); ok {
			song.PreviousHour = &ref.PlayCount
			song.HourIncrease = delta(last.PlayCount, ref.PlayCount)
		}
		if ref, ok := referenceAt(series, now.Add(-24*time.Hour)); ok {
			song.Previous24h = &ref.PlayCount
			song.DayIncrease = delta(last.PlayCount, ref.PlayCount)
		}
		s.Songs[id] = song
	}
	return s
}

// referenceAt returns the latest entry whose timestamp is at or before
// the cutoff.
func referenceAt(series history.Series, cutoff time.Time) (history.Entry, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		t, err := series[i].Time()
		if err != nil {
			continue
		}
		if !t.After(cutoff) {
			return series[i], true
		}
	}
	return history.Entry{}, false
}

func delta(current, previous int64) *int64 {
	d := current - previous
	return &d
}

// Hash fingerprints the summary content, ignoring the generation clock,
// so serve mode only publishes when the numbers actually moved.
func (s Summary) Hash() uint64 {
	clone := s
	clone.GeneratedAt = ""
	data, err := json.Marshal(clone)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}

// Store owns the summary artifact, written with the same atomic
// discipline as the history files.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Write(sum Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(s.path, data)
}

// Load reads the artifact back, e.g. to seed serve mode's change
// detection. A missing file yields a zero summary.
func (s *Store) Load() (Summary, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return Summary{}, fmt.Errorf("decoding summary artifact %s: %w", s.path, err)
	}
	return sum, nil
}
