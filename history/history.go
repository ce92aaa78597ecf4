package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/saavnstats/playwatch/shared"
	"github.com/saavnstats/playwatch/utils"
)

// ErrCorrupt wraps any failure to decode an existing history artifact.
// A corrupt file is surfaced, never silently replaced with an empty
// series, so years of samples can't be lost to one bad write elsewhere.
var ErrCorrupt = errors.New("corrupt history artifact")

type Entry struct {
	Timestamp string `json:"timestamp"`
	PlayCount int64  `json:"play_count"`
}

// Legacy artifacts written by the old monitor store play counts as JSON
// strings and suffix timestamps with " IST", so decoding accepts both
// forms. New writes always use the canonical ones.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timestamp string          `json:"timestamp"`
		PlayCount json.RawMessage `json:"play_count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	count := strings.TrimSpace(strings.Trim(string(raw.PlayCount), `"`))
	n, err := strconv.ParseInt(count, 10, 64)
	if err != nil {
		return fmt.Errorf("play_count %q is not an integer", count)
	}
	e.Timestamp = raw.Timestamp
	e.PlayCount = n
	return nil
}

// Time parses the entry timestamp as civil IST.
func (e Entry) Time() (time.Time, error) {
	ts := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(e.Timestamp), "IST"))
	return time.ParseInLocation(shared.TimestampLayout, ts, shared.Location)
}

type Series []Entry

func (s Series) Last() (Entry, bool) {
	if len(s) == 0 {
		return Entry{}, false
	}
	return s[len(s)-1], true
}

type Outcome int

const (
	Appended Outcome = iota
	SkippedSameHour
	SkippedDecreasing
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case SkippedSameHour:
		return "skipped_same_hour"
	case SkippedDecreasing:
		return "skipped_decreasing"
	}
	return "unknown"
}

// Store owns one song's history artifact. There is no locking: the
// external scheduler guarantees a single writer per cycle.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the full series. A missing file is the first-run case and
// yields an empty series; anything undecodable is ErrCorrupt.
func (s *Store) Load() (Series, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Series{}, nil
	}
	if err != nil {
		return nil, err
	}
	var series Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("%w (%s): %v", ErrCorrupt, s.path, err)
	}
	return series, nil
}

// AppendIfNewHour appends a sample unless the last stored entry already
// covers this calendar hour, or the fetched value went backwards. An
// unchanged value in a fresh hour is still appended so the series stays a
// faithful hourly sampling log.
func (s *Store) AppendIfNewHour(count int64, now time.Time) (Outcome, error) {
	series, err := s.Load()
	if err != nil {
		return 0, err
	}

	now = now.In(shared.Location)

	if last, ok := series.Last(); ok {
		lastTime, err := last.Time()
		if err != nil {
			return 0, fmt.Errorf("%w (%s): %v", ErrCorrupt, s.path, err)
		}
		if hourKey(lastTime) == hourKey(now) {
			return SkippedSameHour, nil
		}
		if count < last.PlayCount {
			return SkippedDecreasing, nil
		}
	}

	series = append(series, Entry{
		Timestamp: now.Format(shared.TimestampLayout),
		PlayCount: count,
	})
	if err := s.Write(series); err != nil {
		return 0, err
	}
	return Appended, nil
}

// Write persists the full series with the temp-file-then-rename dance so a
// reader never sees a partial artifact.
func (s *Store) Write(series Series) error {
	data, err := json.MarshalIndent(series, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(s.path, data)
}

func hourKey(t time.Time) string {
	return t.Format("2006-01-02 15")
}
