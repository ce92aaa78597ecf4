package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"

	"github.com/saavnstats/playwatch/alerts"
	"github.com/saavnstats/playwatch/config"
	"github.com/saavnstats/playwatch/events"
	"github.com/saavnstats/playwatch/history"
	"github.com/saavnstats/playwatch/saavn"
	"github.com/saavnstats/playwatch/summary"
)

const summaryStream = "summary"

// Tracker runs the fetch -> append -> summarize cycle over every
// configured song. One instance serves both the one-shot update command
// and the hourly job in serve mode; cycles never overlap because the
// scheduler (external cron or the in-process one) runs them serially.
type Tracker struct {
	cfg      config.Config
	fetcher  *saavn.Client
	notifier *alerts.Notifier

	lastPublished uint64
}

func New(cfg config.Config, fetcher *saavn.Client, notifier *alerts.Notifier) *Tracker {
	return &Tracker{
		cfg:      cfg,
		fetcher:  fetcher,
		notifier: notifier,
	}
}

// RunCycle fetches every song once and rebuilds the summary. A fetch
// failure skips that song's append but the cycle presses on; a storage
// failure additionally holds back the summary rewrite so a corrupt
// history is never papered over. The returned error is non-nil if
// anything went wrong, which update mode turns into a non-zero exit.
func (t *Tracker) RunCycle(now time.Time) error {
	runID := uuid.NewString()
	logger := slog.With(slog.String("run_id", runID))

	var (
		failures     []error
		storageOk    = true
		fetchedAny   bool
		seriesBySong = map[string]history.Series{}
	)

	for _, song := range t.cfg.Songs {
		store := history.NewStore(t.cfg.HistoryPath(song))

		count, err := t.fetcher.FetchPlayCount(song.URL)
		if err != nil {
			// Retries already happened inside the fetcher; one log line
			// per song keeps the scheduler output readable.
			logger.Error("Failed to fetch play count",
				slog.String("stack", err.Error()),
				slog.String("song", song.ID),
				slog.String("kind", fetchKind(err)),
			)
			failures = append(failures, fmt.Errorf("fetch %s: %w", song.ID, err))
		} else {
			fetchedAny = true
			outcome, err := store.AppendIfNewHour(count, now)
			if err != nil {
				logger.Error("Failed to update history",
					slog.String("stack", err.Error()),
					slog.String("song", song.ID),
				)
				failures = append(failures, fmt.Errorf("store %s: %w", song.ID, err))
				storageOk = false
				continue
			}
			logger.Info("History updated",
				slog.String("song", song.ID),
				slog.String("outcome", outcome.String()),
				slog.Int64("play_count", count),
			)
		}

		series, err := store.Load()
		if err != nil {
			logger.Error("Failed to load history for summary",
				slog.String("stack", err.Error()),
				slog.String("song", song.ID),
			)
			failures = append(failures, fmt.Errorf("load %s: %w", song.ID, err))
			storageOk = false
			continue
		}
		seriesBySong[song.ID] = series
	}

	// A cycle where nothing could be fetched leaves the previous summary
	// in place; skip outcomes still rebuild since they are not failures.
	if fetchedAny && storageOk && hasEntries(seriesBySong) {
		sum := summary.Build(seriesBySong, now)
		if err := summary.NewStore(t.cfg.SummaryPath()).Write(sum); err != nil {
			logger.Error("Failed to write summary",
				slog.String("stack", err.Error()),
			)
			failures = append(failures, fmt.Errorf("summary: %w", err))
		} else {
			t.maybePublish(sum)
		}
	}

	if len(failures) > 0 {
		err := errors.Join(failures...)
		t.notifier.CycleFailed(runID, err)
		return err
	}
	return nil
}

func hasEntries(seriesBySong map[string]history.Series) bool {
	for _, series := range seriesBySong {
		if len(series) > 0 {
			return true
		}
	}
	return false
}

// SeedPublished primes change detection from a previously written
// summary. Serve mode calls this after a redeploy so the first cycle
// doesn't republish numbers subscribers have already seen.
func (t *Tracker) SeedPublished(sum summary.Summary) {
	t.lastPublished = sum.Hash()
}

// maybePublish pushes the fresh summary onto the SSE stream in serve
// mode, but only when its content hash moved since the last publish.
// Reports whether an event went out.
func (t *Tracker) maybePublish(sum summary.Summary) bool {
	if events.Server == nil {
		return false
	}
	hash := sum.Hash()
	if hash == t.lastPublished {
		return false
	}
	byteStream := new(bytes.Buffer)
	if err := json.NewEncoder(byteStream).Encode(sum); err != nil {
		return false
	}
	events.Server.Publish(summaryStream, &sse.Event{Data: byteStream.Bytes()})
	t.lastPublished = hash
	return true
}

func fetchKind(err error) string {
	var fetchErr *saavn.Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind.String()
	}
	return "unknown"
}
