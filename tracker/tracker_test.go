package tracker

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saavnstats/playwatch/alerts"
	"github.com/saavnstats/playwatch/config"
	"github.com/saavnstats/playwatch/events"
	"github.com/saavnstats/playwatch/history"
	"github.com/saavnstats/playwatch/saavn"
	"github.com/saavnstats/playwatch/shared"
	"github.com/saavnstats/playwatch/summary"
)

const songPage = `<html><body>
<p class="u-centi u-deci@lg u-color-js-gray">2,41,657 Plays</p>
</body></html>`

func testConfig(t *testing.T, songs ...config.Song) config.Config {
	t.Helper()
	return config.Config{
		Playwatch: config.PlaywatchConfig{StorageDir: t.TempDir()},
		Songs:     songs,
	}
}

func testTracker(cfg config.Config) *Tracker {
	fetcher := saavn.NewClient(&http.Client{})
	fetcher.RetryWait = time.Millisecond
	return New(cfg, fetcher, alerts.NewNotifier(config.PushoverConfig{}))
}

func istTime(day, hour, min int) time.Time {
	return time.Date(2025, 9, day, hour, min, 0, 0, shared.Location)
}

func TestRunCycle_FirstRun(t *testing.T) {
	defer gock.Off()
	gock.New("https://www.jiosaavn.com").
		Get("/song/test").
		Reply(200).
		BodyString(songPage)

	song := config.Song{ID: "test", Title: "Test", URL: "https://www.jiosaavn.com/song/test", HistoryFile: "test_history.json"}
	cfg := testConfig(t, song)

	err := testTracker(cfg).RunCycle(istTime(26, 10, 5))
	require.NoError(t, err)

	series, err := history.NewStore(cfg.HistoryPath(song)).Load()
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, int64(241657), series[0].PlayCount)
	assert.Equal(t, "2025-09-26 10:05:00", series[0].Timestamp)

	sum, err := summary.NewStore(cfg.SummaryPath()).Load()
	require.NoError(t, err)
	require.Contains(t, sum.Songs, "test")
	assert.Equal(t, int64(241657), sum.Songs["test"].Current)
	assert.Nil(t, sum.Songs["test"].HourIncrease)
	assert.Nil(t, sum.Songs["test"].DayIncrease)
}

func TestRunCycle_FetchExhaustionTouchesNothing(t *testing.T) {
	defer gock.Off()
	gock.New("https://www.jiosaavn.com").
		Get("/song/down").
		Times(3).
		Reply(500)

	song := config.Song{ID: "down", URL: "https://www.jiosaavn.com/song/down", HistoryFile: "down_history.json"}
	cfg := testConfig(t, song)

	err := testTracker(cfg).RunCycle(istTime(26, 10, 5))
	require.Error(t, err)

	_, statErr := os.Stat(cfg.HistoryPath(song))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(cfg.SummaryPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCycle_FetchFailureLeavesSummaryAlone(t *testing.T) {
	defer gock.Off()
	gock.New("https://www.jiosaavn.com").
		Get("/song/down").
		Times(3).
		Reply(500)

	song := config.Song{ID: "down", URL: "https://www.jiosaavn.com/song/down", HistoryFile: "down_history.json"}
	cfg := testConfig(t, song)

	// History from earlier cycles exists but this cycle fetches nothing,
	// so the (missing) summary must not be fabricated from stale data
	_, err := history.NewStore(cfg.HistoryPath(song)).AppendIfNewHour(90, istTime(26, 9, 0))
	require.NoError(t, err)

	err = testTracker(cfg).RunCycle(istTime(26, 10, 5))
	require.Error(t, err)

	_, statErr := os.Stat(cfg.SummaryPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCycle_SecondRunSameHourIsNoop(t *testing.T) {
	defer gock.Off()
	gock.New("https://www.jiosaavn.com").
		Get("/song/test").
		Times(2).
		Reply(200).
		BodyString(songPage)

	song := config.Song{ID: "test", URL: "https://www.jiosaavn.com/song/test", HistoryFile: "test_history.json"}
	cfg := testConfig(t, song)
	tr := testTracker(cfg)

	require.NoError(t, tr.RunCycle(istTime(26, 10, 5)))
	require.NoError(t, tr.RunCycle(istTime(26, 10, 45)))

	series, err := history.NewStore(cfg.HistoryPath(song)).Load()
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestRunCycle_OneSongFailingStillUpdatesTheRest(t *testing.T) {
	defer gock.Off()
	gock.New("https://www.jiosaavn.com").
		Get("/song/good").
		Reply(200).
		BodyString(songPage)
	gock.New("https://www.jiosaavn.com").
		Get("/song/bad").
		Times(3).
		Reply(500)

	good := config.Song{ID: "good", URL: "https://www.jiosaavn.com/song/good", HistoryFile: "good_history.json"}
	bad := config.Song{ID: "bad", URL: "https://www.jiosaavn.com/song/bad", HistoryFile: "bad_history.json"}
	cfg := testConfig(t, good, bad)

	err := testTracker(cfg).RunCycle(istTime(26, 10, 5))
	require.Error(t, err)

	series, err := history.NewStore(cfg.HistoryPath(good)).Load()
	require.NoError(t, err)
	assert.Len(t, series, 1)

	sum, err := summary.NewStore(cfg.SummaryPath()).Load()
	require.NoError(t, err)
	assert.Contains(t, sum.Songs, "good")
	assert.NotContains(t, sum.Songs, "bad")
}

// Stands up the process-global SSE server for one test and tears it
// back down so the other cycles keep running headless.
func withEventServer(t *testing.T) {
	t.Helper()
	events.Init()
	events.Server.CreateStream(summaryStream)
	t.Cleanup(func() { events.Server = nil })
}

func TestMaybePublish_GatesOnContentHash(t *testing.T) {
	withEventServer(t)

	tr := testTracker(testConfig(t))
	series := map[string]history.Series{
		"test": {{Timestamp: "2025-09-26 10:00:00", PlayCount: 100}},
	}

	first := summary.Build(series, istTime(26, 10, 5))
	assert.True(t, tr.maybePublish(first))

	// Same numbers rebuilt later in the hour: nothing goes out
	again := summary.Build(series, istTime(26, 10, 45))
	assert.False(t, tr.maybePublish(again))

	moved := summary.Build(map[string]history.Series{
		"test": {
			{Timestamp: "2025-09-26 10:00:00", PlayCount: 100},
			{Timestamp: "2025-09-26 11:00:00", PlayCount: 110},
		},
	}, istTime(26, 11, 5))
	assert.True(t, tr.maybePublish(moved))
}

func TestMaybePublish_NoopWithoutEventServer(t *testing.T) {
	tr := testTracker(testConfig(t))
	series := map[string]history.Series{
		"test": {{Timestamp: "2025-09-26 10:00:00", PlayCount: 100}},
	}

	assert.False(t, tr.maybePublish(summary.Build(series, istTime(26, 10, 5))))
	assert.Zero(t, tr.lastPublished)
}

func TestSeedPublished_SuppressesRepublishAfterRestart(t *testing.T) {
	withEventServer(t)

	tr := testTracker(testConfig(t))
	series := map[string]history.Series{
		"test": {{Timestamp: "2025-09-26 10:00:00", PlayCount: 100}},
	}
	sum := summary.Build(series, istTime(26, 10, 5))

	// A fresh tracker seeded from the artifact on disk must not
	// re-announce the summary subscribers already have
	tr.SeedPublished(sum)
	assert.False(t, tr.maybePublish(sum))

	moved := summary.Build(map[string]history.Series{
		"test": {
			{Timestamp: "2025-09-26 10:00:00", PlayCount: 100},
			{Timestamp: "2025-09-26 11:00:00", PlayCount: 110},
		},
	}, istTime(26, 11, 5))
	assert.True(t, tr.maybePublish(moved))
}

func TestRunCycle_PublishesThroughEventServer(t *testing.T) {
	withEventServer(t)

	defer gock.Off()
	gock.New("https://www.jiosaavn.com").
		Get("/song/test").
		Times(2).
		Reply(200).
		BodyString(songPage)

	song := config.Song{ID: "test", URL: "https://www.jiosaavn.com/song/test", HistoryFile: "test_history.json"}
	cfg := testConfig(t, song)
	tr := testTracker(cfg)

	require.NoError(t, tr.RunCycle(istTime(26, 10, 5)))
	firstHash := tr.lastPublished
	assert.NotZero(t, firstHash)

	// Same hour, same numbers: change detection holds the hash steady
	require.NoError(t, tr.RunCycle(istTime(26, 10, 45)))
	assert.Equal(t, firstHash, tr.lastPublished)
}

func TestRunCycle_CorruptHistoryHoldsBackSummary(t *testing.T) {
	defer gock.Off()
	gock.New("https://www.jiosaavn.com").
		Get("/song/test").
		Reply(200).
		BodyString(songPage)

	song := config.Song{ID: "test", URL: "https://www.jiosaavn.com/song/test", HistoryFile: "test_history.json"}
	cfg := testConfig(t, song)
	require.NoError(t, os.WriteFile(cfg.HistoryPath(song), []byte(`[{"broken`), 0644))

	err := testTracker(cfg).RunCycle(istTime(26, 10, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, history.ErrCorrupt)

	// The corrupt artifact is preserved and no summary is fabricated
	data, readErr := os.ReadFile(cfg.HistoryPath(song))
	require.NoError(t, readErr)
	assert.Equal(t, `[{"broken`, string(data))
	_, statErr := os.Stat(cfg.SummaryPath())
	assert.True(t, os.IsNotExist(statErr))
}
