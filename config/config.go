package config

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
)

type Config struct {
	Playwatch PlaywatchConfig
	Pushover  PushoverConfig
	Songs     []Song `json:"songs"`
}

type PlaywatchConfig struct {
	ListenAddr            string `env:"LISTEN_ADDR"`
	LogLevel              string `env:"LOG_LEVEL"`
	BackgroundJobsEnabled bool   `env:"BACKGROUND_JOBS_ENABLED"`
	SongsFile             string `env:"SONGS_FILE"`
	StorageDir            string `env:"STORAGE_DIR"`
}

type PushoverConfig struct {
	Recipient string `env:"PUSHOVER_RECIPIENT"`
	Token     string `env:"PUSHOVER_TOKEN"`
}

// Song is one tracked JioSaavn page. Each song owns its history artifact;
// all songs share the summary artifact.
type Song struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	HistoryFile string `json:"history_file"`
}

// The two "They Call Him OG" tracks the monitor was originally built for.
// Used whenever no songs file is configured.
func defaultSongs() []Song {
	return []Song{
		{
			ID:          "firestorm",
			Title:       "Firestorm",
			URL:         "https://www.jiosaavn.com/album/firestorm-from-they-call-him-og/yHG4eDZauLQ_",
			HistoryFile: "firestorm_history.json",
		},
		{
			ID:          "hungry_cheetah",
			Title:       "Hungry Cheetah",
			URL:         "https://www.jiosaavn.com/song/hungry-cheetah-from-they-call-him-og/OgQvaDxEbwE",
			HistoryFile: "hungry_cheetah_history.json",
		},
	}
}

func Load() (Config, error) {
	cfg := Config{
		Playwatch: PlaywatchConfig{
			ListenAddr:            ":5000",
			LogLevel:              "info",
			BackgroundJobsEnabled: true,
			StorageDir:            ".",
		},
	}

	c := config.New().AddFeeder(feeder.Env{}).AddStruct(&cfg)
	if err := c.Feed(); err != nil {
		return cfg, err
	}

	if cfg.Playwatch.SongsFile != "" {
		songs := config.New().AddFeeder(feeder.Json{Path: cfg.Playwatch.SongsFile}).AddStruct(&cfg)
		if err := songs.Feed(); err != nil {
			return cfg, err
		}
	}

	if len(cfg.Songs) == 0 {
		cfg.Songs = defaultSongs()
	}

	return cfg, nil
}

// HistoryPath resolves a song's history artifact inside the storage dir.
func (c *Config) HistoryPath(song Song) string {
	return filepath.Join(c.Playwatch.StorageDir, song.HistoryFile)
}

func (c *Config) SummaryPath() string {
	return filepath.Join(c.Playwatch.StorageDir, "stats_summary.json")
}

func (c *Config) GetLogLevel() slog.Leveler {
	logLevel := strings.ToLower(c.Playwatch.LogLevel)
	if logLevel == "error" {
		return slog.LevelError
	}
	if logLevel == "warning" {
		return slog.LevelWarn
	}
	if logLevel == "info" {
		return slog.LevelInfo
	}
	if logLevel == "debug" {
		return slog.LevelDebug
	}
	// default to info if unknown
	slog.With(slog.String("log_level", logLevel)).Info("Received invalid log level. Defaulting to INFO.")
	return slog.LevelInfo
}
