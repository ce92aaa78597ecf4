package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/rs/cors"

	"github.com/saavnstats/playwatch/alerts"
	"github.com/saavnstats/playwatch/config"
	"github.com/saavnstats/playwatch/events"
	"github.com/saavnstats/playwatch/saavn"
	"github.com/saavnstats/playwatch/summary"
	"github.com/saavnstats/playwatch/tracker"
)

// serve runs the hourly cycle in-process and exposes the artifacts over
// HTTP. The handlers are strictly readers: only the scheduled cycle
// writes, so there is nothing to coordinate.
func serve(cfg config.Config) error {
	events.Init()

	t := tracker.New(cfg, saavn.NewClient(nil), alerts.NewNotifier(cfg.Pushover))

	// Assuming we have just redeployed, prime change detection from the
	// artifact on disk so the first cycle doesn't republish old numbers
	if sum, err := summary.NewStore(cfg.SummaryPath()).Load(); err == nil {
		t.SeedPublished(sum)
	}

	scheduler := setupJobs(t)
	if cfg.Playwatch.BackgroundJobsEnabled {
		scheduler.StartAsync()
		fmt.Println("Hourly update job has started up in the background.")
	} else {
		fmt.Println("Background jobs are disabled.")
	}

	router := registerRoutes(http.NewServeMux(), cfg)

	fmt.Printf("playwatch is serving at http://localhost%s\n", cfg.Playwatch.ListenAddr)

	err := http.ListenAndServe(cfg.Playwatch.ListenAddr, router)
	scheduler.Stop()
	return err
}

func renderJSONMessage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	res := map[string]string{"message": message}
	json.NewEncoder(w).Encode(res)
}

func registerRoutes(mux *http.ServeMux, cfg config.Config) http.Handler {

	events.Server.CreateStream("summary")

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "Welcome to playwatch, a JioSaavn play count monitor.\nSummary lives at <a href=\"/api/v1/summary\">/api/v1/summary</a>\n")
	})

	mux.HandleFunc("/api/v1/summary", func(w http.ResponseWriter, r *http.Request) {
		serveArtifact(w, cfg.SummaryPath())
	})

	mux.HandleFunc("/api/v1/history/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/history/")
		for _, song := range cfg.Songs {
			if song.ID == id {
				serveArtifact(w, cfg.HistoryPath(song))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		renderJSONMessage(w, fmt.Sprintf("no song with id %q", id))
	})

	mux.HandleFunc("/events", events.Server.ServeHTTP)

	return cors.Default().Handler(mux)
}

// serveArtifact streams an artifact file as-is. Artifacts are only ever
// swapped in with an atomic rename so a read never sees a partial write.
func serveArtifact(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		w.WriteHeader(http.StatusNotFound)
		renderJSONMessage(w, "no data recorded yet")
		return
	}
	if err != nil {
		slog.Error("Failed to read artifact",
			slog.String("stack", err.Error()),
			slog.String("path", path),
		)
		w.WriteHeader(http.StatusInternalServerError)
		renderJSONMessage(w, "failed to read artifact")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
