package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/starspacegroup/starspace-server/internal/checkpoint"
	"github.com/starspacegroup/starspace-server/internal/directory"
	"github.com/starspacegroup/starspace-server/internal/game"
	"github.com/starspacegroup/starspace-server/internal/net/ws"
	"github.com/starspacegroup/starspace-server/internal/room"
	"github.com/starspacegroup/starspace-server/internal/telemetry"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	tickRate := flag.Int("tick-rate", 0, "simulation ticks per second (0 = default)")
	maxPlayers := flag.Int("max-players", 0, "players per room (0 = default)")
	directoryURL := flag.String("directory-url", "", "lobby directory base URL (empty disables notifications)")
	flag.Parse()

	logger := telemetry.WrapLogger(log.New(os.Stdout, "", log.LstdFlags))
	metrics := telemetry.NewCounters()

	var notifier directory.Notifier = directory.Nop{}
	if *directoryURL != "" {
		notifier = directory.NewAsync(directory.NewHTTPNotifier(*directoryURL, logger), logger)
	}

	cfg := game.Config{TickRate: *tickRate, MaxPlayers: *maxPlayers}.Normalized()
	mgr := room.NewManager(cfg, room.Deps{
		Logger:   logger,
		Metrics:  metrics,
		Store:    checkpoint.NewMemoryStore(),
		Notifier: notifier,
	})

	startedAt := time.Now()

	// Reap rooms that ended and drained their last session.
	go func() {
		for range time.Tick(30 * time.Second) {
			mgr.Prune()
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			UptimeSeconds float64           `json:"uptimeSeconds"`
			Rooms         int               `json:"rooms"`
			TickRate      int               `json:"tickRate"`
			MaxPlayers    int               `json:"maxPlayers"`
			Counters      map[string]uint64 `json:"counters"`
		}{
			UptimeSeconds: time.Since(startedAt).Seconds(),
			Rooms:         mgr.Count(),
			TickRate:      cfg.TickRate,
			MaxPlayers:    cfg.MaxPlayers,
			Counters:      metrics.Snapshot(),
		}
		data, err := json.Marshal(payload)
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	mux.HandleFunc("/ws", ws.Handler(mgr, logger))

	srv := &http.Server{Addr: *addr, Handler: mux}

	// Checkpoint every room before exiting so a restarted process resumes
	// where this one left off.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Printf("shutting down, checkpointing %d room(s)", mgr.Count())
		mgr.Shutdown()
		srv.Close()
	}()

	logger.Printf("server listening on %s (tick rate %d, %d players per room)", *addr, cfg.TickRate, cfg.MaxPlayers)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
