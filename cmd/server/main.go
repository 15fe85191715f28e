package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/neurodive/neurodive-server/internal/auth"
	"github.com/neurodive/neurodive-server/internal/config"
	"github.com/neurodive/neurodive-server/internal/handler"
	"github.com/neurodive/neurodive-server/internal/observability"
	"github.com/neurodive/neurodive-server/internal/room"
	"github.com/neurodive/neurodive-server/internal/store"
	"github.com/neurodive/neurodive-server/internal/tuning"
	"github.com/neurodive/neurodive-server/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	tun, err := tuning.Load(cfg.TuningFile)
	if err != nil {
		slog.Error("failed to load tuning", "error", err)
		os.Exit(1)
	}

	collector, err := observability.NewCollector(nil)
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	var matches store.MatchStore
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		matches = pg
		slog.Info("match store connected")
	} else {
		slog.Info("no DATABASE_URL set, match records disabled")
	}

	verifier := auth.NewTicketVerifier(cfg.AuthSecret)
	if !verifier.Enabled() {
		slog.Warn("no AUTH_SECRET set, guest login enabled")
	}

	hub := ws.NewHub()
	rm := room.NewManager(room.Deps{
		Tuning:    tun,
		Metrics:   collector,
		Matches:   matches,
		ReplayDir: cfg.ReplayDir,
	})
	router := handler.NewRouter(rm, verifier)

	hub.OnMessage = router.HandleMessage
	hub.OnDisconnect = router.HandleDisconnect

	go hub.Run()

	http.HandleFunc("/health", handleHealth)
	http.Handle("/metrics", collector.Handler())
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, router, w, r)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("server starting", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleWebSocket(hub *ws.Hub, router *handler.Router, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := ws.NewClient(uuid.NewString(), hub, conn)
	hub.Register <- client
	router.StartAuthTimeout(client)

	go client.WritePump()
	go client.ReadPump()
}

func setupLogger(cfg *config.Config) {
	var h slog.Handler
	opts := &slog.HandlerOptions{}

	switch cfg.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	switch cfg.LogFormat {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
