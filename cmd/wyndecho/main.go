// Command wyndecho is a demonstration server showing both ways to run a
// wynd.Server: Listen owns its own port, Handler mounts into a host
// router. wyndecho uses the Embedded form so /health and /stats can sit
// alongside the WebSocket endpoint on one gorilla/mux router, the way a
// real service would.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/Guru901/Wynd"
	"github.com/Guru901/Wynd/conn"
	"github.com/Guru901/Wynd/handle"
	"github.com/Guru901/Wynd/types"
)

// instanceID identifies this running process in logs and in /health, so
// that log lines from two instances behind the same load balancer during
// a rolling deploy can be told apart.
var instanceID = uuid.NewString()

// clientState is the per-connection state every wyndecho connection
// carries; it's small enough to stay a value type copied into each
// Connection.
type clientState struct{}

// controlMessage is the tiny JSON envelope wyndecho understands on top
// of raw text frames: a client-side ping gets an immediate pong instead
// of being broadcast, everything else is relayed to the lobby.
type controlMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientID  string `json:"clientId,omitempty"`
}

const lobby types.RoomName = "lobby"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	setupLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := wynd.New[clientState]()
	server.OnConnection(wireConnection)
	server.OnError(func(e *types.ServerError) {
		slog.Error("server error", "error", e)
	})
	server.OnClose(func(id types.ConnectionID, evt types.CloseEvent) {
		slog.Info("connection closed", "id", id, "code", evt.Code, "reason", evt.Reason)
	})

	heartbeat, err := server.StartStatsHeartbeat("@every 30s")
	if err != nil {
		slog.Error("failed to start stats heartbeat", "error", err)
		os.Exit(1)
	}
	defer heartbeat.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/ws", server.Handler())
	router.HandleFunc("/health", healthHandler)
	router.HandleFunc("/stats", statsHandler(server))

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		slog.Info("server starting", "port", port, "instance", instanceID)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func wireConnection(c *conn.Connection[clientState]) {
	c.OnOpen(func(h *handle.Handle[clientState]) {
		h.Join(lobby)
		slog.Info("client connected", "id", h.ID(), "addr", h.Addr())
		_ = h.SendText(`{"type":"welcome"}`)
	})

	c.OnText(func(msg types.TextMessage, h *handle.Handle[clientState]) {
		var ctrl controlMessage
		if err := json.Unmarshal([]byte(msg.Data), &ctrl); err != nil {
			slog.Warn("invalid message", "id", h.ID(), "error", err)
			return
		}

		if ctrl.Type == "ping" {
			pong := controlMessage{Type: "pong", Timestamp: ctrl.Timestamp}
			if resp, err := json.Marshal(pong); err == nil {
				_ = h.SendText(string(resp))
			}
			return
		}

		ctrl.ClientID = strconv.FormatUint(uint64(h.ID()), 10)
		if relay, err := json.Marshal(ctrl); err == nil {
			h.Broadcast.Room(lobby).Text(string(relay))
		}
	})

	c.OnClose(func(evt types.CloseEvent) {
		slog.Info("client closing", "code", evt.Code, "reason", evt.Reason)
	})

	c.OnError(func(evt types.ErrorEvent) {
		slog.Warn("connection error", "message", evt.Message)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "instance": instanceID})
}

func statsHandler(server *wynd.Server[clientState]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, clients := server.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"rooms": rooms, "clients": clients})
	}
}
