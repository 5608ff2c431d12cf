package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oprtools/armytracker/internal/dispatcher"
)

// commandMessage is a single table-client command on the feed socket.
type commandMessage struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// commandResult is the per-command reply.
type commandResult struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Table clients run on the local network, often from file:// pages.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// runServer accepts table-client connections and feeds their commands
// into the dispatcher. Blocks until the listener fails.
func runServer(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthcheck", handleHealthcheck)
	mux.HandleFunc("/feed", handleFeed)

	Logger.Info("Listening for table clients", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error("Failed to upgrade feed connection", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	Logger.Info("Feed connection opened", "remote", r.RemoteAddr)

	for {
		var msg commandMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Logger.Error("Feed connection error", "error", err, "remote", r.RemoteAddr)
			} else {
				Logger.Info("Feed connection closed", "remote", r.RemoteAddr)
			}
			return
		}

		result, err := eventDispatcher.Dispatch(dispatcher.Event{
			Command:   msg.Command,
			Args:      msg.Args,
			Timestamp: time.Now(),
		})

		resp := commandResult{OK: err == nil, Result: result}
		if err != nil {
			resp.Error = err.Error()
		}
		if err := conn.WriteJSON(resp); err != nil {
			Logger.Error("Failed to write feed response", "error", err, "remote", r.RemoteAddr)
			return
		}
	}
}
