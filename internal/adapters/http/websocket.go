package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/samirrijal/etxebila/internal/core/domain"
)

// wsMessage is sent from client to drive the connection's search session.
type wsMessage struct {
	Action     string `json:"action"`      // "select" | "search" | "more" | "clear"
	LocationID string `json:"location_id"` // select only
	Text       string `json:"text"`
}

// wsEvent is sent from server to client.
type wsEvent struct {
	Type     string           `json:"type"` // "snapshot" | "ack" | "error"
	Action   string           `json:"action,omitempty"`
	SearchID string           `json:"search_id,omitempty"`
	Error    string           `json:"error,omitempty"`
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
}

// SearchSocketHandler returns a handler that owns one search session per
// connection and streams every snapshot transition to the client.
// Clients send JSON: {"action":"select","location_id":"bizkaia","text":"piso"}.
// "search" runs text only, "more" loads the next page when connected with
// ?auto_load=false, "clear" drops the results.
func SearchSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log := slog.Default().With("remote", remoteAddr)
		log.Info("ws client connected")

		cfg := deps.Search.Config()
		if c.Query("auto_load") == "false" {
			cfg.AutoLoad = false
		}
		orch := deps.Search.NewSession(cfg)

		ctx, cancel := context.WithCancel(context.Background())

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// The observer runs under the orchestrator lock, so it only stashes
		// the latest snapshot and the writer goroutine sends it.
		var (
			pendingMu sync.Mutex
			pending   *domain.Snapshot
		)
		wake := make(chan struct{}, 1)
		orch.OnChange(func(s domain.Snapshot) {
			pendingMu.Lock()
			pending = &s
			pendingMu.Unlock()
			select {
			case wake <- struct{}{}:
			default:
			}
		})

		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-wake:
					pendingMu.Lock()
					snap := pending
					pending = nil
					pendingMu.Unlock()
					if snap == nil {
						continue
					}
					if err := writeJSON(wsEvent{Type: "snapshot", SearchID: snap.SearchID, Snapshot: snap}); err != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsEvent{Type: "error", Error: "invalid JSON"})
				continue
			}

			switch m.Action {
			case "select", "search":
				locationID := m.LocationID
				if m.Action == "search" {
					locationID = ""
				}
				lookupCtx, lookupCancel := context.WithTimeout(ctx, 5*time.Second)
				sel, err := deps.Search.Resolve(lookupCtx, locationID, m.Text)
				lookupCancel()
				if err != nil {
					_ = writeJSON(wsEvent{Type: "error", Action: m.Action, Error: err.Error()})
					continue
				}
				id := orch.Select(ctx, sel)
				_ = writeJSON(wsEvent{Type: "ack", Action: m.Action, SearchID: id})

			case "more":
				if !orch.LoadMore() {
					_ = writeJSON(wsEvent{Type: "error", Action: m.Action, Error: "no page to load"})
					continue
				}
				_ = writeJSON(wsEvent{Type: "ack", Action: m.Action, SearchID: orch.Snapshot().SearchID})

			case "clear":
				orch.Clear()
				_ = writeJSON(wsEvent{Type: "ack", Action: m.Action})

			default:
				_ = writeJSON(wsEvent{Type: "error", Error: "unknown action: " + m.Action})
			}
		}

		// Cleanup
		cancel()
		orch.Close()
		close(done)
		wg.Wait()
		log.Info("ws client disconnected")
	}
}
