package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/etxebila/internal/adapters/http"
	"github.com/samirrijal/etxebila/internal/core/domain"
)

type wsEvent struct {
	Type     string           `json:"type"`
	Action   string           `json:"action"`
	SearchID string           `json:"search_id"`
	Error    string           `json:"error"`
	Snapshot *domain.Snapshot `json:"snapshot"`
}

func startServer(t *testing.T, deps *handler.Dependencies) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

// readUntil reads events until match returns true or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wsEvent) bool) wsEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev wsEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode %s: %v", msg, err)
		}
		if match(ev) {
			return ev
		}
	}
}

func snapshotWith(status domain.SessionStatus) func(wsEvent) bool {
	return func(ev wsEvent) bool {
		return ev.Type == "snapshot" && ev.Snapshot != nil && ev.Snapshot.Status == status
	}
}

func TestSearchSocket_SelectAndLoadMore(t *testing.T) {
	idx := &mockIndex{
		searchPropertiesFn: func(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
			res := &domain.IndexResult{TotalCount: 300}
			for i := (q.Page - 1) * q.PerPage; i < q.Page*q.PerPage && i < 300; i++ {
				res.Documents = append(res.Documents, domain.Property{ID: fmt.Sprintf("p-%d", i)})
			}
			return res, nil
		},
	}
	addr := startServer(t, makeDeps(idx))

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/search?auto_load=false", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"action": "select", "location_id": "bizkaia"}); err != nil {
		t.Fatal(err)
	}
	ready := readUntil(t, conn, snapshotWith(domain.StatusReady))
	if len(ready.Snapshot.Documents) != 250 || ready.Snapshot.TotalCount != 300 {
		t.Fatalf("unexpected first page: %d docs, total %d", len(ready.Snapshot.Documents), ready.Snapshot.TotalCount)
	}

	if err := conn.WriteJSON(map[string]string{"action": "more"}); err != nil {
		t.Fatal(err)
	}
	done := readUntil(t, conn, snapshotWith(domain.StatusComplete))
	if len(done.Snapshot.Documents) != 300 {
		t.Errorf("expected all 300 documents, got %d", len(done.Snapshot.Documents))
	}
	if done.SearchID != ready.SearchID {
		t.Errorf("expected the same session, got %s then %s", ready.SearchID, done.SearchID)
	}
}

func TestSearchSocket_Errors(t *testing.T) {
	addr := startServer(t, makeDeps(&mockIndex{}))

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/search", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	ev := readUntil(t, conn, func(ev wsEvent) bool { return ev.Type == "error" })
	if ev.Error != "invalid JSON" {
		t.Errorf("unexpected error %q", ev.Error)
	}

	_ = conn.WriteJSON(map[string]string{"action": "select", "location_id": "atlantis"})
	ev = readUntil(t, conn, func(ev wsEvent) bool { return ev.Type == "error" })
	if ev.Action != "select" || ev.Error == "" {
		t.Errorf("expected select lookup error, got %+v", ev)
	}

	_ = conn.WriteJSON(map[string]string{"action": "more"})
	ev = readUntil(t, conn, func(ev wsEvent) bool { return ev.Type == "error" })
	if ev.Action != "more" {
		t.Errorf("expected more to be refused with no session, got %+v", ev)
	}
}

func TestSearchSocket_TextSearchThenClear(t *testing.T) {
	idx := &mockIndex{
		searchPropertiesFn: func(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
			return &domain.IndexResult{Documents: docs("t", 2), TotalCount: 2}, nil
		},
	}
	addr := startServer(t, makeDeps(idx))

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/search", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.WriteJSON(map[string]string{"action": "search", "text": "atico"})
	done := readUntil(t, conn, snapshotWith(domain.StatusComplete))
	if done.Snapshot.Mode != domain.ModeText || len(done.Snapshot.Documents) != 2 {
		t.Errorf("unexpected snapshot %+v", done.Snapshot)
	}

	_ = conn.WriteJSON(map[string]string{"action": "clear"})
	readUntil(t, conn, snapshotWith(domain.StatusIdle))
}
