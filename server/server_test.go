package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/matchgame/config"
	"github.com/wfunc/matchgame/coordinator"
	"github.com/wfunc/matchgame/monitor"
	"github.com/wfunc/matchgame/room"
)

func newTestServer(t *testing.T) (*GameServer, *httptest.Server) {
	t.Helper()
	mon := monitor.NewMonitor("test")
	coord := coordinator.New(room.NewRoomManager(), coordinator.Options{Metrics: mon})
	gs := NewGameServer(
		config.ServerConfig{AllowedOrigins: []string{"*"}},
		config.RoomConfig{SendBuffer: 32, Heartbeat: 30 * time.Second},
		coord, mon, "test-version",
	)
	ts := httptest.NewServer(gs.Handler())
	t.Cleanup(func() {
		ts.Close()
		gs.Shutdown(context.Background())
	})
	return gs, ts
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(frame string) {
	c.t.Helper()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		c.t.Fatalf("Write failed: %v", err)
	}
}

// next reads one event as a generic map.
func (c *testClient) next() map[string]any {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("Read failed: %v", err)
	}
	var ev map[string]any
	if err := json.Unmarshal(data, &ev); err != nil {
		c.t.Fatalf("Bad event %s: %v", data, err)
	}
	return ev
}

func (c *testClient) expect(eventType string) map[string]any {
	c.t.Helper()
	ev := c.next()
	if ev["type"] != eventType {
		c.t.Fatalf("Expected %s, got %v", eventType, ev)
	}
	return ev
}

func TestGameOverWebSocket(t *testing.T) {
	_, ts := newTestServer(t)
	host := dial(t, ts)
	guest := dial(t, ts)

	host.send(`{"type":"create","maxNumber":5}`)
	created := host.expect("room_created")
	code := created["code"].(string)
	if created["maxNumber"].(float64) != 5 {
		t.Errorf("Unexpected room_created %v", created)
	}

	guest.send(`{"type":"join","code":"` + strings.ToLower(code) + `"}`)
	joined := guest.expect("room_joined")
	if joined["code"] != code {
		t.Errorf("Expected normalized code %s, got %v", code, joined["code"])
	}
	guest.expect("game_start")
	if ev := host.expect("player_joined"); ev["playerCount"].(float64) != 2 {
		t.Errorf("Unexpected player_joined %v", ev)
	}
	host.expect("game_start")

	host.send(`{"type":"submit_number","number":2}`)
	ready := guest.expect("player_ready")
	if ready["playerId"] != created["playerId"] {
		t.Errorf("player_ready should name the host, got %v", ready)
	}
	guest.send(`{"type":"submit_number","number":2}`)
	host.expect("player_ready")

	for _, c := range []*testClient{host, guest} {
		res := c.expect("game_result")
		if res["match"] != true {
			t.Errorf("Expected a match, got %v", res)
		}
		if _, ok := res["canReverse"]; ok {
			t.Error("Match results must not carry canReverse")
		}
	}

	guest.conn.Close()
	if ev := host.expect("player_left"); ev["playerCount"].(float64) != 1 {
		t.Errorf("Unexpected player_left %v", ev)
	}
}

func TestMultipleFramesPerMessage(t *testing.T) {
	_, ts := newTestServer(t)
	c := dial(t, ts)

	c.send("{\"type\":\"create\",\"maxNumber\":9}\n\n{\"type\":\"dance\"}\n{\"type\":\"reverse\"}")
	c.expect("room_created")
	if ev := c.expect("error"); ev["message"] != coordinator.ErrMalformedCommand.Message {
		t.Errorf("Unexpected error %v", ev)
	}
	if ev := c.expect("error"); ev["message"] != "Game has not started" {
		t.Errorf("Unexpected error %v", ev)
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	c.expect("error")

	// The connection survives errors.
	c.send(`{"type":"join","code":"NOPE00"}`)
	if ev := c.expect("error"); !strings.HasPrefix(ev["message"].(string), "Room not found") {
		t.Errorf("Unexpected error %v", ev)
	}
}

func TestHTTPRoutes(t *testing.T) {
	gs, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	body := new(bytes.Buffer)
	body.ReadFrom(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body.String(), "Expected WebSocket") {
		t.Errorf("Plain GET /ws: %d %q", resp.StatusCode, body.String())
	}

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/ws", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" ||
		resp.Header.Get("Access-Control-Allow-Headers") != corsAllowHeaders {
		t.Errorf("Missing CORS headers: %v", resp.Header)
	}

	for path, want := range map[string]int{
		"/healthz":          http.StatusOK,
		"/version":          http.StatusOK,
		"/metrics":          http.StatusOK,
		"/rooms/ZZZZZZ/qr":  http.StatusNotFound,
		"/debug/pprof/heap": http.StatusNotFound,
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, want)
		}
	}

	c := dial(t, ts)
	c.send(`{"type":"create","maxNumber":3}`)
	code := c.expect("room_created")["code"].(string)

	resp, err = http.Get(ts.URL + "/rooms/" + strings.ToLower(code) + "/qr")
	if err != nil {
		t.Fatal(err)
	}
	png := new(bytes.Buffer)
	png.ReadFrom(resp.Body)
	resp.Body.Close()
	if resp.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")) {
		t.Errorf("Expected a PNG QR code, got %s", resp.Header.Get("Content-Type"))
	}

	r := httptest.NewRequest("GET", "http://game.example/rooms/"+code+"/qr", nil)
	if got := gs.joinURL(r, code); got != "http://game.example/?room="+code {
		t.Errorf("Unexpected join URL %s", got)
	}
}

func TestCheckOrigin(t *testing.T) {
	gs := NewGameServer(config.ServerConfig{AllowedOrigins: []string{"https://good.example"}},
		config.RoomConfig{SendBuffer: 1, Heartbeat: time.Second}, nil, nil, "")

	r := httptest.NewRequest("GET", "/ws", nil)
	if !gs.checkOrigin(r) {
		t.Error("Requests without Origin should be allowed")
	}
	r.Header.Set("Origin", "https://good.example")
	if !gs.checkOrigin(r) {
		t.Error("Listed origin should be allowed")
	}
	r.Header.Set("Origin", "https://evil.example")
	if gs.checkOrigin(r) {
		t.Error("Unlisted origin should be rejected")
	}
}
