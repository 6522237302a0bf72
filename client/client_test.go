package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/feastline/feastline/client"
	"github.com/feastline/feastline/pkg/types"
)

var upgrader = websocket.Upgrader{}

// testHub is a scriptable stand-in for the hub's /ws endpoint. Every frame
// the agent sends lands on inbound; every accepted connection lands on conns
// so tests can push frames or force a disconnect.
type testHub struct {
	srv     *httptest.Server
	inbound chan []byte
	conns   chan *websocket.Conn
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	h := &testHub{
		inbound: make(chan []byte, 16),
		conns:   make(chan *websocket.Conn, 4),
	}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- sock
		for {
			_, data, err := sock.ReadMessage()
			if err != nil {
				return
			}
			h.inbound <- data
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *testHub) endpoint() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

// accept waits for the next agent connection.
func (h *testHub) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case sock := <-h.conns:
		return sock
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for agent connection")
		return nil
	}
}

// recvFrame waits for the next frame the agent sent.
func (h *testHub) recvFrame(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-h.inbound:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal agent frame: %v", err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for agent frame")
		return nil
	}
}

// push writes one notification frame to the agent.
func push(t *testing.T, sock *websocket.Conn, ev types.Event) {
	t.Helper()
	data, err := json.Marshal(types.Notification(ev))
	if err != nil {
		t.Fatalf("marshal notification: %v", err)
	}
	if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("push notification: %v", err)
	}
}

func recvEvent(t *testing.T, c *client.Client) types.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return types.Event{}
	}
}

// start runs the agent with a short reconnect delay and stops it at cleanup.
func start(t *testing.T, opts client.Options) *client.Client {
	t.Helper()
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 20 * time.Millisecond
	}
	c := client.New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("agent did not stop")
		}
	})
	return c
}

func TestClient_JoinsRoomsOnConnect(t *testing.T) {
	h := newTestHub(t)
	start(t, client.Options{
		Endpoint: h.endpoint(),
		Rooms:    []types.RoomKey{types.CustomerRoom(42), types.DriverRoom(7)},
		UserID:   3,
	})
	h.accept(t)

	first := h.recvFrame(t)
	if first["type"] != "join_customer" || first["customerId"] != float64(42) {
		t.Errorf("first join: got %v", first)
	}
	if first["userId"] != float64(3) {
		t.Errorf("userId: got %v, want 3", first["userId"])
	}

	second := h.recvFrame(t)
	if second["type"] != "join_driver" || second["driverId"] != float64(7) {
		t.Errorf("second join: got %v", second)
	}
}

func TestClient_DeliversEvents(t *testing.T) {
	h := newTestHub(t)

	hooked := make(chan types.Event, 1)
	c := start(t, client.Options{
		Endpoint: h.endpoint(),
		Rooms:    []types.RoomKey{types.CustomerRoom(1)},
		OnEvent:  func(ev types.Event) { hooked <- ev },
	})
	sock := h.accept(t)
	h.recvFrame(t) // join

	want := types.Event{
		Type:      types.EventNewOrder,
		OrderID:   99,
		Message:   "Order received",
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		PlaySound: true,
	}
	push(t, sock, want)

	got := recvEvent(t, c)
	if got.Type != want.Type || got.OrderID != want.OrderID || !got.PlaySound {
		t.Errorf("event: got %+v, want %+v", got, want)
	}

	select {
	case hev := <-hooked:
		if hev.OrderID != want.OrderID {
			t.Errorf("hook event: got %+v", hev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnEvent hook not called")
	}

	hist := c.History()
	if len(hist) != 1 || hist[0].OrderID != 99 {
		t.Errorf("history: got %+v", hist)
	}
}

func TestClient_SuppressesDuplicateEvents(t *testing.T) {
	h := newTestHub(t)
	c := start(t, client.Options{
		Endpoint: h.endpoint(),
		Rooms:    []types.RoomKey{types.CustomerRoom(1)},
	})
	sock := h.accept(t)
	h.recvFrame(t) // join

	dup := types.Event{
		Type:      types.EventDriverAssignment,
		OrderID:   5,
		Timestamp: time.Unix(0, 1_700_000_000_000_000_000).UTC(),
	}
	push(t, sock, dup)
	push(t, sock, dup) // same (type, orderId, timestamp)
	marker := types.Event{
		Type:      types.EventOrderStatusUpdate,
		OrderID:   5,
		Timestamp: time.Unix(0, 1_700_000_000_000_000_001).UTC(),
	}
	push(t, sock, marker)

	if ev := recvEvent(t, c); ev.Type != types.EventDriverAssignment {
		t.Errorf("first event: got %+v", ev)
	}
	// The duplicate must be skipped, so the next event is the marker.
	if ev := recvEvent(t, c); ev.Type != types.EventOrderStatusUpdate {
		t.Errorf("second event: got %+v, want marker", ev)
	}
	if hist := c.History(); len(hist) != 2 {
		t.Errorf("history length: got %d, want 2", len(hist))
	}
}

func TestClient_ReconnectsAndRejoins(t *testing.T) {
	h := newTestHub(t)
	c := start(t, client.Options{
		Endpoint: h.endpoint(),
		Rooms:    []types.RoomKey{types.RestaurantRoom(8)},
	})

	first := h.accept(t)
	join := h.recvFrame(t)
	if join["type"] != "join_restaurant" {
		t.Fatalf("first join: got %v", join)
	}

	// Server-side disconnect. The agent must dial again and re-send the join;
	// nothing is replayed from the gap.
	first.Close() //nolint:errcheck

	h.accept(t)
	rejoin := h.recvFrame(t)
	if rejoin["type"] != "join_restaurant" || rejoin["restaurantId"] != float64(8) {
		t.Errorf("rejoin: got %v", rejoin)
	}
	if !c.Connected() {
		t.Error("agent should report connected after reconnect")
	}
}

func TestClient_HistoryCappedMostRecentFirst(t *testing.T) {
	h := newTestHub(t)
	c := start(t, client.Options{
		Endpoint:     h.endpoint(),
		Rooms:        []types.RoomKey{types.CustomerRoom(1)},
		HistoryLimit: 3,
	})
	sock := h.accept(t)
	h.recvFrame(t) // join

	for i := 1; i <= 5; i++ {
		push(t, sock, types.Event{
			Type:      types.EventOrderStatusUpdate,
			OrderID:   int64(i),
			Timestamp: time.Unix(0, int64(i)).UTC(),
		})
	}
	for i := 0; i < 5; i++ {
		recvEvent(t, c)
	}

	hist := c.History()
	if len(hist) != 3 {
		t.Fatalf("history length: got %d, want 3", len(hist))
	}
	for i, wantOrder := range []int64{5, 4, 3} {
		if hist[i].OrderID != wantOrder {
			t.Errorf("history[%d]: got order %d, want %d", i, hist[i].OrderID, wantOrder)
		}
	}
}

func TestClient_SendLocation(t *testing.T) {
	h := newTestHub(t)
	c := start(t, client.Options{
		Endpoint: h.endpoint(),
		Rooms:    []types.RoomKey{types.DriverRoom(7)},
	})
	h.accept(t)
	h.recvFrame(t) // join

	if err := c.SendLocation(7, types.LatLng{Lat: 52.52, Lng: 13.405}); err != nil {
		t.Fatalf("SendLocation: %v", err)
	}

	frame := h.recvFrame(t)
	if frame["type"] != "update_driver_location" || frame["driverId"] != float64(7) {
		t.Errorf("location frame: got %v", frame)
	}
	loc, _ := frame["location"].(map[string]any)
	if loc["lat"] != 52.52 || loc["lng"] != 13.405 {
		t.Errorf("location payload: got %v", loc)
	}
}

func TestClient_SendLocation_NotConnected(t *testing.T) {
	c := client.New(client.Options{Endpoint: "ws://127.0.0.1:0/ws"})
	err := c.SendLocation(1, types.LatLng{})
	if !errors.Is(err, client.ErrNotConnected) {
		t.Errorf("err: got %v, want ErrNotConnected", err)
	}
}

func TestClient_EventsChannelClosesOnStop(t *testing.T) {
	h := newTestHub(t)

	c := client.New(client.Options{
		Endpoint:       h.endpoint(),
		Rooms:          []types.RoomKey{types.CustomerRoom(1)},
		ReconnectDelay: 20 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	h.accept(t)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-c.Events(); ok {
		t.Error("events channel should be closed")
	}
}
