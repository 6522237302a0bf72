package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/feastline/feastline/pkg/types"
	"github.com/feastline/feastline/server/internal/api"
	"github.com/feastline/feastline/server/internal/auth"
	"github.com/feastline/feastline/server/internal/hub"
	"github.com/feastline/feastline/server/internal/track"
)

// noAuth is the pass-through middleware used by most tests.
func noAuth(next http.Handler) http.Handler { return next }

// sink records frames pushed to a fake connection.
type sink struct {
	id   string
	msgs [][]byte
}

func (s *sink) ID() string             { return s.id }
func (s *sink) Send(data []byte) error { s.msgs = append(s.msgs, data); return nil }
func (s *sink) Close()                 {}

func newServer(t *testing.T) (*httptest.Server, *hub.Hub, *track.Store) {
	t.Helper()
	h := hub.New()
	locations := track.New(2 * time.Minute)
	srv := httptest.NewServer(api.New(h, locations, noAuth))
	t.Cleanup(srv.Close)
	return srv, h, locations
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func TestNotify_TargetedDelivery(t *testing.T) {
	srv, h, _ := newServer(t)

	member := &sink{id: "member"}
	h.Registry().Join(member, types.CustomerRoom(42))

	resp, body := post(t, srv.URL+"/api/v1/notify",
		`{"type":"new_order","orderId":99,"message":"Order received","rooms":["customer:42"]}`)

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202 (%s)", resp.StatusCode, body)
	}
	var nr api.NotifyResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if nr.Attempted != 1 || nr.Delivered != 1 {
		t.Errorf("counts: got %+v, want 1/1", nr)
	}
	if len(member.msgs) != 1 {
		t.Fatalf("member frames: got %d, want 1", len(member.msgs))
	}

	var pushed types.ServerMessage
	if err := json.Unmarshal(member.msgs[0], &pushed); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if pushed.Data.OrderID != 99 {
		t.Errorf("orderId: got %d, want 99", pushed.Data.OrderID)
	}
	if pushed.Data.Timestamp.IsZero() {
		t.Error("timestamp should be stamped")
	}
}

func TestNotify_Broadcast_NoConnections(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, body := post(t, srv.URL+"/api/v1/notify",
		`{"type":"order_status_update","broadcast":true}`)

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", resp.StatusCode)
	}
	var nr api.NotifyResponse
	json.Unmarshal(body, &nr) //nolint:errcheck
	if nr.Attempted != 0 || nr.Delivered != 0 {
		t.Errorf("counts: got %+v, want 0/0", nr)
	}
}

func TestNotify_Rejects(t *testing.T) {
	srv, _, _ := newServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"unknown type", `{"type":"order_deleted","rooms":["customer:1"]}`},
		{"no target", `{"type":"new_order"}`},
		{"bad room", `{"type":"new_order","rooms":["admin:1"]}`},
		{"broadcast and rooms", `{"type":"new_order","broadcast":true,"rooms":["customer:1"]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, _ := post(t, srv.URL+"/api/v1/notify", c.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestNotify_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newServer(t)
	resp, _ := get(t, srv.URL+"/api/v1/notify")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func TestNotify_APIKeyEnforced(t *testing.T) {
	h := hub.New()
	locations := track.New(2 * time.Minute)
	mw := auth.APIKeyMiddleware("apikey", "x-api-key", "secret")
	srv := httptest.NewServer(api.New(h, locations, mw))
	defer srv.Close()

	// Without the key.
	resp, _ := post(t, srv.URL+"/api/v1/notify", `{"type":"new_order","broadcast":true}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without key: got %d, want 401", resp.StatusCode)
	}

	// With the key.
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/notify",
		strings.NewReader(`{"type":"new_order","broadcast":true}`))
	req.Header.Set("x-api-key", "secret")
	authResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST with key: %v", err)
	}
	authResp.Body.Close()
	if authResp.StatusCode != http.StatusAccepted {
		t.Errorf("status with key: got %d, want 202", authResp.StatusCode)
	}

	// Health is not guarded.
	healthResp, _ := get(t, srv.URL+"/api/v1/health")
	if healthResp.StatusCode != http.StatusOK {
		t.Errorf("health status: got %d, want 200", healthResp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, h, _ := newServer(t)
	h.Registry().Join(&sink{id: "c1"}, types.DriverRoom(7))

	resp, body := get(t, srv.URL+"/api/v1/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var hr api.HealthResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if hr.Status != "ok" {
		t.Errorf("status field: got %q, want ok", hr.Status)
	}
	if hr.Connections != 1 || hr.Rooms != 1 {
		t.Errorf("counts: got %+v, want 1 connection, 1 room", hr)
	}
}

func TestStats(t *testing.T) {
	srv, h, _ := newServer(t)
	h.Registry().Join(&sink{id: "c1"}, types.CustomerRoom(42))
	h.Emit(types.Event{Type: types.EventNewOrder},
		types.TargetRooms(types.CustomerRoom(42)))

	_, body := get(t, srv.URL+"/api/v1/stats")

	var sr api.StatsResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sr.RoomSizes["customer:42"] != 1 {
		t.Errorf("room_sizes: got %v", sr.RoomSizes)
	}
	if sr.EventsRouted != 1 || sr.Deliveries != 1 {
		t.Errorf("counters: got %+v", sr)
	}
}

func TestDriverLocation(t *testing.T) {
	srv, _, locations := newServer(t)
	locations.Put(7, types.LatLng{Lat: 52.52, Lng: 13.405})

	resp, body := get(t, srv.URL+"/api/v1/drivers/7/location")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", resp.StatusCode, body)
	}

	var lr api.DriverLocationResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if lr.DriverID != 7 || lr.Lat != 52.52 || lr.Lng != 13.405 {
		t.Errorf("payload: got %+v", lr)
	}
	if lr.UpdatedAt == "" {
		t.Error("updated_at: missing")
	}
}

func TestDriverLocation_NotFound(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, _ := get(t, srv.URL+"/api/v1/drivers/404/location")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}

	resp, _ = get(t, srv.URL+"/api/v1/drivers/not-a-number/location")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status for bad id: got %d, want 400", resp.StatusCode)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	srv, h, _ := newServer(t)
	h.Registry().Join(&sink{id: "c1"}, types.CustomerRoom(42))
	h.Emit(types.Event{Type: types.EventNewOrder},
		types.TargetRooms(types.CustomerRoom(42)))

	resp, body := get(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type: got %q, want text exposition", ct)
	}

	text := string(body)
	for _, want := range []string{
		"feastline_connections 1",
		"feastline_rooms 1",
		"feastline_events_routed_total 1",
		"feastline_deliveries_total 1",
		"# TYPE feastline_connections gauge",
		"# TYPE feastline_events_routed_total counter",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q:\n%s", want, text)
		}
	}
}
