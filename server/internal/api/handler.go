package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/feastline/feastline/pkg/types"
	"github.com/feastline/feastline/server/internal/hub"
	"github.com/feastline/feastline/server/internal/track"
)

// Handler is the HTTP handler for the collaborator-facing REST surface:
// the notify endpoint, health/stats, driver locations, and the Prometheus
// exposition at /metrics.
type Handler struct {
	hub       *hub.Hub
	locations *track.Store
	mux       *http.ServeMux
}

// New creates a Handler wired to the given hub and location store and
// registers all routes. authMW guards the notify endpoint; pass the identity
// middleware when auth mode is "none".
func New(h *hub.Hub, locations *track.Store, authMW func(http.Handler) http.Handler) http.Handler {
	hd := &Handler{hub: h, locations: locations, mux: http.NewServeMux()}

	hd.mux.Handle("/api/v1/notify", authMW(http.HandlerFunc(hd.notify)))
	hd.mux.HandleFunc("/api/v1/health", hd.health)
	hd.mux.HandleFunc("/api/v1/stats", hd.stats)
	hd.mux.HandleFunc("/api/v1/drivers/", hd.driverLocation) // subtree — extracts {id}
	hd.mux.HandleFunc("/metrics", hd.metrics)

	return hd
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// notify handles POST /api/v1/notify — emit one event into the hub.
func (h *Handler) notify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json body")
		return
	}

	et := types.EventType(req.Type)
	if !et.Valid() {
		jsonErr(w, http.StatusBadRequest, "unknown event type "+strconv.Quote(req.Type))
		return
	}

	var target types.Target
	switch {
	case req.Broadcast && len(req.Rooms) > 0:
		jsonErr(w, http.StatusBadRequest, "broadcast and rooms are mutually exclusive")
		return
	case req.Broadcast:
		target = types.TargetAll()
	case len(req.Rooms) == 0:
		jsonErr(w, http.StatusBadRequest, "targeted event needs at least one room")
		return
	default:
		rooms := make([]types.RoomKey, 0, len(req.Rooms))
		for _, s := range req.Rooms {
			room, err := types.ParseRoomKey(s)
			if err != nil {
				jsonErr(w, http.StatusBadRequest, err.Error())
				return
			}
			rooms = append(rooms, room)
		}
		target = types.TargetRooms(rooms...)
	}

	d := h.hub.Emit(types.Event{
		Type:         et,
		OrderID:      req.OrderID,
		RestaurantID: req.RestaurantID,
		DriverID:     req.DriverID,
		Message:      req.Message,
		Data:         req.Data,
		PlaySound:    req.PlaySound,
	}, target)

	jsonResp(w, http.StatusAccepted, NotifyResponse{
		Attempted: d.Attempted,
		Delivered: d.Delivered,
	})
}

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s := h.hub.Snapshot()
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: s.Connections,
		Rooms:       s.Rooms,
	})
}

// stats returns GET /api/v1/stats.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s := h.hub.Snapshot()
	jsonResp(w, http.StatusOK, StatsResponse{
		Connections:  s.Connections,
		Rooms:        s.Rooms,
		RoomSizes:    s.RoomSizes,
		EventsRouted: s.EventsRouted,
		Deliveries:   s.Deliveries,
		SendFailures: s.SendFailures,
	})
}

// driverLocation returns GET /api/v1/drivers/{id}/location.
func (h *Handler) driverLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/drivers/")
	idStr, tail, ok := strings.Cut(rest, "/")
	if !ok || tail != "location" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid driver id")
		return
	}

	p, ok := h.locations.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "driver location unknown")
		return
	}

	jsonResp(w, http.StatusOK, DriverLocationResponse{
		DriverID:  id,
		Lat:       p.Location.Lat,
		Lng:       p.Location.Lng,
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
