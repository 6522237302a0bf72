package api

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// metrics returns GET /metrics — hub state in Prometheus text exposition
// format, encoded directly from client_model metric families.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s := h.hub.Snapshot()
	families := []*dto.MetricFamily{
		gauge("feastline_connections",
			"Number of currently connected WebSocket clients.",
			float64(s.Connections)),
		gauge("feastline_rooms",
			"Number of rooms with at least one member.",
			float64(s.Rooms)),
		gauge("feastline_driver_locations",
			"Number of driver positions currently tracked.",
			float64(h.locations.Count())),
		counter("feastline_events_routed_total",
			"Total notification events routed through the hub.",
			float64(s.EventsRouted)),
		counter("feastline_deliveries_total",
			"Total successful per-connection deliveries.",
			float64(s.Deliveries)),
		counter("feastline_send_failures_total",
			"Total per-connection send failures (connection removed).",
			float64(s.SendFailures)),
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("api: metrics encode failed", "family", mf.GetName(), "err", err)
			return
		}
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(v)}},
		},
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: proto.Float64(v)}},
		},
	}
}
