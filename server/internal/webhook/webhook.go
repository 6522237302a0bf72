package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/feastline/feastline/pkg/types"
	"github.com/feastline/feastline/server/internal/config"
)

const deliverTimeout = 10 * time.Second

// Sink forwards selected notification events to configured webhook targets —
// typically a restaurant's POS integration or an ops Slack channel. Delivery
// is asynchronous and best-effort: errors are logged and never reach the
// emitting collaborator.
//
// Sink is safe for concurrent use and implements hub.EventSink.
type Sink struct {
	mu      sync.RWMutex
	targets []config.WebhookConfig
	client  *http.Client
}

// New creates a Sink for the given targets. A Sink with no targets is valid —
// Deliver becomes a no-op.
func New(targets []config.WebhookConfig) *Sink {
	return &Sink{
		targets: targets,
		client:  &http.Client{Timeout: deliverTimeout},
	}
}

// SetTargets replaces the target list. Used by config hot-reload.
func (s *Sink) SetTargets(targets []config.WebhookConfig) {
	s.mu.Lock()
	s.targets = targets
	s.mu.Unlock()
}

// Deliver forwards ev to every target whose event filter matches.
// Returns immediately; posting happens on a background goroutine.
func (s *Sink) Deliver(ev types.Event) {
	s.mu.RLock()
	targets := s.targets
	s.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	go s.deliver(targets, ev)
}

func (s *Sink) deliver(targets []config.WebhookConfig, ev types.Event) {
	for _, wh := range targets {
		if !wh.Wants(ev.Type) {
			continue
		}
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = s.sendSlack(url, ev)
		case "http":
			err = s.sendHTTP(url, ev)
		default:
			slog.Warn("webhook: unknown target type — skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("webhook: delivery failed",
				"type", wh.Type,
				"event", ev.Type,
				"order_id", ev.OrderID,
				"err", err,
			)
		} else {
			slog.Debug("webhook: delivered",
				"type", wh.Type,
				"event", ev.Type,
				"order_id", ev.OrderID,
			)
		}
	}
}

func (s *Sink) sendSlack(url string, ev types.Event) error {
	text := fmt.Sprintf("*[%s]*", ev.Type)
	if ev.OrderID != 0 {
		text += fmt.Sprintf(" order #%d", ev.OrderID)
	}
	if ev.Message != "" {
		text += " — " + ev.Message
	}
	body, _ := json.Marshal(map[string]string{"text": text})
	return s.post(url, body)
}

func (s *Sink) sendHTTP(url string, ev types.Event) error {
	body, _ := json.Marshal(map[string]interface{}{"event": ev})
	return s.post(url, body)
}

func (s *Sink) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
