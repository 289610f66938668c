package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"amequeue/internal/config"
)

const userAgent = "amequeue/0.1.0"

// Event names a notification-worthy occurrence.
type Event string

const (
	EventJobSucceeded  Event = "job_succeeded"
	EventJobFailed     Event = "job_failed"
	EventJobAborted    Event = "job_aborted"
	EventQueueStarted  Event = "queue_started"
	EventQueueDrained  Event = "queue_drained"
	EventServerOffline Event = "server_offline"
	EventTest          Event = "test"
)

// Payload carries event specific values. Keys are documented per event in
// format.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobSucceeded:  cfg.Notifications.JobSucceeded,
			EventJobFailed:     cfg.Notifications.JobFailed,
			EventJobAborted:    cfg.Notifications.JobAborted,
			EventQueueStarted:  cfg.Notifications.Queue,
			EventQueueDrained:  cfg.Notifications.Queue,
			EventServerOffline: true,
			EventTest:          true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobSucceeded:
		return message{
			title: "amequeue - Encode Complete",
			body:  fmt.Sprintf("✅ Encoded: %s", label(payload)),
			tags:  []string{"amequeue", "encode", "completed"},
		}, true
	case EventJobFailed:
		return message{
			title:    "amequeue - Encode Failed",
			body:     withDetail(fmt.Sprintf("❌ Encode failed: %s", label(payload)), payload),
			tags:     []string{"amequeue", "encode", "failed"},
			priority: "high",
		}, true
	case EventJobAborted:
		return message{
			title: "amequeue - Encode Aborted",
			body:  withDetail(fmt.Sprintf("⏹️ Encode aborted: %s", label(payload)), payload),
			tags:  []string{"amequeue", "encode", "aborted"},
		}, true
	case EventQueueStarted:
		return message{
			title: "amequeue - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %d jobs", intValue(payload["count"])),
			tags:  []string{"amequeue", "queue", "started"},
		}, true
	case EventQueueDrained:
		return queueDrained(payload), true
	case EventServerOffline:
		return message{
			title:    "amequeue - Encoder Offline",
			body:     fmt.Sprintf("⚠️ Encoder at %s reports %s", stringValue(payload["server"]), stringValue(payload["status"])),
			tags:     []string{"amequeue", "server", "offline"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "amequeue - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"amequeue", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func queueDrained(payload Payload) message {
	succeeded := intValue(payload["succeeded"])
	failed := intValue(payload["failed"])
	duration, _ := payload["duration"].(time.Duration)
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	if failed == 0 {
		return message{
			title: "amequeue - Queue Complete",
			body:  fmt.Sprintf("Queue complete: %d jobs encoded in %s", succeeded, duration),
			tags:  []string{"amequeue", "queue", "completed"},
		}
	}
	return message{
		title: "amequeue - Queue Complete (with errors)",
		body:  fmt.Sprintf("Queue complete: %d succeeded, %d failed in %s", succeeded, failed, duration),
		tags:  []string{"amequeue", "queue", "completed"},
	}
}

func label(payload Payload) string {
	if name := stringValue(payload["source"]); name != "" {
		return name
	}
	return stringValue(payload["job_id"])
}

func withDetail(body string, payload Payload) string {
	if detail := stringValue(payload["detail"]); detail != "" {
		return body + "\n" + detail
	}
	return body
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case error:
		return strings.TrimSpace(value.Error())
	case fmt.Stringer:
		return strings.TrimSpace(value.String())
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func intValue(v any) int {
	switch value := v.(type) {
	case int:
		return value
	case int64:
		return int(value)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
