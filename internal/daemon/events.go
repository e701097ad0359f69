package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/logfields"
	"git.home.luguber.info/inful/gitsource/internal/source"
)

// RefreshRequest is the JSON payload accepted on the subscribe subject.
// A plain-text body naming the source works too; an empty body requests
// a full run.
type RefreshRequest struct {
	Source string `json:"source"`
}

// RunEvent announces a finished sourcing run on the publish subject.
// The /status endpoint reuses it for the last-run block.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Outcome    string    `json:"outcome"`
	Sources    int       `json:"sources"`
	Failed     int       `json:"failed"`
	Files      int       `json:"files"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS float64   `json:"duration_ms"`
}

func runEvent(summary *source.Summary) RunEvent {
	return RunEvent{
		RunID:      summary.RunID.String(),
		Outcome:    summary.Outcome(),
		Sources:    summary.Total,
		Failed:     len(summary.Failed()),
		Files:      summary.Files(),
		StartedAt:  summary.Started,
		DurationMS: float64(summary.Duration.Milliseconds()),
	}
}

// EventBridge connects the daemon to NATS: inbound messages request a
// refresh, outbound messages announce finished runs.
type EventBridge struct {
	cfg    config.EventsConfig
	daemon *Daemon
	conn   *nats.Conn
	sub    *nats.Subscription
}

// NewEventBridge prepares a bridge; Start connects it.
func NewEventBridge(cfg config.EventsConfig, daemon *Daemon) *EventBridge {
	return &EventBridge{cfg: cfg, daemon: daemon}
}

func (b *EventBridge) subscribeSubject() string {
	if b.cfg.SubscribeSubject != "" {
		return b.cfg.SubscribeSubject
	}
	return "gitsource.refresh"
}

func (b *EventBridge) publishSubject() string {
	if b.cfg.PublishSubject != "" {
		return b.cfg.PublishSubject
	}
	return "gitsource.runs"
}

// Start connects and subscribes.
func (b *EventBridge) Start(ctx context.Context) error {
	conn, err := nats.Connect(b.cfg.URL, nats.Name("gitsource-daemon"))
	if err != nil {
		return fmt.Errorf("connect to nats %s: %w", b.cfg.URL, err)
	}
	b.conn = conn

	sub, err := conn.Subscribe(b.subscribeSubject(), b.handleRefresh)
	if err != nil {
		conn.Close()
		return fmt.Errorf("subscribe %s: %w", b.subscribeSubject(), err)
	}
	b.sub = sub

	slog.Info("event bridge connected",
		slog.String("url", conn.ConnectedUrl()),
		logfields.Subject(b.subscribeSubject()))
	return nil
}

// Stop drains the connection so in-flight messages finish.
func (b *EventBridge) Stop(ctx context.Context) error {
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

// parseRefreshSource extracts the requested source name from a refresh
// payload. Empty means a full run.
func parseRefreshSource(data []byte) string {
	var req RefreshRequest
	if err := json.Unmarshal(data, &req); err == nil {
		return strings.TrimSpace(req.Source)
	}
	return strings.TrimSpace(string(data))
}

// handleRefresh reacts to an inbound refresh request. The sync itself
// runs off the dispatch goroutine so slow clones never stall the
// subscription.
func (b *EventBridge) handleRefresh(msg *nats.Msg) {
	name := parseRefreshSource(msg.Data)

	if name == "" {
		slog.Info("refresh event received", logfields.Subject(msg.Subject))
		go b.daemon.runScheduled()
		return
	}

	slog.Info("refresh event received",
		logfields.Subject(msg.Subject),
		logfields.Source(name))
	go func() {
		res, err := b.daemon.RefreshSource(b.daemon.runCtx, name)
		if err != nil {
			slog.Warn("refresh event rejected", logfields.Source(name), logfields.Error(err))
			return
		}
		if res.Err != nil {
			slog.Warn("refresh failed", logfields.Source(name), logfields.Error(res.Err))
		}
	}()
}

// PublishRunCompleted announces a finished run. Publish failures are
// logged, never propagated; the run itself already succeeded.
func (b *EventBridge) PublishRunCompleted(summary *source.Summary) {
	if b == nil || b.conn == nil || summary == nil {
		return
	}

	evt := runEvent(summary)
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("could not marshal run event", logfields.Error(err))
		return
	}
	if err := b.conn.Publish(b.publishSubject(), data); err != nil {
		slog.Warn("could not publish run event",
			logfields.Subject(b.publishSubject()),
			logfields.Error(err))
		return
	}
	slog.Debug("run event published",
		logfields.Subject(b.publishSubject()),
		logfields.RunID(evt.RunID))
}
