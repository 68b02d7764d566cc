// Package events announces ingestion progress to other processes.
//
// Each file outcome is published as JSON on
//
//	<prefix>.file.<status>     status is processed, skipped or failed
//
// and each completed run on
//
//	<prefix>.run.completed
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// FileEvent describes the outcome of ingesting one file.
type FileEvent struct {
	RunID      string    `json:"run_id"`
	Path       string    `json:"path"`
	Collection string    `json:"collection,omitempty"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Documents  int       `json:"documents"`
	Time       time.Time `json:"time"`
}

// RunEvent summarizes a completed ingestion run.
type RunEvent struct {
	RunID       string         `json:"run_id"`
	Root        string         `json:"root"`
	Files       int            `json:"files"`
	Processed   int            `json:"processed"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	Stored      int            `json:"stored"`
	FailedDocs  int            `json:"failed_docs"`
	Collections map[string]int `json:"collections"`
	Duration    time.Duration  `json:"duration_ns"`
	Time        time.Time      `json:"time"`
}

// Publisher announces ingestion events. Publishing never blocks ingestion:
// callers log and ignore errors.
type Publisher interface {
	PublishFile(ctx context.Context, ev FileEvent) error
	PublishRun(ctx context.Context, ev RunEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// PublishFile does nothing.
func (Noop) PublishFile(context.Context, FileEvent) error { return nil }

// PublishRun does nothing.
func (Noop) PublishRun(context.Context, RunEvent) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

// NATSPublisher publishes events on a NATS connection.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
	logger *zap.Logger
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("docrag"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	p := NewNATSPublisher(nc, prefix, logger)
	p.owned = true
	return p, nil
}

// NewNATSPublisher wraps an existing connection. Close does not close nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "docrag"
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// FileSubject returns the subject a file event with status is published on.
func (p *NATSPublisher) FileSubject(status string) string {
	return p.prefix + ".file." + status
}

// RunSubject returns the subject run events are published on.
func (p *NATSPublisher) RunSubject() string {
	return p.prefix + ".run.completed"
}

// PublishFile publishes ev on <prefix>.file.<status>.
func (p *NATSPublisher) PublishFile(ctx context.Context, ev FileEvent) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	return p.publish(ctx, p.FileSubject(ev.Status), ev)
}

// PublishRun publishes ev on <prefix>.run.completed and flushes.
func (p *NATSPublisher) PublishRun(ctx context.Context, ev RunEvent) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if err := p.publish(ctx, p.RunSubject(), ev); err != nil {
		return err
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection if the publisher owns it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.nc.Drain()
}
