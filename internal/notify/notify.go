// Package notify fans load-completion messages out to configured sinks.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// Level is the severity of a message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message describes one completed load.
type Message struct {
	Level     Level             `json:"level"`
	BatchID   string            `json:"batch_id"`
	Text      string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Load      *types.LoadResult `json:"load"`
}

// Sink is a message destination.
type Sink interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Dispatcher routes messages to every configured sink.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher over sinks.
func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{sinks: sinks, logger: logger, now: time.Now}
}

// FromConfig builds a dispatcher from cfg. A nil cfg yields a dispatcher
// with no sinks.
func FromConfig(ctx context.Context, cfg *types.NotifyConfig, logger *slog.Logger) (*Dispatcher, error) {
	d := NewDispatcher(logger)
	if cfg == nil {
		return d, nil
	}
	if cfg.Console {
		d.sinks = append(d.sinks, NewConsoleSink())
	}
	if cfg.File != "" {
		s, err := NewFileSink(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("creating file sink: %w", err)
		}
		d.sinks = append(d.sinks, s)
	}
	if cfg.WebhookURL != "" {
		d.sinks = append(d.sinks, NewWebhookSink(cfg.WebhookURL))
	}
	if cfg.QueueURL != "" {
		s, err := NewSQSSink(ctx, cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("creating sqs sink: %w", err)
		}
		d.sinks = append(d.sinks, s)
	}
	return d, nil
}

// Len returns the number of sinks.
func (d *Dispatcher) Len() int { return len(d.sinks) }

// Dispatch sends msg to all sinks. Sink errors are logged and the first one
// is returned after every sink has been tried.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	var first error
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			d.logger.Warn("notification failed", "sink", sink.Name(), "batch_id", msg.BatchID, "error", err)
			if first == nil {
				first = fmt.Errorf("%s: %w", sink.Name(), err)
			}
		}
	}
	return first
}

// Notify reports a load result.
func (d *Dispatcher) Notify(ctx context.Context, res *types.LoadResult) error {
	return d.Dispatch(ctx, MessageFor(res, d.now()))
}

// MessageFor summarizes res. Loads with failed aggregates are warnings.
func MessageFor(res *types.LoadResult, now time.Time) Message {
	msg := Message{
		Level:     LevelInfo,
		BatchID:   res.BatchID,
		Timestamp: now.UTC(),
		Load:      res,
		Text:      fmt.Sprintf("loaded %d rows for batch %s", res.RowsInserted, res.BatchID),
	}
	if res.Synthetic {
		msg.Text += " (synthetic)"
	}
	if len(res.AggregateErrors) > 0 {
		kinds := make([]string, 0, len(res.AggregateErrors))
		for k := range res.AggregateErrors {
			kinds = append(kinds, string(k))
		}
		slices.Sort(kinds)
		msg.Level = LevelWarning
		msg.Text += "; aggregates failed: " + strings.Join(kinds, ", ")
	}
	return msg
}
