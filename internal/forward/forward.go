// Package forward hands allowed alert events to the routing layer.
// It makes no routing decisions; every sink receives every event it is given.
package forward

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/model"
)

// Sink delivers alert events downstream.
type Sink interface {
	Name() string
	Send(ctx context.Context, events []*model.AlertEvent) error
	Close() error
}

// Fanout sends each batch to every sink and joins their errors.
type Fanout struct {
	sinks  []Sink
	logger zerolog.Logger
}

// NewFanout creates a Fanout over sinks.
func NewFanout(logger zerolog.Logger, sinks ...Sink) *Fanout {
	return &Fanout{
		sinks:  sinks,
		logger: logger.With().Str("component", "forward").Logger(),
	}
}

// FromConfig builds a Fanout with every enabled sink. A sink that fails to
// initialize closes the ones already created.
func FromConfig(cfg *config.ForwardConfig, logger zerolog.Logger) (*Fanout, error) {
	var sinks []Sink

	if cfg.Webhook.Enabled {
		sinks = append(sinks, NewWebhookSink(&cfg.Webhook, logger))
	}
	if cfg.NATS.Enabled {
		s, err := NewNATSSink(&cfg.NATS, logger)
		if err != nil {
			for _, created := range sinks {
				_ = created.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}

	return NewFanout(logger, sinks...), nil
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Name implements Sink.
func (f *Fanout) Name() string {
	return "fanout"
}

// Send delivers events to every sink. A failing sink does not stop the others.
func (f *Fanout) Send(ctx context.Context, events []*model.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	var errs []error
	for _, s := range f.sinks {
		if err := s.Send(ctx, events); err != nil {
			f.logger.Error().
				Err(err).
				Str("sink", s.Name()).
				Int("events", len(events)).
				Msg("failed to forward alerts")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		f.logger.Info().
			Str("sink", s.Name()).
			Int("events", len(events)).
			Msg("alerts forwarded")
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
