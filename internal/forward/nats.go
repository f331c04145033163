package forward

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/model"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "alerts"

// conn is the subset of *nats.Conn the sink uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSSink publishes each event to <subject>.<service>.<severity>.
type NATSSink struct {
	nc      conn
	subject string
	logger  zerolog.Logger
}

// NewNATSSink connects to the configured server.
func NewNATSSink(cfg *config.NATSConfig, logger zerolog.Logger) (*NATSSink, error) {
	log := logger.With().Str("component", "nats-sink").Logger()

	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url,
		nats.Name("alertpipe"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().Str("url", url).Msg("connected to NATS")
	return newNATSSink(nc, cfg.Subject, log), nil
}

func newNATSSink(nc conn, subject string, logger zerolog.Logger) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{nc: nc, subject: subject, logger: logger}
}

// Subject returns the subject an event is published on.
func (s *NATSSink) Subject(e *model.AlertEvent) string {
	severity := string(e.Severity)
	if severity == "" {
		severity = "unknown"
	}
	return s.subject + "." + subjectToken(e.ServiceName) + "." + subjectToken(severity)
}

// subjectToken replaces characters that are not allowed inside a subject token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Name implements Sink.
func (s *NATSSink) Name() string {
	return "nats"
}

// Send publishes every event and flushes before returning.
func (s *NATSSink) Send(ctx context.Context, events []*model.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		subject := s.Subject(e)
		if err := s.nc.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish alert to %s: %w", subject, err)
		}
	}

	if err := s.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *NATSSink) Close() error {
	if s.nc != nil {
		s.logger.Info().Msg("closing NATS connection")
		s.nc.Close()
	}
	return nil
}
