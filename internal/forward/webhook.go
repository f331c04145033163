package forward

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/model"
)

// WebhookSink POSTs each batch as a JSON array.
type WebhookSink struct {
	endpoint   string
	httpClient *resty.Client
	logger     zerolog.Logger
}

// NewWebhookSink creates a webhook sink. Requests are retried on transport
// errors and 5xx responses only.
func NewWebhookSink(cfg *config.WebhookConfig, logger zerolog.Logger) *WebhookSink {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	retry := cfg.Retry
	if retry.BaseDelay == 0 {
		retry.BaseDelay = 500 * time.Millisecond
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(retry.MaxRetries).
		SetRetryWaitTime(retry.BaseDelay).
		SetRetryMaxWaitTime(retry.BaseDelay * 8).
		AddRetryCondition(retryCondition)

	return &WebhookSink{
		endpoint:   cfg.Endpoint,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "webhook-sink").Logger(),
	}
}

// retryCondition retries on timeouts, connection failures and 5xx responses, never on 4xx.
func retryCondition(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp != nil && resp.StatusCode() >= 500
}

// Name implements Sink.
func (s *WebhookSink) Name() string {
	return "webhook"
}

// Send implements Sink.
func (s *WebhookSink) Send(ctx context.Context, events []*model.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.logger.Debug().
		Str("endpoint", s.endpoint).
		Int("events", len(events)).
		Msg("posting alerts")

	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(events).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("failed to post alerts: %w", err)
	}

	if !resp.IsSuccess() {
		s.logger.Error().
			Int("status_code", resp.StatusCode()).
			Str("body", string(resp.Body())).
			Msg("webhook returned non-2xx status")
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}

// Close implements Sink.
func (s *WebhookSink) Close() error {
	return nil
}
