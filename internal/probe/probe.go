// Package probe reports whether a service's backing datastore is reachable.
package probe

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	// SQL drivers selectable through probe.driver.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"alert-pipeline/internal/config"
)

// Probe answers the detector's "is the datastore connected" question.
type Probe interface {
	Connected(ctx context.Context) bool
}

// New builds the probe selected by cfg. It returns nil for kind "none".
// The returned probe is wrapped in a Cached probe when MinInterval is positive.
func New(cfg *config.ProbeConfig, clk clock.Clock, logger zerolog.Logger) (Probe, error) {
	var p Probe
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "sql":
		sp, err := NewSQLProbe(cfg.Driver, cfg.DSN, cfg.Timeout, logger)
		if err != nil {
			return nil, err
		}
		p = sp
	case "http":
		p = NewHTTPProbe(cfg.URL, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unknown probe kind: %s", cfg.Kind)
	}

	if cfg.MinInterval > 0 {
		p = NewCached(p, cfg.MinInterval, clk)
	}
	return p, nil
}

// SQLProbe pings a database/sql connection pool.
type SQLProbe struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewSQLProbe opens a pool for driver ("postgres" or "mysql"). No connection is
// made until the first ping.
func NewSQLProbe(driver, dsn string, timeout time.Duration, logger zerolog.Logger) (*SQLProbe, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s probe: %w", driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLProbe{
		db:      db,
		driver:  driver,
		timeout: timeout,
		logger:  logger.With().Str("component", "sql-probe").Str("driver", driver).Logger(),
	}, nil
}

// Connected pings the database within the probe timeout.
func (p *SQLProbe) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.db.PingContext(ctx); err != nil {
		p.logger.Debug().Err(err).Msg("datastore ping failed")
		return false
	}
	return true
}

// Close releases the connection pool.
func (p *SQLProbe) Close() error {
	return p.db.Close()
}

// HTTPProbe treats a 2xx answer from a health endpoint as connected.
type HTTPProbe struct {
	url        string
	httpClient *resty.Client
	logger     zerolog.Logger
}

// NewHTTPProbe creates a probe against url. Probes are never retried; the next
// check asks again.
func NewHTTPProbe(url string, timeout time.Duration, logger zerolog.Logger) *HTTPProbe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &HTTPProbe{
		url:        url,
		httpClient: resty.New().SetTimeout(timeout).SetRetryCount(0),
		logger:     logger.With().Str("component", "http-probe").Logger(),
	}
}

// Connected issues a GET against the health endpoint.
func (p *HTTPProbe) Connected(ctx context.Context) bool {
	resp, err := p.httpClient.R().SetContext(ctx).Get(p.url)
	if err != nil {
		p.logger.Debug().Err(err).Str("url", p.url).Msg("health probe failed")
		return false
	}
	return resp.IsSuccess()
}

// Cached re-probes at most once per interval and otherwise returns the last answer.
type Cached struct {
	probe    Probe
	interval time.Duration
	clock    clock.Clock

	mu        sync.Mutex
	checked   bool
	checkedAt time.Time
	last      bool
}

// NewCached wraps p.
func NewCached(p Probe, interval time.Duration, clk clock.Clock) *Cached {
	if clk == nil {
		clk = clock.New()
	}
	return &Cached{probe: p, interval: interval, clock: clk}
}

// Connected returns the cached answer while it is fresh.
func (c *Cached) Connected(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.checked && now.Sub(c.checkedAt) < c.interval {
		return c.last
	}

	c.last = c.probe.Connected(ctx)
	c.checked = true
	c.checkedAt = now
	return c.last
}

// Close closes the wrapped probe if it holds resources.
func (c *Cached) Close() error {
	if closer, ok := c.probe.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
