// Package collector reads the per-service alert logs and merges them into one
// chronologically ordered event sequence.
package collector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"alert-pipeline/internal/config"
	"alert-pipeline/internal/model"
)

const (
	// DefaultPattern matches the files written by the detector event log.
	DefaultPattern     = "*.ndjson"
	defaultConcurrency = 4
	maxLineSize        = 1 << 20
)

// Service type tags, matched against the lowercased service name in this order.
var serviceTypes = []struct {
	keyword string
	tag     string
}{
	{"order", "order"},
	{"delivery", "delivery"},
	{"restaurant", "restaurant"},
	{"user", "user"},
	{"payment", "payment"},
	{"gateway", "gateway"},
}

// ServiceTypeOther tags services that match no known keyword.
const ServiceTypeOther = "other"

// Accepted string layouts for the timestamp field. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// FailedFile is a log file that could not be read.
type FailedFile struct {
	Path  string
	Error string
}

// Result is the merged output of one collection run.
type Result struct {
	Events      []*model.AlertEvent
	Files       []string
	Skipped     int
	FailedFiles []FailedFile
	CollectedAt time.Time
}

// Collector discovers and reads alert logs.
type Collector struct {
	pattern     string
	concurrency int
	logger      zerolog.Logger
}

// New creates a Collector. Empty pattern and non-positive concurrency fall back to defaults.
func New(pattern string, concurrency int, logger zerolog.Logger) *Collector {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Collector{
		pattern:     pattern,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "collector").Logger(),
	}
}

// NewFromConfig creates a Collector from the collector config section.
func NewFromConfig(cfg *config.CollectorConfig, logger zerolog.Logger) *Collector {
	return New(cfg.Pattern, cfg.Concurrency, logger)
}

type fileResult struct {
	events  []*model.AlertEvent
	skipped int
	err     error
}

// Collect reads every log file in dir matching the configured pattern.
//
// Files are read concurrently. A file that cannot be opened is recorded in
// FailedFiles and does not abort the run; malformed lines are skipped and
// counted. Events are returned sorted ascending by timestamp, with ties kept
// in file-name then line order.
func (c *Collector) Collect(ctx context.Context, dir string) (*Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access log directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("log directory %s is not a directory", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, c.pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid log file pattern %q: %w", c.pattern, err)
	}
	sort.Strings(files)

	c.logger.Debug().
		Str("dir", dir).
		Int("file_count", len(files)).
		Msg("collecting alert logs")

	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			events, skipped, err := c.ReadFile(path)
			results[i] = fileResult{events: events, skipped: skipped, err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("log collection cancelled: %w", err)
	}

	result := &Result{
		Events:      make([]*model.AlertEvent, 0),
		Files:       make([]string, 0, len(files)),
		FailedFiles: make([]FailedFile, 0),
		CollectedAt: time.Now(),
	}
	for i, r := range results {
		if r.err != nil {
			c.logger.Warn().
				Err(r.err).
				Str("file", files[i]).
				Msg("failed to read alert log, continuing with others")
			result.FailedFiles = append(result.FailedFiles, FailedFile{Path: files[i], Error: r.err.Error()})
			continue
		}
		result.Files = append(result.Files, files[i])
		result.Events = append(result.Events, r.events...)
		result.Skipped += r.skipped
	}

	Sort(result.Events)

	c.logger.Info().
		Int("files", len(result.Files)).
		Int("failed_files", len(result.FailedFiles)).
		Int("events", len(result.Events)).
		Int("skipped_lines", result.Skipped).
		Msg("alert log collection completed")

	return result, nil
}

// ReadFile reads one log file and returns its events in line order along
// with the number of skipped lines.
func (c *Collector) ReadFile(path string) ([]*model.AlertEvent, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	events, skipped, err := Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read log file %s: %w", path, err)
	}
	if skipped > 0 {
		c.logger.Debug().
			Str("file", path).
			Int("skipped_lines", skipped).
			Msg("skipped malformed lines")
	}
	return events, skipped, nil
}

// Decode parses newline-delimited events from r. Blank lines are ignored;
// lines that fail to parse, or that exceed 1 MiB, are counted as skipped.
func Decode(r io.Reader) ([]*model.AlertEvent, int, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	events := make([]*model.AlertEvent, 0)
	skipped := 0

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimSpace(line)
			switch {
			case len(line) == 0:
			case len(line) > maxLineSize:
				skipped++
			default:
				e, perr := ParseLine(line)
				if perr != nil {
					skipped++
				} else {
					events = append(events, e)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return events, skipped, nil
		}
		if err != nil {
			return nil, 0, err
		}
	}
}

// rawEvent shadows the timestamp so the accepted layouts can be parsed by hand.
type rawEvent struct {
	model.AlertEvent
	Timestamp json.RawMessage `json:"timestamp"`
}

// ParseLine decodes one log line, normalizes its timestamp to UTC and tags its service type.
func ParseLine(line []byte) (*model.AlertEvent, error) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if raw.ServiceName == "" {
		return nil, fmt.Errorf("missing service_name")
	}

	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, err
	}

	e := raw.AlertEvent
	e.Timestamp = ts
	e.ServiceType = ServiceType(e.ServiceName)
	return &e, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Not a string: epoch milliseconds.
		ms, nerr := strconv.ParseFloat(string(raw), 64)
		if nerr != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
		}
		return time.UnixMilli(int64(ms)).UTC(), nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ServiceType classifies a service by keyword in its name.
func ServiceType(serviceName string) string {
	name := strings.ToLower(serviceName)
	for _, st := range serviceTypes {
		if strings.Contains(name, st.keyword) {
			return st.tag
		}
	}
	return ServiceTypeOther
}

// Sort orders events ascending by timestamp, keeping the relative order of ties.
func Sort(events []*model.AlertEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

// Services returns the distinct service names in events, sorted.
func Services(events []*model.AlertEvent) []string {
	seen := make(map[string]struct{})
	for _, e := range events {
		seen[e.ServiceName] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
