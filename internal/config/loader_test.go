// Package config provides configuration management for the alert pipeline.
package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad_Success(t *testing.T) {
	path := writeTempConfig(t, `
detector:
  service_name: "orders-service"
  log_dir: "/var/log/alerts"
collector:
  log_dir: "/var/log/alerts"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify required values
	if cfg.Detector.ServiceName != "orders-service" {
		t.Errorf("ServiceName = %v, want orders-service", cfg.Detector.ServiceName)
	}
	if cfg.Collector.LogDir != "/var/log/alerts" {
		t.Errorf("Collector.LogDir = %v, want /var/log/alerts", cfg.Collector.LogDir)
	}

	// Verify defaults
	if cfg.Detector.CheckInterval != 30*time.Second {
		t.Errorf("CheckInterval = %v, want 30s", cfg.Detector.CheckInterval)
	}
	if cfg.Detector.Thresholds.ErrorBurstCount != 5 {
		t.Errorf("ErrorBurstCount = %v, want 5", cfg.Detector.Thresholds.ErrorBurstCount)
	}
	if cfg.Detector.Thresholds.AvailabilityErrorRate != 0.5 {
		t.Errorf("AvailabilityErrorRate = %v, want 0.5", cfg.Detector.Thresholds.AvailabilityErrorRate)
	}
	if cfg.Detector.Thresholds.LatencyThreshold != 3*time.Second {
		t.Errorf("LatencyThreshold = %v, want 3s", cfg.Detector.Thresholds.LatencyThreshold)
	}
	if cfg.Suppression.OfficeHoursStart != 9 || cfg.Suppression.OfficeHoursEnd != 17 {
		t.Errorf("office hours = %d-%d, want 9-17", cfg.Suppression.OfficeHoursStart, cfg.Suppression.OfficeHoursEnd)
	}
	if cfg.Suppression.DuplicateWindow != 5*time.Minute {
		t.Errorf("DuplicateWindow = %v, want 5m", cfg.Suppression.DuplicateWindow)
	}
	if len(cfg.Suppression.TestMarkers) != 3 {
		t.Errorf("TestMarkers = %v, want 3 markers", cfg.Suppression.TestMarkers)
	}
	if cfg.Probe.Kind != "none" {
		t.Errorf("Probe.Kind = %v, want none", cfg.Probe.Kind)
	}
	if cfg.Collector.Pattern != "*.ndjson" {
		t.Errorf("Collector.Pattern = %v, want *.ndjson", cfg.Collector.Pattern)
	}
}

func TestLoad_MaintenanceWindows(t *testing.T) {
	path := writeTempConfig(t, `
suppression:
  maintenance_windows:
    - service: "orders-service"
      start: "2026-03-01T00:00:00Z"
      end: "2026-03-01T02:00:00Z"
      reason: "database migration"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Suppression.MaintenanceWindows) != 1 {
		t.Fatalf("expected 1 maintenance window, got %d", len(cfg.Suppression.MaintenanceWindows))
	}

	start, end, err := cfg.Suppression.MaintenanceWindows[0].Range()
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if end.Sub(start) != 2*time.Hour {
		t.Errorf("window length = %v, want 2h", end.Sub(start))
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	if err == nil {
		t.Error("Load() should return error for empty path")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := writeTempConfig(t, `
detector:
  service_name: "file-service"
`)

	t.Setenv("ALERTPIPE_DETECTOR_SERVICE_NAME", "env-service")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Environment variable should override file value
	if cfg.Detector.ServiceName != "env-service" {
		t.Errorf("ServiceName = %v, want env-service (env override)", cfg.Detector.ServiceName)
	}
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	path := writeTempConfig(t, `
suppression:
  office_hours_start: 18
  office_hours_end: 9
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail validation for inverted office hours")
	}
}
