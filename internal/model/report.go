package model

import "time"

// SuppressionSummary aggregates one batch classification run.
type SuppressionSummary struct {
	Total                  int            `json:"total"`
	SuppressedCount        int            `json:"suppressed_count"`
	AllowedCount           int            `json:"allowed_count"`
	SuppressionRatePercent float64        `json:"suppression_rate_percent"`
	ByRule                 map[string]int `json:"by_rule"`
}

// PipelineReport is everything one offline run produces, as rendered by report writers.
type PipelineReport struct {
	GeneratedAt  time.Time            `json:"generated_at"`
	SourceDir    string               `json:"source_dir"`
	SkippedLines int                  `json:"skipped_lines"`
	Analysis     *AnalysisReport      `json:"analysis"`
	Thresholds   []*AdaptiveThreshold `json:"thresholds"`
	Export       *ThresholdConfig     `json:"export"`
	Impact       *ExpectedImpact      `json:"impact"`
	Suppression  *SuppressionSummary  `json:"suppression,omitempty"`
}
