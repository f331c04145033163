// Package report renders pipeline runs as Excel and HTML reports.
// It defines the ReportWriter interface and a registry of the available formats.
package report

import (
	"alert-pipeline/internal/model"
)

// ReportWriter writes a pipeline report in one output format.
type ReportWriter interface {
	// Write renders report to outputPath. The writer appends its file
	// extension when outputPath lacks it.
	Write(report *model.PipelineReport, outputPath string) error

	// Format returns the format identifier, "excel" or "html".
	Format() string
}
