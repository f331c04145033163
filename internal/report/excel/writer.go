// Package excel renders pipeline reports as .xlsx workbooks.
package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"alert-pipeline/internal/model"
	"alert-pipeline/internal/stats"
)

const (
	sheetSummary         = "Summary"
	sheetBaselines       = "Baselines"
	sheetThresholds      = "Thresholds"
	sheetRecommendations = "Recommendations"

	defaultSheet = "Sheet1"

	// Colors (RGB without #)
	colorWarningBg  = "FFEB9C"
	colorWarningFg  = "9C6500"
	colorCriticalBg = "FFC7CE"
	colorCriticalFg = "9C0006"
	colorHeaderBg   = "4472C4"
	colorHeaderFg   = "FFFFFF"
	colorNormalBg   = "C6EFCE"
	colorNormalFg   = "006100"

	defaultColWidth = 16.0
	wideColWidth    = 28.0

	// Baseline false-positive rates above these are highlighted.
	fpWarning  = 0.3
	fpCritical = 0.4
)

type summaryRow struct {
	label string
	value interface{}
}

// Writer implements report.ReportWriter for Excel format.
type Writer struct {
	timezone *time.Location
}

// NewWriter creates an Excel writer. A nil timezone means local time.
func NewWriter(timezone *time.Location) *Writer {
	if timezone == nil {
		timezone = time.Local
	}
	return &Writer{timezone: timezone}
}

// Format returns the format identifier for this writer.
func (w *Writer) Format() string {
	return "excel"
}

type styles struct {
	header   int
	label    int
	value    int
	normal   int
	warning  int
	critical int
}

// Write generates an Excel report.
func (w *Writer) Write(report *model.PipelineReport, outputPath string) error {
	if report == nil {
		return fmt.Errorf("pipeline report is nil")
	}

	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}

	f := excelize.NewFile()
	defer f.Close()

	st, err := w.createStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	if err := w.createSummarySheet(f, report, st); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := w.createBaselinesSheet(f, report, st); err != nil {
		return fmt.Errorf("failed to create baselines sheet: %w", err)
	}
	if err := w.createThresholdsSheet(f, report, st); err != nil {
		return fmt.Errorf("failed to create thresholds sheet: %w", err)
	}
	if err := w.createRecommendationsSheet(f, report, st); err != nil {
		return fmt.Errorf("failed to create recommendations sheet: %w", err)
	}

	_ = f.DeleteSheet(defaultSheet)

	idx, _ := f.GetSheetIndex(sheetSummary)
	f.SetActiveSheet(idx)

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}

	return nil
}

func (w *Writer) createSummarySheet(f *excelize.File, report *model.PipelineReport, st styles) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	f.SetColWidth(sheetSummary, "A", "A", wideColWidth)
	f.SetColWidth(sheetSummary, "B", "B", wideColWidth)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 18},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	f.MergeCell(sheetSummary, "A1", "B1")
	f.SetCellValue(sheetSummary, "A1", "Alert Pipeline Report")
	f.SetCellStyle(sheetSummary, "A1", "B1", titleStyle)
	f.SetRowHeight(sheetSummary, 1, 30)

	rows := []summaryRow{
		{"Generated at", w.formatTime(report.GeneratedAt)},
		{"Source directory", report.SourceDir},
		{"Skipped lines", report.SkippedLines},
	}

	if a := report.Analysis; a != nil {
		rows = append(rows, summaryRow{"Total events", a.TotalEvents})
		if a.TimeRange != nil {
			rows = append(rows,
				summaryRow{"First event", w.formatTime(a.TimeRange.Start)},
				summaryRow{"Last event", w.formatTime(a.TimeRange.End)},
			)
		}
		if fp := a.FalsePositives; fp != nil {
			rows = append(rows,
				summaryRow{"Estimated false positive rate", formatPercent(fp.EstimatedFPRate)},
				summaryRow{"Repetitive alert pairs", fp.RepetitivePatterns},
			)
		}
	}

	if im := report.Impact; im != nil {
		rows = append(rows,
			summaryRow{"Estimated reduction", formatPercent(im.EstimatedReduction)},
			summaryRow{"Estimated alerts saved", im.EstimatedAlertsSaved},
		)
	}

	if s := report.Suppression; s != nil {
		rows = append(rows,
			summaryRow{"Suppressed alerts", s.SuppressedCount},
			summaryRow{"Suppression rate", fmt.Sprintf("%.1f%%", s.SuppressionRatePercent)},
		)
	}

	for i, item := range rows {
		row := i + 3
		a, b := fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row)
		f.SetCellValue(sheetSummary, a, item.label)
		f.SetCellValue(sheetSummary, b, item.value)
		f.SetCellStyle(sheetSummary, a, a, st.label)
		f.SetCellStyle(sheetSummary, b, b, st.value)
		f.SetRowHeight(sheetSummary, row, 22)
	}

	return nil
}

func (w *Writer) createBaselinesSheet(f *excelize.File, report *model.PipelineReport, st styles) error {
	if _, err := f.NewSheet(sheetBaselines); err != nil {
		return err
	}

	headers := []string{
		"Service", "Total Alerts", "Avg Error Count", "Avg Response Time (ms)",
		"Avg Alert Duration (ms)", "False Positive Rate", "Alerts / Hour",
		"Avg CPU %", "Avg Memory",
	}
	w.writeHeader(f, sheetBaselines, headers, st)

	if report.Analysis == nil {
		return nil
	}

	names := make([]string, 0, len(report.Analysis.Baselines))
	for name := range report.Analysis.Baselines {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		b := report.Analysis.Baselines[name]
		row := i + 2
		values := []interface{}{
			b.ServiceName, b.TotalAlerts, round2(b.AvgErrorCount), round2(b.AvgResponseTime),
			round2(b.AvgAlertDuration), formatPercent(b.FalsePositiveRate), round2(b.AlertRatePerHour),
			round2(b.AvgCPUUsage), round2(b.AvgMemoryUsage),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		f.SetSheetRow(sheetBaselines, cell, &values)

		fpCell, _ := excelize.CoordinatesToCellName(6, row)
		f.SetCellStyle(sheetBaselines, fpCell, fpCell, fpStyle(b.FalsePositiveRate, st))
	}

	return nil
}

func (w *Writer) createThresholdsSheet(f *excelize.File, report *model.PipelineReport, st styles) error {
	if _, err := f.NewSheet(sheetThresholds); err != nil {
		return err
	}

	headers := []string{
		"Service", "Alert Type", "Current", "Recommended", "Adjustment %",
		"Confidence", "Samples", "Rationale",
	}
	w.writeHeader(f, sheetThresholds, headers, st)
	f.SetColWidth(sheetThresholds, "H", "H", 70)

	for i, th := range report.Thresholds {
		row := i + 2
		values := []interface{}{
			th.ServiceName, string(th.AlertType), th.CurrentThreshold, th.RecommendedThreshold,
			th.AdjustmentPercentage, string(th.Confidence), th.BasedOnSamples, th.Rationale,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		f.SetSheetRow(sheetThresholds, cell, &values)

		confCell, _ := excelize.CoordinatesToCellName(6, row)
		f.SetCellStyle(sheetThresholds, confCell, confCell, confidenceStyle(th.Confidence, st))
	}

	return nil
}

func (w *Writer) createRecommendationsSheet(f *excelize.File, report *model.PipelineReport, st styles) error {
	if _, err := f.NewSheet(sheetRecommendations); err != nil {
		return err
	}

	w.writeHeader(f, sheetRecommendations, []string{"#", "Recommendation"}, st)
	f.SetColWidth(sheetRecommendations, "A", "A", 6)
	f.SetColWidth(sheetRecommendations, "B", "B", 100)

	if report.Analysis == nil {
		return nil
	}
	for i, rec := range report.Analysis.Recommendations {
		row := i + 2
		f.SetCellValue(sheetRecommendations, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(sheetRecommendations, fmt.Sprintf("B%d", row), rec)
	}

	return nil
}

func (w *Writer) writeHeader(f *excelize.File, sheet string, headers []string, st styles) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, st.header)
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	f.SetColWidth(sheet, "A", last, defaultColWidth)
	f.SetColWidth(sheet, "A", "A", wideColWidth)
	f.SetRowHeight(sheet, 1, 22)
	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (w *Writer) createStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}

	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: colorHeaderFg},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorHeaderBg}, Pattern: 1},
		Alignment: center,
	}); err != nil {
		return st, err
	}
	if st.label, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: colorHeaderFg},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorHeaderBg}, Pattern: 1},
		Alignment: center,
	}); err != nil {
		return st, err
	}
	if st.value, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 12},
		Alignment: center,
	}); err != nil {
		return st, err
	}
	if st.normal, err = colorStyle(f, colorNormalFg, colorNormalBg); err != nil {
		return st, err
	}
	if st.warning, err = colorStyle(f, colorWarningFg, colorWarningBg); err != nil {
		return st, err
	}
	if st.critical, err = colorStyle(f, colorCriticalFg, colorCriticalBg); err != nil {
		return st, err
	}
	return st, nil
}

func colorStyle(f *excelize.File, fg, bg string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Color: fg},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{bg}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

func fpStyle(rate float64, st styles) int {
	switch {
	case rate > fpCritical:
		return st.critical
	case rate > fpWarning:
		return st.warning
	default:
		return st.normal
	}
}

func confidenceStyle(c model.Confidence, st styles) int {
	switch c {
	case model.ConfidenceHigh:
		return st.normal
	case model.ConfidenceMedium:
		return st.warning
	default:
		return st.critical
	}
}

func (w *Writer) formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(w.timezone).Format("2006-01-02 15:04:05")
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func round2(v float64) float64 {
	return stats.Round(v, 2)
}
