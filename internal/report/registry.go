package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"alert-pipeline/internal/report/excel"
	"alert-pipeline/internal/report/html"
)

// Registry manages report writers by format name.
type Registry struct {
	writers map[string]ReportWriter
}

// NewRegistry creates a registry with the Excel and HTML writers.
// A nil timezone means local time. htmlTemplatePath is optional; when empty
// the embedded template is used.
func NewRegistry(timezone *time.Location, htmlTemplatePath string) *Registry {
	if timezone == nil {
		timezone = time.Local
	}

	excelWriter := excel.NewWriter(timezone)
	htmlWriter := html.NewWriter(timezone, htmlTemplatePath)

	r := &Registry{
		writers: make(map[string]ReportWriter),
	}
	r.writers[excelWriter.Format()] = excelWriter
	r.writers[htmlWriter.Format()] = htmlWriter

	return r
}

// Get returns the writer for format. Format names are case-insensitive.
func (r *Registry) Get(format string) (ReportWriter, error) {
	normalizedFormat := strings.ToLower(strings.TrimSpace(format))

	writer, ok := r.writers[normalizedFormat]
	if !ok {
		return nil, fmt.Errorf("unsupported report format %q, supported formats: %s",
			format, strings.Join(r.GetAll(), ", "))
	}

	return writer, nil
}

// GetAll returns all supported format names in sorted order.
func (r *Registry) GetAll() []string {
	formats := make([]string, 0, len(r.writers))
	for format := range r.writers {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// Has checks if the specified format is supported.
func (r *Registry) Has(format string) bool {
	_, ok := r.writers[strings.ToLower(strings.TrimSpace(format))]
	return ok
}
