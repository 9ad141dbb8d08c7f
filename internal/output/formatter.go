// Package output renders jobs and their insights for the terminal.
package output

import (
	"fmt"
	"io"

	"scanhub/internal/jobs"
)

// Formatter renders scan jobs to a writer.
type Formatter interface {
	// FormatJobs renders a job listing.
	FormatJobs(w io.Writer, list []*jobs.ScanJob) error
	// FormatJob renders one job in detail, including its insights.
	FormatJob(w io.Writer, job *jobs.ScanJob) error
}

// GetFormatter returns the appropriate formatter for the given format string.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: table, json)", format)
	}
}
