package output

import (
	"encoding/json"
	"io"

	"scanhub/internal/jobs"
)

// JSONFormatter renders jobs as indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatJobs(w io.Writer, list []*jobs.ScanJob) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(list)
}

func (f *JSONFormatter) FormatJob(w io.Writer, job *jobs.ScanJob) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(job)
}
