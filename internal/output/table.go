package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"scanhub/internal/jobs"
	"scanhub/pkg/types"
)

// TableFormatter renders jobs as colored terminal tables.
type TableFormatter struct{}

func (f *TableFormatter) FormatJobs(w io.Writer, list []*jobs.ScanJob) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No jobs.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Target", "Profile", "Status", "Progress", "Created"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")

	for _, job := range list {
		table.Append([]string{
			job.ID,
			job.Target,
			string(job.Profile),
			colorStatus(job.Status),
			strconv.Itoa(job.Progress) + "%",
			job.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	return nil
}

func (f *TableFormatter) FormatJob(w io.Writer, job *jobs.ScanJob) error {
	fmt.Fprintf(w, "\nJob %s\n", job.ID)
	fmt.Fprintf(w, "  Target:   %s\n", job.Target)
	fmt.Fprintf(w, "  Profile:  %s\n", job.Profile)
	fmt.Fprintf(w, "  Status:   %s\n", colorStatus(job.Status))
	fmt.Fprintf(w, "  Progress: %d%%\n", job.Progress)
	if job.ParentJobID != "" {
		fmt.Fprintf(w, "  Retry of: %s\n", job.ParentJobID)
	}
	if job.Error != "" {
		fmt.Fprintf(w, "  Error:    %s\n", color.RedString(job.Error))
	}
	if job.FinishedAt != nil {
		fmt.Fprintf(w, "  Duration: %s\n", job.Duration().Round(time.Millisecond))
	}

	if job.Insights == nil {
		return nil
	}
	in := job.Insights

	fmt.Fprintf(w, "\n  Risk level: %s\n", colorRisk(in.Summary.RiskLevel))

	if len(in.OpenPorts) > 0 {
		fmt.Fprintf(w, "\n  Open ports (%d):\n", len(in.OpenPorts))
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Port", "Protocol", "Service"})
		table.SetBorder(false)
		table.SetColumnSeparator("│")
		for _, p := range in.OpenPorts {
			table.Append([]string{strconv.Itoa(p.Port), p.Protocol, p.Service})
		}
		table.Render()
	}

	if len(in.WebIssues) > 0 {
		issues := append([]types.WebIssue(nil), in.WebIssues...)
		sort.Slice(issues, func(i, k int) bool {
			return types.SeverityRank(issues[i].Severity) < types.SeverityRank(issues[k].Severity)
		})

		fmt.Fprintf(w, "\n  Web issues (%d):\n", len(issues))
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Severity", "Type", "Description"})
		table.SetAutoWrapText(false)
		table.SetBorder(false)
		table.SetColumnSeparator("│")
		for _, issue := range issues {
			table.Append([]string{colorSeverity(issue.Severity), issue.Type, issue.Description})
		}
		table.Render()
	}

	if len(in.Vulnerabilities) > 0 {
		fmt.Fprintf(w, "\n  Findings (%d):\n", len(in.Vulnerabilities))
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Severity", "Title"})
		table.SetAutoWrapText(false)
		table.SetBorder(false)
		table.SetColumnSeparator("│")
		for _, finding := range in.Vulnerabilities {
			table.Append([]string{colorSeverity(finding.Severity), finding.Title})
		}
		table.Render()
	}

	return nil
}

func colorStatus(s jobs.Status) string {
	switch s {
	case jobs.StatusFinished:
		return color.GreenString(string(s))
	case jobs.StatusFailed:
		return color.RedString(string(s))
	case jobs.StatusCancelled:
		return color.YellowString(string(s))
	case jobs.StatusRunning:
		return color.CyanString(string(s))
	default:
		return string(s)
	}
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SeverityCritical:
		return color.RedString("CRITICAL")
	case types.SeverityHigh:
		return color.RedString("HIGH")
	case types.SeverityMedium:
		return color.YellowString("MEDIUM")
	case types.SeverityLow:
		return color.CyanString("LOW")
	case types.SeverityInfo:
		return color.WhiteString("INFO")
	default:
		return string(s)
	}
}

func colorRisk(r types.RiskLevel) string {
	switch r {
	case types.RiskCritical, types.RiskHigh:
		return color.RedString(string(r))
	case types.RiskMedium:
		return color.YellowString(string(r))
	case types.RiskLow:
		return color.GreenString(string(r))
	default:
		return string(r)
	}
}
