package types

import (
	"encoding/json"
	"time"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// SeverityRank returns a numeric rank for sorting (lower = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}

// RiskLevel is the aggregate risk classification of a completed scan.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
	RiskUnknown  RiskLevel = "UNKNOWN"
)

// Finding is a single discovered issue or data point.
type Finding struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Severity    Severity          `json:"severity"`
	Evidence    string            `json:"evidence,omitempty"`
	Remediation string            `json:"remediation,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// PortInfo describes one open port discovered by a network executor.
type PortInfo struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Service  string `json:"service"`
	Version  string `json:"version,omitempty"`
}

// WebIssue is a single issue found by a web executor, keyed by Type for
// cross-scan comparison.
type WebIssue struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Evidence    string   `json:"evidence,omitempty"`
}

// Summary is the aggregate section of an insights blob.
type Summary struct {
	RiskLevel RiskLevel `json:"risk_level"`
	OpenPorts int       `json:"open_ports"`
	Issues    int       `json:"issues"`
}

// Insights is the structured result blob an executor produces for a job.
// Unknown top-level fields survive an unmarshal/marshal round trip so
// blobs written by newer executors are not silently stripped.
type Insights struct {
	OpenPorts       []PortInfo `json:"open_ports,omitempty"`
	Services        []string   `json:"services,omitempty"`
	WebIssues       []WebIssue `json:"web_issues,omitempty"`
	Vulnerabilities []Finding  `json:"vulnerabilities,omitempty"`
	Summary         Summary    `json:"summary"`
	GeneratedAt     time.Time  `json:"generated_at,omitempty"`

	// Extra holds unrecognized fields verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

// insightsAlias avoids recursing into the custom (un)marshalers.
type insightsAlias Insights

var insightsKnownFields = map[string]bool{
	"open_ports":      true,
	"services":        true,
	"web_issues":      true,
	"vulnerabilities": true,
	"summary":         true,
	"generated_at":    true,
}

// UnmarshalJSON decodes known fields and stashes everything else in Extra.
func (in *Insights) UnmarshalJSON(data []byte) error {
	var a insightsAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if insightsKnownFields[k] {
			delete(raw, k)
		}
	}
	if len(raw) > 0 {
		a.Extra = raw
	}

	*in = Insights(a)
	return nil
}

// MarshalJSON re-emits Extra fields alongside the known ones.
func (in Insights) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(insightsAlias(in))
	if err != nil {
		return nil, err
	}
	if len(in.Extra) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range in.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// ServiceNames returns the distinct service names across open ports.
func (in *Insights) ServiceNames() []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, s := range in.Services {
		if s != "" && !seen[s] {
			seen[s] = true
			names = append(names, s)
		}
	}
	for _, p := range in.OpenPorts {
		if p.Service != "" && p.Service != "unknown" && !seen[p.Service] {
			seen[p.Service] = true
			names = append(names, p.Service)
		}
	}
	return names
}
