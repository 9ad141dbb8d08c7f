// Package diffs compares the insights of two finished scans of the same
// target and reports what appeared, what disappeared, and how the risk
// level moved.
package diffs

import (
	"sort"
	"time"

	"scanhub/pkg/types"
)

// Signature is the comparable projection of a scan's insights. Every slice
// is a sorted set.
type Signature struct {
	OpenPorts           []int    `json:"open_ports"`
	Services            []string `json:"services"`
	RiskLevel           string   `json:"risk_level"`
	WebIssueTypes       []string `json:"web_issue_types"`
	VulnerabilityTitles []string `json:"vulnerability_titles"`
}

// SignatureOf projects insights down to their diffable signature. A nil
// insights blob yields an empty signature with an unknown risk level.
func SignatureOf(in *types.Insights) Signature {
	sig := Signature{RiskLevel: string(types.RiskUnknown)}
	if in == nil {
		return sig
	}

	for _, p := range in.OpenPorts {
		sig.OpenPorts = append(sig.OpenPorts, p.Port)
	}
	sort.Ints(sig.OpenPorts)

	sig.Services = sortedSet(in.ServiceNames())

	if in.Summary.RiskLevel != "" {
		sig.RiskLevel = string(in.Summary.RiskLevel)
	}

	var issueTypes []string
	for _, w := range in.WebIssues {
		issueTypes = append(issueTypes, w.Type)
	}
	sig.WebIssueTypes = sortedSet(issueTypes)

	var titles []string
	for _, v := range in.Vulnerabilities {
		titles = append(titles, v.Title)
	}
	sig.VulnerabilityTitles = sortedSet(titles)

	return sig
}

// FieldDiff lists set members present only on one side.
type FieldDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// PortDiff is a FieldDiff over numeric ports.
type PortDiff struct {
	Added   []int `json:"added,omitempty"`
	Removed []int `json:"removed,omitempty"`
}

// RiskChange records the old and new aggregate risk level.
type RiskChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Changes is the computed difference between two signatures.
type Changes struct {
	OpenPorts       PortDiff   `json:"open_ports"`
	Services        FieldDiff  `json:"services"`
	WebIssues       FieldDiff  `json:"web_issues"`
	Vulnerabilities FieldDiff  `json:"vulnerabilities"`
	Risk            RiskChange `json:"risk"`
}

// Empty reports whether nothing changed between the two scans.
func (c Changes) Empty() bool {
	return len(c.OpenPorts.Added) == 0 && len(c.OpenPorts.Removed) == 0 &&
		len(c.Services.Added) == 0 && len(c.Services.Removed) == 0 &&
		len(c.WebIssues.Added) == 0 && len(c.WebIssues.Removed) == 0 &&
		len(c.Vulnerabilities.Added) == 0 && len(c.Vulnerabilities.Removed) == 0 &&
		c.Risk.Old == c.Risk.New
}

// Compute diffs the old signature against the new one. "Added" means present
// in the new scan only; "removed" means present in the old scan only.
func Compute(oldSig, newSig Signature) Changes {
	return Changes{
		OpenPorts: PortDiff{
			Added:   intDifference(newSig.OpenPorts, oldSig.OpenPorts),
			Removed: intDifference(oldSig.OpenPorts, newSig.OpenPorts),
		},
		Services: FieldDiff{
			Added:   stringDifference(newSig.Services, oldSig.Services),
			Removed: stringDifference(oldSig.Services, newSig.Services),
		},
		WebIssues: FieldDiff{
			Added:   stringDifference(newSig.WebIssueTypes, oldSig.WebIssueTypes),
			Removed: stringDifference(oldSig.WebIssueTypes, newSig.WebIssueTypes),
		},
		Vulnerabilities: FieldDiff{
			Added:   stringDifference(newSig.VulnerabilityTitles, oldSig.VulnerabilityTitles),
			Removed: stringDifference(oldSig.VulnerabilityTitles, newSig.VulnerabilityTitles),
		},
		Risk: RiskChange{Old: oldSig.RiskLevel, New: newSig.RiskLevel},
	}
}

// Report is a persisted comparison of two jobs.
type Report struct {
	ID        string    `json:"id"`
	OldJobID  string    `json:"old_job_id"`
	NewJobID  string    `json:"new_job_id"`
	Target    string    `json:"target"`
	Changes   Changes   `json:"changes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func sortedSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// intDifference returns the sorted members of a not present in b.
func intDifference(a, b []int) []int {
	inB := make(map[int]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	var out []int
	for _, v := range a {
		if !inB[v] {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func stringDifference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	var out []string
	for _, v := range a {
		if !inB[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
