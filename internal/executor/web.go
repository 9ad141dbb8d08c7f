package executor

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"scanhub/internal/jobs"
	"scanhub/pkg/types"
)

// WebExecutor fetches the target over HTTP and evaluates security header
// and TLS hygiene, producing typed web issues keyed for diffing.
type WebExecutor struct {
	Timeout time.Duration

	// client is swappable for tests.
	client *http.Client
}

// NewWebExecutor creates the executor with a default timeout.
func NewWebExecutor() *WebExecutor {
	return &WebExecutor{Timeout: 10 * time.Second}
}

func (e *WebExecutor) Family() jobs.Family { return jobs.FamilyWeb }

func (e *WebExecutor) Run(ctx context.Context, spec Spec, progress chan<- int) (*types.Insights, error) {
	url := resolveURL(spec.Target)
	if url == "" {
		return nil, fmt.Errorf("cannot determine URL for target %q", spec.Target.Host)
	}

	report(progress, 10)

	client := e.client
	if client == nil {
		timeout := e.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	report(progress, 50)

	isHTTPS := strings.HasPrefix(url, "https://")
	issues := checkHeaders(resp.Header, isHTTPS)
	if isHTTPS {
		issues = append(issues, checkTLS(ctx, spec.Target)...)
	}

	report(progress, 80)

	insights := &types.Insights{
		WebIssues:   issues,
		GeneratedAt: time.Now().UTC(),
		Summary: types.Summary{
			RiskLevel: webRiskLevel(issues),
			Issues:    len(issues),
		},
	}

	report(progress, 90)
	return insights, nil
}

func resolveURL(target types.Target) string {
	if target.URL != "" {
		return target.URL
	}
	if target.Host == "" {
		return ""
	}
	scheme := target.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + target.Host
}

// checkHeaders evaluates the response against the security header baseline.
func checkHeaders(h http.Header, isHTTPS bool) []types.WebIssue {
	var issues []types.WebIssue

	if isHTTPS && h.Get("Strict-Transport-Security") == "" {
		issues = append(issues, types.WebIssue{
			Type:        "missing_hsts",
			Description: "Strict-Transport-Security header is not set; downgrade attacks and cookie hijacking are possible.",
			Severity:    types.SeverityHigh,
		})
	}
	if h.Get("Content-Security-Policy") == "" {
		issues = append(issues, types.WebIssue{
			Type:        "missing_csp",
			Description: "Content-Security-Policy header is not set; XSS and data injection risk is increased.",
			Severity:    types.SeverityMedium,
		})
	}
	if v := h.Get("X-Content-Type-Options"); !strings.EqualFold(v, "nosniff") {
		issues = append(issues, types.WebIssue{
			Type:        "missing_nosniff",
			Description: "X-Content-Type-Options is missing or not 'nosniff'; browsers may MIME-sniff responses.",
			Severity:    types.SeverityLow,
			Evidence:    v,
		})
	}
	if v := h.Get("X-Frame-Options"); v == "" && h.Get("Content-Security-Policy") == "" {
		issues = append(issues, types.WebIssue{
			Type:        "missing_frame_options",
			Description: "Neither X-Frame-Options nor a CSP frame-ancestors directive is set; clickjacking is possible.",
			Severity:    types.SeverityMedium,
		})
	}
	if v := h.Get("Server"); v != "" && strings.ContainsAny(v, "0123456789") {
		issues = append(issues, types.WebIssue{
			Type:        "server_version_disclosure",
			Description: "The Server header discloses a software version.",
			Severity:    types.SeverityLow,
			Evidence:    v,
		})
	}

	return issues
}

// checkTLS inspects the negotiated TLS session and certificate lifetime.
func checkTLS(ctx context.Context, target types.Target) []types.WebIssue {
	port := "443"
	if len(target.Ports) > 0 {
		port = fmt.Sprintf("%d", target.Ports[0])
	}
	addr := net.JoinHostPort(target.Host, port)

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 5 * time.Second},
		Config:    &tls.Config{InsecureSkipVerify: true},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return []types.WebIssue{{
			Type:        "tls_unreachable",
			Description: "TLS connection failed: " + err.Error(),
			Severity:    types.SeverityLow,
		}}
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	var issues []types.WebIssue

	if state.Version <= tls.VersionTLS11 {
		issues = append(issues, types.WebIssue{
			Type:        "deprecated_tls_version",
			Description: "The server negotiated a deprecated TLS protocol version.",
			Severity:    types.SeverityHigh,
			Evidence:    tlsVersionName(state.Version),
		})
	}
	if len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0]
		now := time.Now()
		if now.After(cert.NotAfter) {
			issues = append(issues, types.WebIssue{
				Type:        "certificate_expired",
				Description: "The TLS certificate has expired.",
				Severity:    types.SeverityCritical,
				Evidence:    cert.NotAfter.Format(time.RFC3339),
			})
		} else if cert.NotAfter.Sub(now) < 14*24*time.Hour {
			issues = append(issues, types.WebIssue{
				Type:        "certificate_expiring",
				Description: "The TLS certificate expires within 14 days.",
				Severity:    types.SeverityMedium,
				Evidence:    cert.NotAfter.Format(time.RFC3339),
			})
		}
	}

	return issues
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return fmt.Sprintf("0x%04x", v)
	}
}

// webRiskLevel rolls individual issue severities up to an aggregate level.
func webRiskLevel(issues []types.WebIssue) types.RiskLevel {
	worst := 5
	for _, issue := range issues {
		if r := types.SeverityRank(issue.Severity); r < worst {
			worst = r
		}
	}
	switch worst {
	case 0:
		return types.RiskCritical
	case 1:
		return types.RiskHigh
	case 2:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}
