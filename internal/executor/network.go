package executor

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"scanhub/internal/jobs"
	"scanhub/pkg/types"
)

// NetworkExecutor performs a TCP connect sweep against the target and builds
// an insights blob from the open ports it finds.
type NetworkExecutor struct {
	Concurrency int
	DialTimeout time.Duration

	// dial is swappable for tests.
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// NewNetworkExecutor creates the executor with default limits.
func NewNetworkExecutor() *NetworkExecutor {
	return &NetworkExecutor{
		Concurrency: 50,
		DialTimeout: 3 * time.Second,
		dial:        net.DialTimeout,
	}
}

func (e *NetworkExecutor) Family() jobs.Family { return jobs.FamilyNetwork }

func (e *NetworkExecutor) Run(ctx context.Context, spec Spec, progress chan<- int) (*types.Insights, error) {
	ports, err := e.resolvePorts(spec)
	if err != nil {
		return nil, fmt.Errorf("resolving ports: %w", err)
	}

	report(progress, 10)

	open, err := e.sweep(ctx, spec.Target.Host, ports, progress)
	if err != nil {
		return nil, err
	}

	report(progress, 60)

	sort.Ints(open)
	insights := &types.Insights{GeneratedAt: time.Now().UTC()}
	for _, p := range open {
		insights.OpenPorts = append(insights.OpenPorts, types.PortInfo{
			Port:     p,
			Protocol: "tcp",
			Service:  IdentifyService(p),
		})
	}
	insights.Services = insights.ServiceNames()
	insights.Vulnerabilities = riskyPortFindings(insights.OpenPorts)
	insights.Summary = types.Summary{
		RiskLevel: RiskLevelFor(open),
		OpenPorts: len(open),
		Issues:    len(insights.Vulnerabilities),
	}

	report(progress, 90)
	return insights, nil
}

// sweep dials every port with bounded concurrency, reporting progress in the
// 10..50 band as the sweep advances.
func (e *NetworkExecutor) sweep(ctx context.Context, host string, ports []int, progress chan<- int) ([]int, error) {
	concurrency := e.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := e.DialTimeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	dial := e.dial
	if dial == nil {
		dial = net.DialTimeout
	}

	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var open []int
	var done int
	var wg sync.WaitGroup

	for _, p := range ports {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		default:
		}

		wg.Add(1)
		go func(port int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			addr := net.JoinHostPort(host, strconv.Itoa(port))
			conn, err := dial("tcp", addr, timeout)

			mu.Lock()
			if err == nil {
				conn.Close()
				open = append(open, port)
			}
			done++
			pct := 10 + done*40/len(ports)
			mu.Unlock()

			report(progress, pct)
		}(p)
	}

	wg.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return open, nil
}

// resolvePorts picks the sweep for the job: an explicit "ports" config entry
// wins, then the target's own port, then a profile-sized default.
func (e *NetworkExecutor) resolvePorts(spec Spec) ([]int, error) {
	if spec.Config != nil {
		if raw, ok := spec.Config["ports"].(string); ok && raw != "" {
			return ParsePortRange(raw)
		}
	}
	if len(spec.Target.Ports) > 0 {
		return spec.Target.Ports, nil
	}

	switch spec.Profile {
	case jobs.ProfileFull, jobs.ProfileDetailed, jobs.ProfileComprehensive, jobs.ProfileEnhanced:
		return ParsePortRange("1-1024")
	default:
		return CommonPorts, nil
	}
}

// riskyPortFindings turns risky open ports into vulnerability findings so
// they show up in diff signatures.
func riskyPortFindings(open []types.PortInfo) []types.Finding {
	var findings []types.Finding
	for _, p := range open {
		if !riskyPorts[p.Port] {
			continue
		}
		findings = append(findings, types.Finding{
			Title:       fmt.Sprintf("Port %d (%s) is open", p.Port, p.Service),
			Description: fmt.Sprintf("TCP port %d exposes %s, a service commonly targeted for weak or legacy authentication.", p.Port, p.Service),
			Severity:    types.SeverityMedium,
			Metadata: map[string]string{
				"port":    strconv.Itoa(p.Port),
				"service": p.Service,
			},
		})
	}
	return findings
}
