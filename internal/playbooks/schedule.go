package playbooks

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseSchedule converts a schedule expression into an interval in whole
// minutes. It accepts a bare integer ("30"), a cron @every duration
// ("@every 2h"), or a standard 5-field cron spec ("*/15 * * * *"); cron
// specs are normalized to the gap between their next two fire times. The
// result is clamped into the allowed interval range.
func ParseSchedule(expr string) (int, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, fmt.Errorf("empty schedule expression")
	}

	if minutes, err := strconv.Atoi(expr); err == nil {
		if minutes < 1 {
			return 0, fmt.Errorf("schedule interval must be positive, got %d", minutes)
		}
		return ClampInterval(minutes), nil
	}

	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	first := sched.Next(time.Now())
	second := sched.Next(first)
	minutes := int(second.Sub(first) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return ClampInterval(minutes), nil
}
