// Package hostmetrics wraps gopsutil's CPU and memory gauges into a single
// snapshot call, narrowed to the two numbers a heartbeat report carries.
package hostmetrics

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ausocean-mirror/streamguard/pkg/models"
)

// sampleWindow is how long cpu.PercentWithContext averages over. A 0
// duration returns an instantaneous (and noisier) gauge; a short window
// trades a little latency for a steadier reading.
const sampleWindow = 300 * time.Millisecond

// Snapshot samples current CPU and RAM utilization for inclusion in a
// heartbeat report.
func Snapshot(ctx context.Context) (*models.HostLoad, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory stats: %w", err)
	}

	cpuPct, err := cpu.PercentWithContext(ctx, sampleWindow, false)
	if err != nil {
		return nil, fmt.Errorf("reading cpu stats: %w", err)
	}

	var cp float64
	if len(cpuPct) > 0 {
		cp = cpuPct[0]
	}

	return &models.HostLoad{
		CPUPercent: cp,
		RAMPercent: v.UsedPercent,
	}, nil
}
