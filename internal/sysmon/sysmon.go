package sysmon

import (
	"context"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sample is one point-in-time resource measurement, shaped for the
// frontend's live metrics stream.
type Sample struct {
	Time         string  `json:"time"`
	CPUPercent   float64 `json:"cpu_percent"`
	MemPercent   float64 `json:"mem_percent"`
	MemTotal     uint64  `json:"mem_total"`
	MemAvailable uint64  `json:"mem_available"`
	// BackendReady reports whether the local model daemon answered a
	// health probe. The JSON field name is kept from the frontend
	// contract.
	BackendReady *bool `json:"vllm_ready,omitempty"`
}

// ReadyProbe reports whether the local model daemon is reachable.
type ReadyProbe func(ctx context.Context) bool

// probeEvery controls how often the readiness probe piggybacks on a
// sample. Probing on every tick would hammer the daemon for no gain.
const probeEvery = 5

// Monitor produces resource samples. Not safe for concurrent use - create
// one per stream.
type Monitor struct {
	probe ReadyProbe
	ticks int
}

// NewMonitor returns a new Monitor. The probe is optional.
func NewMonitor(probe ReadyProbe) *Monitor {
	// Prime the CPU measurement so the first sample reports utilization
	// since now rather than since boot.
	_, _ = cpu.Percent(0, false)

	return &Monitor{probe: probe}
}

// Sample takes one resource measurement. CPU utilization is measured since
// the previous call.
func (m *Monitor) Sample(ctx context.Context) Sample {
	sample := Sample{
		Time: time.Now().Format(time.RFC3339),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		sample.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sample.MemPercent = vm.UsedPercent
		sample.MemTotal = vm.Total
		sample.MemAvailable = vm.Available
	}

	if m.probe != nil && m.ticks%probeEvery == 0 {
		ready := m.probe(ctx)
		sample.BackendReady = &ready
	}
	m.ticks++

	return sample
}

// EndpointProbe returns a ReadyProbe performing a GET against the specified
// URL, reporting ready on any 2xx response.
func EndpointProbe(url string, timeout time.Duration) ReadyProbe {
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}

		res, err := client.Do(req)
		if err != nil {
			return false
		}
		defer res.Body.Close()

		return res.StatusCode >= 200 && res.StatusCode < 300
	}
}
