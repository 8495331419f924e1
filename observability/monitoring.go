// Package observability aggregates engine counters for periodic reporting.
package observability

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/shirou/gopsutil/process"
)

// Monitor collects engine-wide telemetry. Counters are atomic; the
// per-event breakdown is guarded by a mutex since it is read rarely.
type Monitor struct {
	OpsDispatched    uint64
	EventsBroadcast  uint64
	PersistenceFails uint64

	mu       sync.RWMutex
	byEvent  map[string]uint64
	selfProc *process.Process
}

func NewMonitor() *Monitor {
	// Best effort: self stats stay zero when the process handle is not
	// available (some container runtimes).
	p, _ := process.NewProcess(int32(os.Getpid()))
	return &Monitor{byEvent: make(map[string]uint64), selfProc: p}
}

func (m *Monitor) IncrOps() {
	atomic.AddUint64(&m.OpsDispatched, 1)
}

func (m *Monitor) IncrPersistenceFail() {
	atomic.AddUint64(&m.PersistenceFails, 1)
}

func (m *Monitor) CountEvent(name string) {
	atomic.AddUint64(&m.EventsBroadcast, 1)
	m.mu.Lock()
	m.byEvent[name]++
	m.mu.Unlock()
}

// EventCounts returns a copy of the per-event totals.
func (m *Monitor) EventCounts() map[string]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint64, len(m.byEvent))
	for k, v := range m.byEvent {
		out[k] = v
	}
	return out
}

// SelfStats retrieves technical metrics (memory and CPU) for this process.
func (m *Monitor) SelfStats() (rssBytes uint64, cpuPercent float64) {
	if m.selfProc == nil {
		return 0, 0
	}
	if memInfo, err := m.selfProc.MemoryInfo(); err == nil {
		rssBytes = memInfo.RSS
	}
	if cpu, err := m.selfProc.CPUPercent(); err == nil {
		cpuPercent = cpu
	}
	return rssBytes, cpuPercent
}
