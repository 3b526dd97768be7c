package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// MemoryUsage is one sample of process and system memory
type MemoryUsage struct {
	RSS                   uint64
	VMS                   uint64
	HeapAlloc             uint64
	Goroutines            int
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
}

// MemorySampler publishes process memory to ResidentMemory and HeapAlloc.
// Generation keeps at most one batch in memory, so RSS should stay flat
// across a run regardless of the record count.
type MemorySampler struct {
	process *process.Process
	logger  *zap.Logger
}

// NewMemorySampler attaches to the current process
func NewMemorySampler(logger *zap.Logger) (*MemorySampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemorySampler{process: proc, logger: logger}, nil
}

// Sample reads current usage and updates the gauges. System memory fields
// stay zero when the host does not expose them.
func (m *MemorySampler) Sample() (*MemoryUsage, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	usage := &MemoryUsage{
		HeapAlloc:  memStats.HeapAlloc,
		Goroutines: runtime.NumGoroutine(),
	}

	info, err := m.process.MemoryInfo()
	if err != nil {
		return nil, err
	}
	usage.RSS = info.RSS
	usage.VMS = info.VMS

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}

	ResidentMemory.Set(float64(usage.RSS))
	HeapAlloc.Set(float64(usage.HeapAlloc))
	return usage, nil
}

// Run samples every interval until ctx is done
func (m *MemorySampler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			usage, err := m.Sample()
			if err != nil {
				m.logger.Warn("memory sample failed", zap.Error(err))
				continue
			}
			m.logger.Debug("memory sample",
				zap.Uint64("rss_bytes", usage.RSS),
				zap.Uint64("heap_alloc_bytes", usage.HeapAlloc),
				zap.Int("goroutines", usage.Goroutines))
		}
	}
}
