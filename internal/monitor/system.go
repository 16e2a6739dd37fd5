package monitor

import (
	"context"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/sleepmon/internal/logger"
)

// SystemInfo is logged at startup.
type SystemInfo struct {
	Hostname      string
	Platform      string
	KernelVersion string
	Arch          string
	CPUModel      string
	LogicalCores  int
	TotalMemoryMB uint64
	UsedMemoryPct float64
}

// ReadSystemInfo collects host details. Fields that cannot be read stay zero.
func ReadSystemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{
		Arch:         runtime.GOARCH,
		CPUModel:     cpuid.CPU.BrandName,
		LogicalCores: cpuid.CPU.LogicalCores,
	}
	// cpuid reads nothing on most ARM boards
	if info.CPUModel == "" {
		info.CPUModel = "unknown"
	}
	if info.LogicalCores == 0 {
		info.LogicalCores = runtime.NumCPU()
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform + " " + h.PlatformVersion
		info.KernelVersion = h.KernelVersion
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemoryMB = vm.Total / bytesPerMB
		info.UsedMemoryPct = vm.UsedPercent
	}
	return info
}

// Fields returns info as log fields.
func (s SystemInfo) Fields() []logger.Field {
	return []logger.Field{
		logger.String("hostname", s.Hostname),
		logger.String("platform", s.Platform),
		logger.String("kernel", s.KernelVersion),
		logger.String("arch", s.Arch),
		logger.String("cpu", s.CPUModel),
		logger.Int("cpu_cores", s.LogicalCores),
		logger.Uint64("memory_mb", s.TotalMemoryMB),
		logger.Float64("memory_used_percent", s.UsedMemoryPct),
	}
}
