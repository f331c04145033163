package detector

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessSample is a point-in-time reading of the host process.
type ProcessSample struct {
	// CPUPercent is cumulative (user+system) CPU time over process uptime,
	// as a percentage. Negative when unknown.
	CPUPercent float64
	HeapUsed   uint64
	// HeapLimit is GOMEMLIMIT when set, else the cgroup memory limit, else
	// system memory. On an unconstrained host the memory signal rarely fires.
	HeapLimit uint64
}

// MemoryPercent returns heap usage against the heap limit, or -1 when the limit is unknown.
func (s ProcessSample) MemoryPercent() float64 {
	if s.HeapLimit == 0 {
		return -1
	}
	return float64(s.HeapUsed) * 100 / float64(s.HeapLimit)
}

// ProcessSampler reads CPU and memory of the current process.
type ProcessSampler interface {
	Sample() ProcessSample
}

// RuntimeSampler samples the Go heap and, through gopsutil, process CPU time.
// Samples are reused for ttl to keep ReadMemStats off the hot path.
type RuntimeSampler struct {
	clock clock.Clock
	ttl   time.Duration
	proc  *process.Process

	mu        sync.Mutex
	last      ProcessSample
	sampledAt time.Time
	hasSample bool
}

// NewRuntimeSampler creates a sampler for the current process.
func NewRuntimeSampler(clk clock.Clock, ttl time.Duration) *RuntimeSampler {
	if clk == nil {
		clk = clock.New()
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}
	return &RuntimeSampler{clock: clk, ttl: ttl, proc: proc}
}

// Sample returns a fresh or cached reading.
func (r *RuntimeSampler) Sample() ProcessSample {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if r.hasSample && now.Sub(r.sampledAt) < r.ttl {
		return r.last
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	r.last = ProcessSample{
		CPUPercent: r.cpuPercent(),
		HeapUsed:   ms.HeapAlloc,
		HeapLimit:  heapLimit(),
	}
	r.sampledAt = now
	r.hasSample = true
	return r.last
}

func (r *RuntimeSampler) cpuPercent() float64 {
	if r.proc == nil {
		return -1
	}
	times, err := r.proc.Times()
	if err != nil {
		return -1
	}
	created, err := r.proc.CreateTime()
	if err != nil {
		return -1
	}
	uptime := time.Since(time.UnixMilli(created)).Seconds()
	if uptime <= 0 {
		return -1
	}
	return (times.User + times.System) / uptime * 100
}

const cgroupRoot = "/sys/fs/cgroup"

// heapLimit is the soft memory limit, then the container's cgroup memory
// limit, then total system memory.
func heapLimit() uint64 {
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit != math.MaxInt64 {
		return uint64(limit)
	}
	if limit := cgroupMemoryLimit(cgroupRoot); limit > 0 {
		return limit
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.Total
}

// cgroupMemoryLimit reads the cgroup v2 memory.max, falling back to the v1
// memory.limit_in_bytes. It returns 0 when no limit is set.
func cgroupMemoryLimit(root string) uint64 {
	if limit, ok := readLimitFile(filepath.Join(root, "memory.max")); ok {
		return limit
	}
	if limit, ok := readLimitFile(filepath.Join(root, "memory", "memory.limit_in_bytes")); ok {
		return limit
	}
	return 0
}

// unlimitedV1 is above any real limit; v1 reports "no limit" as a page-aligned MaxInt64.
const unlimitedV1 = 1 << 62

func readLimitFile(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	value := strings.TrimSpace(string(data))
	if value == "max" {
		return 0, true
	}
	limit, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false
	}
	if limit >= unlimitedV1 {
		return 0, true
	}
	return limit, true
}
