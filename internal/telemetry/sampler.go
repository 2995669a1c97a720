package telemetry

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Sampler reads resource usage of the client process. Samples feed the
// session health log; they never influence scoring.
type Sampler struct {
	proc *process.Process
	now  func() time.Time
}

func NewSampler() (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Sampler{proc: proc, now: time.Now}, nil
}

// Sample takes one health snapshot. Partial failures degrade to zero values
// rather than failing the sample.
func (s *Sampler) Sample() *Health {
	h := &Health{Timestamp: s.now()}

	if cpuPct, err := s.proc.CPUPercent(); err == nil {
		h.CPUPercent = cpuPct
	}
	if info, err := s.proc.MemoryInfo(); err == nil && info != nil {
		h.RSSBytes = info.RSS
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		h.SystemMemUsed = vm.UsedPercent
	}
	return h
}
