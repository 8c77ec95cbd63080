// Package sysinfo polls CPU, memory, load, and uptime for the monitor
// view. gopsutil does the platform work; the service only shapes the
// result into a snapshot and fans it out on the event loop.
package sysinfo

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
	"github.com/vibepanel/vibepanel/pkg/services"
)

const (
	pollPeriod  = 2 * time.Second
	pollTimeout = 5 * time.Second
)

// Snapshot is one system metrics sample.
type Snapshot struct {
	CPUPercent  float64
	CPUCount    int
	MemTotal    uint64
	MemUsed     uint64
	MemPercent  float64
	SwapTotal   uint64
	SwapUsed    uint64
	SwapPercent float64
	Load1       float64
	Load5       float64
	Load15      float64
	Uptime      time.Duration
	Ready       bool
}

// Service samples metrics on a fixed cadence while started.
type Service struct {
	log  *slog.Logger
	loop *eventloop.Loop

	snapshot  Snapshot
	callbacks services.Callbacks[Snapshot]

	pollCancel eventloop.CancelFunc
}

func New(log *slog.Logger, loop *eventloop.Loop) *Service {
	return &Service{
		log:  log.With("service", "sysinfo"),
		loop: loop,
	}
}

// Start takes an immediate sample and begins periodic polling.
func (s *Service) Start() error {
	s.poll()
	s.pollCancel = s.loop.Every(pollPeriod, s.poll)
	return nil
}

// Stop halts polling.
func (s *Service) Stop() {
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
}

// OnChange registers a snapshot callback, replaying the current state.
func (s *Service) OnChange(fn func(Snapshot)) int {
	return s.callbacks.Register(fn, s.snapshot)
}

// Unregister removes a callback by its registration id.
func (s *Service) Unregister(id int) {
	s.callbacks.Unregister(id)
}

// Snapshot returns the latest sample.
func (s *Service) Snapshot() Snapshot {
	return s.snapshot
}

// poll samples off-loop and applies the result. Sub-collectors fail
// independently; whatever succeeded still lands in the snapshot.
func (s *Service) poll() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
		defer cancel()

		next := Snapshot{Ready: true}

		if total, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(total) > 0 {
			next.CPUPercent = total[0]
		} else if err != nil {
			s.logSampleError("cpu", err)
		}
		if counts, err := cpu.CountsWithContext(ctx, true); err == nil {
			next.CPUCount = counts
		}

		if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
			next.MemTotal = vm.Total
			next.MemUsed = vm.Used
			next.MemPercent = vm.UsedPercent
		} else {
			s.logSampleError("memory", err)
		}
		if sw, err := mem.SwapMemoryWithContext(ctx); err == nil && sw.Total > 0 {
			next.SwapTotal = sw.Total
			next.SwapUsed = sw.Used
			next.SwapPercent = sw.UsedPercent
		}

		if avg, err := load.AvgWithContext(ctx); err == nil {
			next.Load1 = avg.Load1
			next.Load5 = avg.Load5
			next.Load15 = avg.Load15
		}

		if secs, err := host.UptimeWithContext(ctx); err == nil {
			next.Uptime = time.Duration(secs) * time.Second
		}

		s.loop.Post(func() {
			s.apply(next)
		})
	}()
}

func (s *Service) apply(next Snapshot) {
	if s.snapshot == next {
		return
	}
	s.snapshot = next
	s.callbacks.Notify(next)
}

func (s *Service) logSampleError(what string, err error) {
	s.loop.Post(func() {
		s.log.Debug("sample failed", "what", what, "error", err)
	})
}
