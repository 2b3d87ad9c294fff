package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/multierr"

	"github.com/zjkmxy/pktsched/sched/core"
)

// Profiler writes the CPU, heap and block profiles requested on the
// command line.
type Profiler struct {
	config  *core.Config
	cpuFile *os.File
	block   *pprof.Profile
}

func NewProfiler(config *core.Config) *Profiler {
	return &Profiler{config: config}
}

func (p *Profiler) String() string {
	return "profiler"
}

func (p *Profiler) Start() error {
	if path := p.config.Core.CpuProfile; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("unable to open CPU profile output: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
		p.cpuFile = f
		core.Log.Info(p, "Profiling CPU", "out", path)
	}

	if path := p.config.Core.BlockProfile; path != "" {
		core.Log.Info(p, "Profiling blocking operations", "out", path)
		runtime.SetBlockProfileRate(1)
		p.block = pprof.Lookup("block")
	}
	return nil
}

func (p *Profiler) Stop() (err error) {
	if p.block != nil {
		err = multierr.Append(err, writeProfile(p.config.Core.BlockProfile, func(w io.Writer) error {
			return p.block.WriteTo(w, 0)
		}))
		p.block = nil
	}

	if path := p.config.Core.MemProfile; path != "" {
		core.Log.Info(p, "Profiling memory", "out", path)
		runtime.GC()
		err = multierr.Append(err, writeProfile(path, pprof.WriteHeapProfile))
	}

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		err = multierr.Append(err, p.cpuFile.Close())
		p.cpuFile = nil
	}
	return err
}

func writeProfile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to open profile output: %w", err)
	}
	return multierr.Combine(write(f), f.Close())
}
