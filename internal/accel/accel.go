package accel

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/accelsim/tensoraccel/internal/isa"
	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/path"
	"github.com/accelsim/tensoraccel/internal/regfile"
	"github.com/accelsim/tensoraccel/internal/unit"
)

// Option configures an Accelerator at construction time. Mirrors the
// teacher's explicit-constructor style (NewSystemBus, NewCoprocessorManager
// take concrete parameters, not a config struct): a config object exists
// here only because the accelerator has enough knobs to make positional
// parameters unreadable, but the construction itself stays a single call.
type Option func(*Config)

// Config holds the tunables every Accelerator needs at construction: the
// logger and the initial path count. DRAM and cache sizes are not
// configurable; they are fixed constants in internal/memory.
type Config struct {
	Log      *slog.Logger
	NumPaths int
}

func defaultConfig() *Config {
	return &Config{
		Log:      slog.New(slog.NewTextHandler(os.Stderr, nil)),
		NumPaths: 1,
	}
}

// WithLogger overrides the structured logger every unit and the
// Accelerator itself writes to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Log = l }
}

// WithPaths sets the initial number of independent fence lanes (default 1).
// Run grows the path table to the loaded program's PathNum whenever that
// is larger, so this only sets a starting size.
func WithPaths(n int) Option {
	return func(c *Config) { c.NumPaths = n }
}

// Accelerator owns the register files, memories, and three execution
// units for its full lifetime, and orchestrates Run against a built
// Program. Grounded on coprocessor_manager.go's CoprocessorManager: the
// one object every host-facing call goes through, holding the worker
// table and the shared state those workers dispatch against.
type Accelerator struct {
	shared *unit.Shared
	cu     *unit.CU
	mpu    *unit.MPU
	lsu    *unit.LSU
	log    *slog.Logger
}

// New constructs an Accelerator with a fresh 256 MiB DRAM, 4 MiB cache,
// and both register files, then starts its three unit worker goroutines.
func New(opts ...Option) *Accelerator {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	paths := make([]*path.Path, cfg.NumPaths)
	for i := range paths {
		paths[i] = path.New()
	}

	shared := &unit.Shared{
		General: regfile.NewGeneral(),
		Special: regfile.NewSpecialFile(),
		DRAM:    memory.NewDRAM(),
		Cache:   memory.NewCache(),
		Paths:   paths,
		Log:     cfg.Log,
	}

	a := &Accelerator{shared: shared, log: cfg.Log}
	a.lsu = unit.NewLSU(shared)
	a.cu = unit.NewCU(shared)
	a.mpu = unit.NewMPU(shared)

	// Every unit's Machine needs to see its siblings, wired once all three
	// exist. Teardown order (Close) reverses this.
	a.cu.Machine().MPU = a.mpu
	a.cu.Machine().LSU = a.lsu
	a.mpu.Machine().CU = a.cu
	a.mpu.Machine().LSU = a.lsu

	return a
}

// General and Special expose the register files for host-side setup
// (seeding buffers, reading results) between Run calls.
func (a *Accelerator) General() *regfile.General    { return a.shared.General }
func (a *Accelerator) Special() *regfile.SpecialFile { return a.shared.Special }
func (a *Accelerator) DRAM() *memory.DRAM           { return a.shared.DRAM }
func (a *Accelerator) Cache() *memory.Cache         { return a.shared.Cache }

// ErrInvalidProgram is returned by Run when the program failed to build.
var ErrInvalidProgram = fmt.Errorf("accel: program is not valid (see Program.Errors)")

// Run points the Control Unit at the program's MAIN entry and blocks
// until it returns. It refuses an invalid program without touching any
// unit, per spec.md §4.10.
func (a *Accelerator) Run(program *isa.Program) error {
	if !program.Valid() {
		return ErrInvalidProgram
	}
	if program.PathNum > len(a.shared.Paths) {
		a.growPaths(program.PathNum)
	}
	entry, ok := program.GetPC(isa.MainLabel)
	if !ok {
		return ErrInvalidProgram
	}
	// RET holds the CU's top-level return sentinel: Ret's dual contract
	// (spec.md §4.8) treats "RET == program length" as "this Ret closes out
	// MAIN itself", not a call return, so it must be primed before the CU's
	// first fetch.
	a.shared.Special.SetNamed(regfile.RET, uint64(len(program.Instructions)))
	a.cu.Run(program, entry)
	a.cu.Wait()
	return nil
}

func (a *Accelerator) growPaths(n int) {
	for len(a.shared.Paths) < n {
		a.shared.Paths = append(a.shared.Paths, path.New())
	}
}

// Close tears the accelerator down: signal Shutdown to all units (which
// wakes their condition variables), then join CU and MPU concurrently via
// an errgroup before shutting down and draining the LSU's own queues.
// Matches the teardown order spec.md's REDESIGN FLAGS section calls out:
// signal, notify, join, release. errgroup replaces the ad-hoc
// done-channel polling coprocessor_manager.go's CoprocWorker teardown
// uses, since here there are always exactly two units to join and no
// error can actually occur.
func (a *Accelerator) Close() {
	a.cu.Shutdown()
	a.mpu.Shutdown()

	var g errgroup.Group
	g.Go(func() error { a.cu.Join(); return nil })
	g.Go(func() error { a.mpu.Join(); return nil })
	g.Wait()

	a.lsu.Shutdown()
}
