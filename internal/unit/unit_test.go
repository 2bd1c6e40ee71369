package unit

import (
	"log/slog"
	"testing"
	"time"

	"github.com/accelsim/tensoraccel/internal/isa"
	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/path"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

func newShared(numPaths int) *Shared {
	paths := make([]*path.Path, numPaths)
	for i := range paths {
		paths[i] = path.New()
	}
	return &Shared{
		General: regfile.NewGeneral(),
		Special: regfile.NewSpecialFile(),
		DRAM:    memory.NewDRAM(),
		Cache:   memory.NewCache(),
		Paths:   paths,
		Log:     slog.Default(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestCUFetchExecuteAdvancesPC(t *testing.T) {
	shared := newShared(1)
	cu := NewCU(shared)
	defer cu.Shutdown()

	p := isa.NewProgram()
	incr := isa.NewBasic("incr", 0, 0, 0, func(m isa.Machine) {
		m.General().Set(0, m.General().Get(0)+1)
		m.SetPC(m.PC() + 1)
	})
	ret := isa.NewAI("ret", isa.Ret, 0, 0, 0, 0, isa.DriveNone, isa.DriveNone, func(m isa.Machine) {
		m.SetPC(m.PC() + 1)
	})
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{incr, incr, incr, ret})
	p.Build()
	if !p.Valid() {
		t.Fatalf("invalid program: %v", p.Errors())
	}

	entry, _ := p.GetPC(isa.MainLabel)
	cu.Run(p, entry)
	cu.Wait()

	if got := shared.General.Get(0); got != 3 {
		t.Fatalf("General(0) = %d, want 3", got)
	}
	if cu.State() != Idling {
		t.Fatalf("CU state = %v, want Idling", cu.State())
	}
}

func TestMPUPathTrackingAroundCompute(t *testing.T) {
	shared := newShared(1)
	mpu := NewMPU(shared)
	defer mpu.Shutdown()

	var sawNonEmpty bool
	compute := isa.NewAI("compute", isa.MatCompute, 0, 0, 0, 0, isa.DriveInst, isa.DriveNone, func(m isa.Machine) {
		sawNonEmpty = !m.Path(0).(*path.Path).Empty()
		m.SetPC(m.PC() + 1)
	})
	ret := isa.NewAI("ret", isa.Ret, 0, 0, 0, 0, isa.DriveNone, isa.DriveNone, func(m isa.Machine) {
		m.SetPC(m.PC() + 1)
	})
	p := isa.NewProgram()
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{compute, ret})
	p.Build()

	pc, _ := p.GetPC(isa.MainLabel)
	mpu.Run(p, pc)
	mpu.Wait()

	if !sawNonEmpty {
		t.Fatal("path should have been non-empty during MatCompute dispatch")
	}
	if !shared.Paths[0].Empty() {
		t.Fatal("path should be empty again after MatCompute completes")
	}
}

func TestMPUDispatchesLoadTagToLSU(t *testing.T) {
	shared := newShared(1)
	mpu := NewMPU(shared)
	defer mpu.Shutdown()
	lsu := NewLSU(shared)
	defer lsu.Shutdown()
	mpu.machine.LSU = lsu

	ran := make(chan struct{})
	load := &isa.Instruction{
		Typ: isa.AI, Tag: isa.Load, PathID: 0,
		Kernel: func(m isa.Machine) { close(ran) },
	}
	ret := isa.NewAI("ret", isa.Ret, 0, 0, 0, 0, isa.DriveNone, isa.DriveNone, func(m isa.Machine) {
		m.SetPC(m.PC() + 1)
	})
	p := isa.NewProgram()
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{load, ret})
	p.Build()

	pc, _ := p.GetPC(isa.MainLabel)
	mpu.Run(p, pc)
	mpu.Wait()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Load-tagged instruction never reached the LSU")
	}
	waitFor(t, func() bool { return shared.Paths[0].Empty() })
}

func TestLSUExecuteReadCompletesAndErasesPath(t *testing.T) {
	shared := newShared(1)
	lsu := NewLSU(shared)
	defer lsu.Shutdown()

	machine := newMachine(shared)
	machine.LSU = lsu

	shared.Paths[0].Insert(1)

	done := make(chan struct{})
	instr := &isa.Instruction{
		Typ: isa.AI, Tag: isa.Load, PathID: 0,
		Kernel: func(m isa.Machine) { close(done) },
	}
	lsu.ExecuteRead(instr, machine, 1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LSU never ran the enqueued read")
	}
	waitFor(t, func() bool { return shared.Paths[0].Empty() })
	waitFor(t, func() bool { return !lsu.Running() })
}
