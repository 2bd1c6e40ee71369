package accel

import (
	"testing"

	"github.com/accelsim/tensoraccel/internal/isa"
	"github.com/accelsim/tensoraccel/internal/kernel"
	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

func TestRunSimpleArithmeticOnCU(t *testing.T) {
	a := New()
	defer a.Close()

	p := isa.NewProgram()
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{
		Movi(1, 5),
		Movi(2, 7),
		Add(3, 1, 2),
		Ret(),
	})
	p.Build()
	if !p.Valid() {
		t.Fatalf("invalid program: %v", p.Errors())
	}

	if err := a.Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := a.General().Get(3); got != 12 {
		t.Fatalf("General(3) = %d, want 12", got)
	}
}

func TestRunBranchLoop(t *testing.T) {
	a := New()
	defer a.Close()

	p := isa.NewProgram()
	body := []*isa.Instruction{
		Movi(1, 0),
		isa.NewLabel("LOOP"),
		Addi(1, 1, 1),
		Bnei(1, 5, "LOOP"),
		Ret(),
	}
	p.CreateFunc(isa.MainLabel, body)
	p.Build()
	if !p.Valid() {
		t.Fatalf("invalid program: %v", p.Errors())
	}

	if err := a.Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := a.General().Get(1); got != 5 {
		t.Fatalf("General(1) = %d, want 5", got)
	}
}

func TestRunMemSetAndDmovi(t *testing.T) {
	a := New()
	defer a.Close()

	off, err := a.DRAM().Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	p := isa.NewProgram()
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{
		Movi(1, off),
		Movi(2, 4),
		Movi(3, 0xBEEF),
		MemSet(1, 2, 3),
		Dmovi(4, 1),
		Ret(),
	})
	p.Build()
	if !p.Valid() {
		t.Fatalf("invalid program: %v", p.Errors())
	}

	if err := a.Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := a.General().Get(4); got != 0xBEEF {
		t.Fatalf("General(4) = %#x, want 0xbeef", got)
	}
}

func TestRunInvalidProgramRejected(t *testing.T) {
	a := New()
	defer a.Close()

	p := isa.NewProgram()
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{Movi(1, 1)})
	p.Build()
	if p.Valid() {
		t.Fatal("program missing Ret should be invalid")
	}

	if err := a.Run(p); err != ErrInvalidProgram {
		t.Fatalf("Run = %v, want ErrInvalidProgram", err)
	}
}

func TestCallDispatchesToMPU(t *testing.T) {
	a := New()
	defer a.Close()

	compute := isa.NewAI("compute", isa.VecCompute, 0, 0, 0, 0, isa.DriveInst, isa.DriveNone, func(m isa.Machine) {
		m.General().Set(5, 99)
		m.SetPC(m.PC() + 1)
	})
	mpuRet := isa.NewAI("ret", isa.Ret, 0, 0, 0, 0, isa.DriveNone, isa.DriveNone, func(m isa.Machine) {})

	p := isa.NewProgram()
	p.CreateFunc("WORKER", []*isa.Instruction{compute, mpuRet})
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{
		Call("WORKER", "MPU", 0, 0, 0),
		Ret(),
	})
	p.Build()
	if !p.Valid() {
		t.Fatalf("invalid program: %v", p.Errors())
	}

	if err := a.Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := a.General().Get(5); got != 99 {
		t.Fatalf("General(5) = %d, want 99 (MPU never ran WORKER)", got)
	}
}

func TestCallDispatchesLoadToLSU(t *testing.T) {
	a := New()
	defer a.Close()

	a.Special().SetNamed(regfile.X_SIZE, 2)
	a.Special().SetNamed(regfile.Y_SIZE, 1)
	a.Special().SetNamed(regfile.X_STRIDE, 2)

	a.DRAM().WriteElem(memory.F64, 0, 7)
	a.DRAM().WriteElem(memory.F64, 8, 9)
	a.General().Set(1, 0) // cache dst
	a.General().Set(2, 0) // dram src
	a.General().Set(3, 1) // block

	mload := isa.NewAI("Mload", isa.Load, 1, 2, 3, 0, isa.DriveInst, isa.DriveNone,
		kernel.Wrap(kernel.Mload(memory.F64), 1, 2, 3))
	mpuRet := isa.NewAI("ret", isa.Ret, 0, 0, 0, 0, isa.DriveNone, isa.DriveNone, func(m isa.Machine) {})

	p := isa.NewProgram()
	p.CreateFunc("WORKER", []*isa.Instruction{mload, Fence(0), mpuRet})
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{
		Call("WORKER", "MPU", 0, 0, 0),
		Ret(),
	})
	p.Build()
	if !p.Valid() {
		t.Fatalf("invalid program: %v", p.Errors())
	}

	if err := a.Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := real(a.Cache().ReadElem(memory.F64, 0)); got != 7 {
		t.Fatalf("Cache[0] = %v, want 7 (Load-tagged Mload never reached the LSU)", got)
	}
	if got := real(a.Cache().ReadElem(memory.F64, 8)); got != 9 {
		t.Fatalf("Cache[1] = %v, want 9", got)
	}
}

func TestMovidReadsSpecialRegister(t *testing.T) {
	a := New()
	defer a.Close()

	a.Special().SetNamed(regfile.VERSION, 42)

	p := isa.NewProgram()
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{
		Movid(1, regfile.VERSION),
		Ret(),
	})
	p.Build()
	if !p.Valid() {
		t.Fatalf("invalid program: %v", p.Errors())
	}

	if err := a.Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := a.General().Get(1); got != 42 {
		t.Fatalf("General(1) = %d, want 42", got)
	}
}

func TestCloseIsIdempotentAcrossUnits(t *testing.T) {
	a := New()
	p := isa.NewProgram()
	p.CreateFunc(isa.MainLabel, []*isa.Instruction{Ret()})
	p.Build()
	if err := a.Run(p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a.Close()
	a.Close()
}
