// Package hostrt implements the thin host-facing shim spec.md §6 fixes as
// an external contract: device buffer allocation, host<->device copies, a
// textual push_kernel mnemonic parser, synchronize, and the IRQ-indexed
// wait_irq entry point. None of this is the accelerator core -- it is glue
// translating a host program's calls into internal/isa.Instruction values
// pushed through internal/accel.
//
// Grounded on program_executor.go's MMIO-driven session/status/error shadow
// registers (a monotonic session counter, a status enum, guarded by one
// mutex) and assembler/ie64dis.go's mnemonic <-> operand textual grammar,
// generalised from IE64's fixed-width binary encoding to the variable
// operand-count grammar spec.md §6 defines for push_kernel.
package hostrt

import (
	"fmt"
	"sync"

	"github.com/accelsim/tensoraccel/internal/accel"
	"github.com/accelsim/tensoraccel/internal/isa"
	"github.com/accelsim/tensoraccel/internal/kernel"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

// Version is the semver string exposed via the VERSION special register at
// construction time, per spec.md §6.
const Version = "0.1.0"

// Status mirrors program_executor.go's EXEC_STATUS_* shadow register, here
// tracking the host-visible state of the last synchronize/wait_irq call
// rather than an async file load.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusDone
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRunning:
		return "Running"
	case StatusDone:
		return "Done"
	case StatusError:
		return "Error"
	default:
		return "Status(?)"
	}
}

// Runtime is the host-side driver over one Accelerator: it accumulates a
// pending MAIN instruction stream across PushKernel calls, then builds and
// runs it on Synchronize, mirroring ProgramExecutor's
// "write register, then one control write to fire" builder discipline.
type Runtime struct {
	accel *accel.Accelerator

	mu      sync.Mutex
	pending []*isa.Instruction
	session uint64
	status  Status
	errCode error
}

// New constructs a Runtime over a fresh Accelerator and primes the VERSION
// special register.
func New(opts ...accel.Option) *Runtime {
	a := accel.New(opts...)
	a.Special().SetNamed(regfile.VERSION, versionCode(Version))
	return &Runtime{accel: a, status: StatusIdle}
}

// versionCode packs a "MAJOR.MINOR.PATCH" string into a register value the
// same way the teacher's features.go exposes its build version: one byte
// per component.
func versionCode(v string) uint64 {
	var major, minor, patch uint64
	fmt.Sscanf(v, "%d.%d.%d", &major, &minor, &patch)
	return major<<16 | minor<<8 | patch
}

// Close tears down the underlying Accelerator.
func (r *Runtime) Close() { r.accel.Close() }

// Accelerator exposes the underlying orchestrator for callers that need
// direct register/memory access (e.g. cmd/accelctl's inspector).
func (r *Runtime) Accelerator() *accel.Accelerator { return r.accel }

// Session, Status, and Err report the runtime's last synchronize/wait_irq
// outcome, mirroring program_executor.go's EXEC_SESSION/EXEC_STATUS/EXEC_ERROR
// shadow registers.
func (r *Runtime) Session() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runtime) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errCode
}

// AllocBuffer reserves nbytes of device DRAM and returns its offset.
func (r *Runtime) AllocBuffer(nbytes uint64) (uint64, error) {
	return r.accel.DRAM().Alloc(nbytes)
}

// FreeBuffer releases a previously allocated device buffer.
func (r *Runtime) FreeBuffer(offset uint64) { r.accel.DRAM().Free(offset) }

// CopyToDevice copies src into device DRAM starting at byte offset dst.
func (r *Runtime) CopyToDevice(dst uint64, src []byte) error {
	base := r.accel.DRAM().Base()
	if dst+uint64(len(src)) > uint64(len(base)) {
		return fmt.Errorf("hostrt: copy_to_device out of range: dst=%d len=%d", dst, len(src))
	}
	copy(base[dst:], src)
	return nil
}

// CopyToHost copies n bytes from device DRAM starting at byte offset src
// into dst.
func (r *Runtime) CopyToHost(dst []byte, src uint64) error {
	base := r.accel.DRAM().Base()
	if src+uint64(len(dst)) > uint64(len(base)) {
		return fmt.Errorf("hostrt: copy_to_host out of range: src=%d len=%d", src, len(dst))
	}
	copy(dst, base[src:])
	return nil
}

// PushKernel parses one printable mnemonic line and appends the
// instruction(s) it builds to the pending MAIN body. Mnemonic grammar per
// spec.md §6: "OPCODE[.SUFFIX] [operand [, operand]...]".
func (r *Runtime) PushKernel(line string) error {
	m, err := parseMnemonic(line)
	if err != nil {
		return err
	}
	instr, err := r.build(m)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.pending = append(r.pending, instr)
	r.mu.Unlock()
	return nil
}

// Synchronize closes the MAIN function over everything pushed since the
// last call, builds the program, runs it to completion, and clears the
// pending stream -- the host-visible "fire and block" contract spec.md §6
// assigns to synchronize().
func (r *Runtime) Synchronize() error {
	r.mu.Lock()
	body := r.pending
	r.pending = nil
	r.session++
	session := r.session
	r.status = StatusRunning
	r.mu.Unlock()

	body = append(body, accel.Ret())
	p := isa.NewProgram()
	p.CreateFunc(isa.MainLabel, body)
	p.Build()
	if !p.Valid() {
		return r.fail(session, fmt.Errorf("hostrt: invalid program: %v", p.Errors()))
	}
	if err := r.accel.Run(p); err != nil {
		return r.fail(session, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if session != r.session {
		return nil
	}
	r.status = StatusDone
	r.errCode = nil
	return nil
}

func (r *Runtime) fail(session uint64, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session == r.session {
		r.status = StatusError
		r.errCode = err
	}
	return err
}

// classify reports which AI Tag a compute mnemonic's base name carries:
// Mload/Mstore move data between DRAM and cache and so dispatch through the
// LSU's async read/write queues (Tag Load/Store); the other matrix-shaped
// families (tile/whole-matrix ops) dispatch as MatCompute on the MPU
// directly; everything else (vector/signal families) as VecCompute.
func classify(base string) isa.Tag {
	switch base {
	case "Mload":
		return isa.Load
	case "Mstore":
		return isa.Store
	case "Gemm", "TileGemm", "Transpose", "Permute", "Mma", "Mmp", "Smm", "Mclip":
		return isa.MatCompute
	default:
		return isa.VecCompute
	}
}

// build lowers one parsed mnemonic into an isa.Instruction: control-flow
// mnemonics dispatch through controlFlow (internal/accel's factories);
// anything else is looked up in internal/kernel's typed-opcode registry.
func (r *Runtime) build(m mnemonic) (*isa.Instruction, error) {
	if instr, ok, err := controlFlow(m); ok {
		return instr, err
	}
	fn, _, ok := kernel.Lookup(m.full)
	if !ok {
		return nil, fmt.Errorf("hostrt: unknown mnemonic %q", m.full)
	}
	return buildComputeInstruction(m, fn), nil
}

func buildComputeInstruction(m mnemonic, fn kernel.KernelFn) *isa.Instruction {
	var regs []int
	var imms []uint64
	var drives []isa.Drive
	for _, op := range m.operands {
		switch op.kind {
		case opReg:
			regs = append(regs, op.reg)
		case opImm:
			imms = append(imms, op.imm)
		case opDrive:
			drives = append(drives, op.drive)
		}
	}
	reg := func(i int) int {
		if i < len(regs) {
			return regs[i]
		}
		return 0
	}
	pathID := 0
	if len(imms) > 0 {
		pathID = int(imms[0])
	}
	driver, driven := isa.DriveInst, isa.DriveNone
	if len(drives) > 0 {
		driver = drives[0]
	}
	if len(drives) > 1 {
		driven = drives[1]
	}
	rd, rs1, rs2 := reg(0), reg(1), reg(2)
	return isa.NewAI(m.full, classify(m.base), rd, rs1, rs2, pathID, driver, driven, kernel.Wrap(fn, rd, rs1, rs2))
}
