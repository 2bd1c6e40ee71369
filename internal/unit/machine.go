// Package unit implements the accelerator's three concurrent execution
// units: the Control Unit (CU), the Matrix/Vector Processing Unit (MPU),
// and the Load-Store Unit (LSU).
//
// Grounded on coprocessor_manager.go's CoprocWorker lifecycle (stop/done
// channel shutdown, a worker goroutine per unit) and cpu_ie64.go's
// Execute() fetch-decode-dispatch loop (an atomic running flag, pc held in
// the CPU struct, one case per opcode). Where the teacher uses N CPU-type
// workers behind one dispatch table, this package fixes the roster at
// exactly three units with fixed roles instead of a pluggable worker
// factory, since the accelerator's scheduler (unlike the teacher's
// multi-chip host) never adds or removes unit kinds at runtime.
package unit

import (
	"log/slog"
	"sync"

	"github.com/accelsim/tensoraccel/internal/isa"
	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/path"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

// State is a unit's position in its four-state lifecycle.
type State int32

const (
	Idling State = iota
	Running
	Halt
	Shutdown
)

func (s State) String() string {
	switch s {
	case Idling:
		return "Idling"
	case Running:
		return "Running"
	case Halt:
		return "Halt"
	case Shutdown:
		return "Shutdown"
	default:
		return "State(?)"
	}
}

// Shared is the accelerator state every unit reads and writes: the two
// register files, the two memories, and the path table.
type Shared struct {
	General *regfile.General
	Special *regfile.SpecialFile
	DRAM    *memory.DRAM
	Cache   *memory.Cache
	Paths   []*path.Path
	Log     *slog.Logger
}

// Machine is the isa.Machine / kernel.Context implementation every unit's
// kernel dispatch passes to an instruction's closure. Each unit owns its
// own Machine (so each has its own program counter) over the same Shared
// state, and exposes the sibling units so control-flow kernels (Call, Ret,
// Fence) can coordinate across them directly, the way cpu_ie64.go's
// opcode handlers reach straight into CPU-owned fields rather than through
// an abstraction layer.
type Machine struct {
	shared *Shared

	mu sync.Mutex
	pc int

	program *isa.Program

	CU  *CU
	MPU *MPU
	LSU *LSU
}

func newMachine(shared *Shared) *Machine {
	return &Machine{shared: shared}
}

func (m *Machine) PC() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pc
}

func (m *Machine) SetPC(pc int) {
	m.mu.Lock()
	m.pc = pc
	m.mu.Unlock()
}

func (m *Machine) General() isa.RegFile { return m.shared.General }
func (m *Machine) Special() isa.RegFile { return m.shared.Special }

func (m *Machine) Path(id int) isa.Waiter { return m.shared.Paths[id] }

func (m *Machine) DRAM() *memory.DRAM   { return m.shared.DRAM }
func (m *Machine) Cache() *memory.Cache { return m.shared.Cache }

// Program returns the program currently loaded on this unit's owner.
func (m *Machine) Program() *isa.Program { return m.program }

// ProgramSize is the sentinel pc value meaning "no further instruction":
// RET is initialized to it, and the CU's fetch loop exits when pc reaches
// it.
func (m *Machine) ProgramSize() int {
	if m.program == nil {
		return 0
	}
	return len(m.program.Instructions)
}
