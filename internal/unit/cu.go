package unit

import (
	"log/slog"
	"sync"

	"github.com/accelsim/tensoraccel/internal/isa"
)

// CU is the Control Unit: a single worker goroutine running a
// fetch-execute loop over whichever program is currently loaded, starting
// at MAIN. Per spec.md §4.5, the loop exits when pc reaches the program's
// instruction count -- i.e. once a top-level Ret has run -- at which point
// the CU transitions to Idling and wakes any caller blocked in Wait.
type CU struct {
	machine *Machine
	log     *slog.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	done  chan struct{}
}

// NewCU creates a Control Unit over shared accelerator state and starts
// its worker goroutine, which immediately parks waiting for Run.
func NewCU(shared *Shared) *CU {
	cu := &CU{machine: newMachine(shared), log: shared.Log, state: Idling, done: make(chan struct{})}
	cu.cond = sync.NewCond(&cu.mu)
	cu.machine.CU = cu
	go cu.loop()
	return cu
}

// Join blocks until the CU's worker goroutine has exited following
// Shutdown.
func (cu *CU) Join() { <-cu.done }

// Machine exposes the CU's isa.Machine / kernel.Context implementation so
// the accelerator can wire sibling unit references and load programs.
func (cu *CU) Machine() *Machine { return cu.machine }

// State reports the CU's current lifecycle state.
func (cu *CU) State() State {
	cu.mu.Lock()
	defer cu.mu.Unlock()
	return cu.state
}

// Run loads program and points the CU's program counter at entry,
// transitioning it to Running. Call Wait to block until it returns to
// Idling.
func (cu *CU) Run(program *isa.Program, entry int) {
	cu.machine.program = program
	cu.machine.SetPC(entry)
	cu.mu.Lock()
	cu.state = Running
	cu.cond.Broadcast()
	cu.mu.Unlock()
}

// Wait blocks until the CU returns to Idling (or Shutdown/Halt).
func (cu *CU) Wait() {
	cu.mu.Lock()
	for cu.state == Running {
		cu.cond.Wait()
	}
	cu.mu.Unlock()
}

// Shutdown signals the worker goroutine to exit at its next opportunity.
func (cu *CU) Shutdown() {
	cu.mu.Lock()
	cu.state = Shutdown
	cu.cond.Broadcast()
	cu.mu.Unlock()
}

func (cu *CU) loop() {
	cu.mu.Lock()
	for {
		for cu.state != Running && cu.state != Shutdown {
			cu.cond.Wait()
		}
		if cu.state == Shutdown {
			cu.mu.Unlock()
			close(cu.done)
			return
		}
		cu.mu.Unlock()

		cu.fetchExecute()

		cu.mu.Lock()
		if cu.state == Running {
			cu.state = Idling
		}
		cu.cond.Broadcast()
	}
}

func (cu *CU) fetchExecute() {
	m := cu.machine
	for {
		pc := m.PC()
		if pc < 0 || pc >= m.ProgramSize() {
			return
		}
		instr := m.program.Instructions[pc]
		instr.Kernel(m)
		if m.PC() >= m.ProgramSize() {
			return
		}
	}
}
