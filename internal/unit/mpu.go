package unit

import (
	"log/slog"
	"sync"

	"github.com/accelsim/tensoraccel/internal/isa"
)

// MPU is the Matrix/Vector Processing Unit: a worker goroutine that
// dispatches by instruction Tag once Called by the CU. Compute
// instructions (MatCompute/VecCompute) run synchronously under path
// bookkeeping; Load/Store are hand off to the LSU without waiting; Fence
// blocks until a path drains; Ret exits the function body.
type MPU struct {
	machine *Machine
	log     *slog.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	done  chan struct{}
}

// NewMPU creates an MPU over shared accelerator state and starts its
// worker goroutine.
func NewMPU(shared *Shared) *MPU {
	mpu := &MPU{machine: newMachine(shared), log: shared.Log, state: Idling, done: make(chan struct{})}
	mpu.cond = sync.NewCond(&mpu.mu)
	mpu.machine.MPU = mpu
	go mpu.loop()
	return mpu
}

// Join blocks until the MPU's worker goroutine has exited following
// Shutdown.
func (mpu *MPU) Join() { <-mpu.done }

func (mpu *MPU) Machine() *Machine { return mpu.machine }

func (mpu *MPU) State() State {
	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	return mpu.state
}

// Run points the MPU's program counter at a function label (pc) within
// the given program and transitions it to Running.
func (mpu *MPU) Run(program *isa.Program, pc int) {
	mpu.machine.program = program
	mpu.machine.SetPC(pc)
	mpu.mu.Lock()
	mpu.state = Running
	mpu.cond.Broadcast()
	mpu.mu.Unlock()
}

// Wait blocks until the MPU returns to Idling.
func (mpu *MPU) Wait() {
	mpu.mu.Lock()
	for mpu.state == Running {
		mpu.cond.Wait()
	}
	mpu.mu.Unlock()
}

// Shutdown signals the worker goroutine to exit.
func (mpu *MPU) Shutdown() {
	mpu.mu.Lock()
	mpu.state = Shutdown
	mpu.cond.Broadcast()
	mpu.mu.Unlock()
}

func (mpu *MPU) loop() {
	mpu.mu.Lock()
	for {
		for mpu.state != Running && mpu.state != Shutdown {
			mpu.cond.Wait()
		}
		if mpu.state == Shutdown {
			mpu.mu.Unlock()
			close(mpu.done)
			return
		}
		mpu.mu.Unlock()

		mpu.dispatchLoop()

		mpu.mu.Lock()
		if mpu.state == Running {
			mpu.state = Idling
		}
		mpu.cond.Broadcast()
	}
}

func (mpu *MPU) dispatchLoop() {
	m := mpu.machine
	instrID := 0
	for {
		pc := m.PC()
		if pc < 0 || pc >= m.ProgramSize() {
			return
		}
		instr := m.program.Instructions[pc]
		instrID++

		switch instr.Tag {
		case isa.MatCompute, isa.VecCompute:
			pth := m.Path(instr.PathID)
			pth.Insert(instrID)
			instr.Kernel(m)
			pth.Erase(instrID)

		case isa.Load, isa.Store:
			pth := m.Path(instr.PathID)
			pth.Insert(instrID)
			m.SetPC(pc + 1)
			if instr.Tag == isa.Load {
				mpu.machine.LSU.ExecuteRead(instr, m, instrID)
			} else {
				mpu.machine.LSU.ExecuteWrite(instr, m, instrID)
			}
			continue

		case isa.Fence:
			m.Path(instr.PathID).Wait()
			instr.Kernel(m)

		case isa.Ret:
			instr.Kernel(m)
			return

		default:
			instr.Kernel(m)
		}
	}
}
