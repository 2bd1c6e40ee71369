package unit

import (
	"log/slog"
	"sync"

	"github.com/accelsim/tensoraccel/internal/isa"
)

type lsuJob struct {
	instr   *isa.Instruction
	machine *Machine
	id      int
}

// queue is one of the LSU's two independent work queues: a FIFO of
// pending jobs guarded by a mutex/condition variable, with a completion
// flag the owning LSU polls from Running().
type queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	jobs      []lsuJob
	done      bool
	shutdown  bool
}

func newQueue() *queue {
	q := &queue{done: true}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(j lsuJob) {
	q.mu.Lock()
	q.jobs = append(q.jobs, j)
	q.done = false
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *queue) pop() (lsuJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && !q.shutdown {
		q.cond.Wait()
	}
	if q.shutdown && len(q.jobs) == 0 {
		return lsuJob{}, false
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, true
}

// finish marks the queue done once the job just run was its last one.
func (q *queue) finish() {
	q.mu.Lock()
	if len(q.jobs) == 0 {
		q.done = true
	}
	q.mu.Unlock()
}

func (q *queue) running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs) != 0 || !q.done
}

func (q *queue) shutdownQueue() {
	q.mu.Lock()
	q.shutdown = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// LSU is the Load-Store Unit: two independent FIFO queues (read, write),
// each serviced by its own worker goroutine. Reads and writes proceed
// concurrently with no cross-queue ordering; callers needing one must
// Fence.
type LSU struct {
	log   *slog.Logger
	read  *queue
	write *queue
	wg    sync.WaitGroup
}

// NewLSU creates an LSU and starts its two worker goroutines.
func NewLSU(shared *Shared) *LSU {
	l := &LSU{log: shared.Log, read: newQueue(), write: newQueue()}
	l.wg.Add(2)
	go l.serve(l.read)
	go l.serve(l.write)
	return l
}

func (l *LSU) serve(q *queue) {
	defer l.wg.Done()
	for {
		j, ok := q.pop()
		if !ok {
			return
		}
		j.instr.Kernel(&lsuContext{Machine: j.machine})
		j.machine.Path(j.instr.PathID).Erase(j.id)
		q.finish()
	}
}

// lsuContext is the throwaway isa.Machine/kernel.Context an asynchronously
// dispatched Load/Store kernel runs against: it shares the owning MPU's
// register files and memories via the embedded *Machine, but owns its own
// pc. The MPU already advances its live pc past a Load/Store instruction
// before handing the job to the LSU (unit.MPU.dispatchLoop), precisely so
// its dispatch loop can move on without waiting on the async job; a
// Load/Store kernel's own pc self-advance (every kernel does one, to stay
// uniform with the synchronous CU bypass path host programs run through)
// must land here instead of racing that live pc.
type lsuContext struct {
	*Machine
	pc int
}

func (c *lsuContext) PC() int      { return c.pc }
func (c *lsuContext) SetPC(pc int) { c.pc = pc }

// ExecuteRead enqueues instr's kernel onto the read queue. On completion it
// erases id from instr's path.
func (l *LSU) ExecuteRead(instr *isa.Instruction, machine *Machine, id int) {
	l.read.push(lsuJob{instr: instr, machine: machine, id: id})
}

// ExecuteWrite enqueues instr's kernel onto the write queue.
func (l *LSU) ExecuteWrite(instr *isa.Instruction, machine *Machine, id int) {
	l.write.push(lsuJob{instr: instr, machine: machine, id: id})
}

// Running reports whether either queue has pending work or is mid-job.
func (l *LSU) Running() bool {
	return l.read.running() || l.write.running()
}

// Shutdown notifies both queues' worker goroutines to exit once drained.
func (l *LSU) Shutdown() {
	l.read.shutdownQueue()
	l.write.shutdownQueue()
	l.wg.Wait()
}
