// Package regfile implements the accelerator's two flat register files:
// 256 general-purpose 64-bit registers and 256 named special registers.
//
// This generalises the centralised register-map idiom of the teacher's
// registers.go (one authoritative table of named slots) to register indices
// rather than MMIO addresses, and the atomic single-slot access pattern of
// cpu_ie64.go's setReg/getReg (there: R0 hardwired to zero on every read;
// here: a declared subset of special registers clears to zero on every read).
package regfile

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// NumRegisters is the fixed size of both the general and special register files.
const NumRegisters = 256

// Special names the addressable special-register slots. Every named slot
// is enumerated, including some (e.g. LWGAP, SWGAP, KSIZE) that no kernel
// or control-flow instruction reads; unnamed slots in [0, NumRegisters)
// are still valid storage (an assembler bug, not a simulator one, if
// nothing ever addresses them).
type Special int

const (
	VERSION Special = iota
	RET
	LWGAP
	LWIDTH
	LHGAP
	LHEIGHT
	SWGAP
	SWIDTH
	SHGAP
	SHEIGHT
	MSIZE
	NSIZE
	KSIZE
	DWGAP
	RWGAP
	PEGRESS
	AEGRESS
	MEGRESS
	ULEN
	VLEN
	VSHIFT
	FWD_TMP
	X_PAD_0
	X_PAD_1
	Y_PAD_0
	Y_PAD_1
	NDIM
	X_SIZE
	Y_SIZE
	Z_SIZE
	X_AXIS
	Y_AXIS
	Z_AXIS
	X_STRIDE
	RESET_ACC
	EXTENT
	ACCUM_OFFSET
	CONST_OFFSET
	INPUT_OFFSET

	numSpecialNames
)

var specialNames = [numSpecialNames]string{
	VERSION: "VERSION", RET: "RET",
	LWGAP: "LWGAP", LWIDTH: "LWIDTH", LHGAP: "LHGAP", LHEIGHT: "LHEIGHT",
	SWGAP: "SWGAP", SWIDTH: "SWIDTH", SHGAP: "SHGAP", SHEIGHT: "SHEIGHT",
	MSIZE: "MSIZE", NSIZE: "NSIZE", KSIZE: "KSIZE",
	DWGAP: "DWGAP", RWGAP: "RWGAP",
	PEGRESS: "PEGRESS", AEGRESS: "AEGRESS", MEGRESS: "MEGRESS",
	ULEN: "ULEN", VLEN: "VLEN", VSHIFT: "VSHIFT",
	FWD_TMP: "FWD_TMP",
	X_PAD_0: "X_PAD_0", X_PAD_1: "X_PAD_1", Y_PAD_0: "Y_PAD_0", Y_PAD_1: "Y_PAD_1",
	NDIM: "NDIM", X_SIZE: "X_SIZE", Y_SIZE: "Y_SIZE", Z_SIZE: "Z_SIZE",
	X_AXIS: "X_AXIS", Y_AXIS: "Y_AXIS", Z_AXIS: "Z_AXIS",
	X_STRIDE: "X_STRIDE", RESET_ACC: "RESET_ACC", EXTENT: "EXTENT",
	ACCUM_OFFSET: "ACCUM_OFFSET", CONST_OFFSET: "CONST_OFFSET", INPUT_OFFSET: "INPUT_OFFSET",
}

// byName resolves a special register mnemonic to its index. Built once at
// package init from specialNames, mirroring registers.go's GetIORegion table
// lookup but inverted (name -> index instead of address -> name).
var byName = func() map[string]Special {
	m := make(map[string]Special, numSpecialNames)
	for i, n := range specialNames {
		if n != "" {
			m[n] = Special(i)
		}
	}
	return m
}()

// Lookup resolves a special-register mnemonic (as it would appear in a
// pushed mnemonic string) to its index.
func Lookup(name string) (Special, bool) {
	s, ok := byName[name]
	return s, ok
}

func (s Special) String() string {
	if s >= 0 && int(s) < len(specialNames) && specialNames[s] != "" {
		return specialNames[s]
	}
	return fmt.Sprintf("SPECIAL(%d)", int(s))
}

// egressPorts auto-clear on read: a read atomically returns the current
// value and resets the slot to zero (spec.md invariant 4).
var egressPorts = map[Special]bool{
	PEGRESS: true,
	AEGRESS: true,
	MEGRESS: true,
}

// InvalidRegister reports an out-of-range register index, a programming
// error per spec.md §7 (ProgrammerError class, not recoverable at runtime).
type InvalidRegister struct {
	Index int
	Kind  string // "general" or "special"
}

func (e *InvalidRegister) Error() string {
	return fmt.Sprintf("regfile: invalid %s register index %d", e.Kind, e.Index)
}

// General is the 256-slot general-purpose register file. Most slots hold
// device addresses-by-value or small immediates. Writes take a lock; reads
// are unsynchronized, matching spec.md §4.1's "set takes a lock; get is
// unsynchronized" contract (the teacher's SystemBus applies the analogous
// asymmetry at the memory level, not the register level, but the mutex
// discipline is the same idiom: single writer lock, no reader lock).
type General struct {
	mu   sync.Mutex
	regs [NumRegisters]uint64
}

func NewGeneral() *General {
	return &General{}
}

func (g *General) Get(i int) uint64 {
	if i < 0 || i >= NumRegisters {
		panic(&InvalidRegister{Index: i, Kind: "general"})
	}
	return g.regs[i]
}

func (g *General) Set(i int, v uint64) {
	if i < 0 || i >= NumRegisters {
		panic(&InvalidRegister{Index: i, Kind: "general"})
	}
	g.mu.Lock()
	g.regs[i] = v
	g.mu.Unlock()
}

// SpecialFile is the 256-slot named special register file. The three
// egress-port slots auto-clear on read; every other read is idempotent.
type SpecialFile struct {
	mu sync.Mutex
	// atoms backs both the auto-clear fast path (Swap) and ordinary reads
	// (Load) without needing the write lock for the common case.
	atoms [NumRegisters]atomic.Uint64
}

func NewSpecialFile() *SpecialFile {
	return &SpecialFile{}
}

func (s *SpecialFile) Get(i int) uint64 {
	if i < 0 || i >= NumRegisters {
		panic(&InvalidRegister{Index: i, Kind: "special"})
	}
	if egressPorts[Special(i)] {
		return s.atoms[i].Swap(0)
	}
	return s.atoms[i].Load()
}

func (s *SpecialFile) Set(i int, v uint64) {
	if i < 0 || i >= NumRegisters {
		panic(&InvalidRegister{Index: i, Kind: "special"})
	}
	s.mu.Lock()
	s.atoms[i].Store(v)
	s.mu.Unlock()
}

// GetNamed/SetNamed are convenience wrappers over the Special enum.
func (s *SpecialFile) GetNamed(n Special) uint64 { return s.Get(int(n)) }
func (s *SpecialFile) SetNamed(n Special, v uint64) { s.Set(int(n), v) }
