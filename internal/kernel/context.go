// Package kernel implements the accelerator's typed compute kernels: the
// elementwise, reduction, transpose/permute, GEMM, tile-matrix, and
// signal-processing opcode families, each instantiable over the I32/F32/
// F64/C32/C64 element types.
//
// Every kernel operates in complex128 internally and defers truncation to
// memory.Addressable's ReadElem/WriteElem, the same centralised
// reinterpret-and-convert accessor the REDESIGN FLAGS section calls for in
// place of the source's ad-hoc raw-pointer casts. This is grounded on
// cpu_ie64.go's ALU dispatch idiom (one function per opcode, explicit
// masking before store) generalised from a single 64-bit lane to an
// arbitrary element type carried as a parameter.
package kernel

import (
	"github.com/accelsim/tensoraccel/internal/isa"
	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

// Context is the surface a compute kernel needs: isa.Machine for register
// access plus the two memories. The control unit and MPU's shared machine
// satisfy this directly; the LSU instead wraps that machine in a throwaway-pc
// context (unit.lsuContext) before handing a Load/Store kernel to it, so the
// async kernel's self-advance lands on a discarded pc instead of racing the
// MPU's own.
type Context interface {
	isa.Machine
	DRAM() *memory.DRAM
	Cache() *memory.Cache
}

func special(ctx Context, s regfile.Special) uint64 {
	return ctx.Special().Get(int(s))
}

func general(ctx Context, reg int) uint64 {
	return ctx.General().Get(reg)
}

func advancePC(ctx Context) {
	ctx.SetPC(ctx.PC() + 1)
}

// KernelFn is a compute kernel's body, taking its three operand register
// indices at call time. Wrap binds a KernelFn's operands into a concrete
// isa.Kernel closure for placement into an isa.Instruction.
type KernelFn func(ctx Context, rd, rs1, rs2 int)

// Wrap binds rd/rs1/rs2 into fn and type-asserts the isa.Machine handed to
// it at dispatch time down to the richer Context every compute kernel
// needs. The control unit and MPU's shared machine implementation satisfies
// Context, so the assertion never fails for AI instructions.
func Wrap(fn KernelFn, rd, rs1, rs2 int) isa.Kernel {
	return func(m isa.Machine) {
		fn(m.(Context), rd, rs1, rs2)
	}
}
