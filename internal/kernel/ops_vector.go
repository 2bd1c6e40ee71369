package kernel

import (
	"math"
	"math/cmplx"

	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

func vlen(ctx Context) int { return int(special(ctx, regfile.VLEN)) }

// Binary builds a Vadd/Vsub/Vmul-family kernel: elementwise op over two
// DRAM vectors of length VLEN, writing into a third.
func Binary(elem memory.Elem, op func(a, b complex128) complex128) KernelFn {
	return func(ctx Context, rd, rs1, rs2 int) {
		d := ctx.DRAM()
		n := vlen(ctx)
		sz := uint64(elem.Size())
		dst, a, b := general(ctx, rd), general(ctx, rs1), general(ctx, rs2)
		for i := 0; i < n; i++ {
			off := uint64(i) * sz
			d.WriteElem(elem, dst+off, op(d.ReadElem(elem, a+off), d.ReadElem(elem, b+off)))
		}
		advancePC(ctx)
	}
}

// BinaryImm builds a Vaddi/Vsubi/Vmuli-family kernel: elementwise op
// against an immediate held directly in rs2 (not a pointer).
func BinaryImm(elem memory.Elem, op func(a, b complex128) complex128) KernelFn {
	return func(ctx Context, rd, rs1, rs2 int) {
		d := ctx.DRAM()
		n := vlen(ctx)
		sz := uint64(elem.Size())
		dst, a := general(ctx, rd), general(ctx, rs1)
		imm := complex(math.Float64frombits(general(ctx, rs2)), 0)
		for i := 0; i < n; i++ {
			off := uint64(i) * sz
			d.WriteElem(elem, dst+off, op(d.ReadElem(elem, a+off), imm))
		}
		advancePC(ctx)
	}
}

// Unary builds an unpromoted unary kernel: one DRAM vector in, one out,
// same element type both sides.
func Unary(elem memory.Elem, op func(complex128) complex128) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		d := ctx.DRAM()
		n := vlen(ctx)
		sz := uint64(elem.Size())
		dst, src := general(ctx, rd), general(ctx, rs1)
		for i := 0; i < n; i++ {
			off := uint64(i) * sz
			d.WriteElem(elem, dst+off, op(d.ReadElem(elem, src+off)))
		}
		advancePC(ctx)
	}
}

// UnaryPromote builds a unary kernel whose output element type differs
// from its input (Vrec's I32 -> F64 promotion).
func UnaryPromote(inElem, outElem memory.Elem, op func(complex128) complex128) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		d := ctx.DRAM()
		n := vlen(ctx)
		inSz, outSz := uint64(inElem.Size()), uint64(outElem.Size())
		dst, src := general(ctx, rd), general(ctx, rs1)
		for i := 0; i < n; i++ {
			d.WriteElem(outElem, dst+uint64(i)*outSz, op(d.ReadElem(inElem, src+uint64(i)*inSz)))
		}
		advancePC(ctx)
	}
}

// Reduce builds a Vsum/Vmax/Vmin-family kernel: folds a DRAM vector of
// length VLEN down to a single scalar written at output[0].
func Reduce(elem memory.Elem, init complex128, fold func(acc, x complex128) complex128) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		d := ctx.DRAM()
		n := vlen(ctx)
		sz := uint64(elem.Size())
		src := general(ctx, rs1)
		acc := init
		for i := 0; i < n; i++ {
			acc = fold(acc, d.ReadElem(elem, src+uint64(i)*sz))
		}
		d.WriteElem(elem, general(ctx, rd), acc)
		advancePC(ctx)
	}
}

// Elementwise op constructors shared across the Vadd/Vsub/Vmul family and
// their immediate and unary siblings.
var (
	AddOp = func(a, b complex128) complex128 { return a + b }
	SubOp = func(a, b complex128) complex128 { return a - b }
	MulOp = func(a, b complex128) complex128 { return a * b }

	AbsOp  = func(v complex128) complex128 { return complex(cmplx.Abs(v), 0) }
	SquaOp = func(v complex128) complex128 { return v * v }
	NegOp  = func(v complex128) complex128 { return -v }
	RecOp  = func(v complex128) complex128 { return 1 / v }
	ExpOp  = func(v complex128) complex128 { return complex(math.Exp(real(v)), 0) }
	Log10Op = func(v complex128) complex128 { return complex(math.Log10(real(v)), 0) }
	ConjOp  = func(v complex128) complex128 { return cmplx.Conj(v) }

	MaxFold = func(acc, x complex128) complex128 {
		if real(x) > real(acc) {
			return x
		}
		return acc
	}
	MinFold = func(acc, x complex128) complex128 {
		if real(x) < real(acc) {
			return x
		}
		return acc
	}
	SumFold = func(acc, x complex128) complex128 { return acc + x }
)
