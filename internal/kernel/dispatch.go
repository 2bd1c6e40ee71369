package kernel

import (
	"math"

	"github.com/accelsim/tensoraccel/internal/memory"
)

// entry pairs a family's shape function with the element type it was
// instantiated over, keyed by the mnemonic a mnemonic-form program uses
// (e.g. "Vadd.F32").
type entry struct {
	fn   KernelFn
	elem memory.Elem
}

var registry = map[string]entry{}

func register(name string, elem memory.Elem, fn KernelFn) {
	registry[name+"."+elem.String()] = entry{fn: fn, elem: elem}
}

var allElems = []memory.Elem{memory.I32, memory.F32, memory.F64, memory.C32, memory.C64}
var realElems = []memory.Elem{memory.I32, memory.F32, memory.F64}
var complexElems = []memory.Elem{memory.C32, memory.C64}

func init() {
	for _, e := range allElems {
		register("Vadd", e, Binary(e, AddOp))
		register("Vsub", e, Binary(e, SubOp))
		register("Vaddi", e, BinaryImm(e, AddOp))
		register("Vsubi", e, BinaryImm(e, SubOp))
		register("Vmuli", e, BinaryImm(e, MulOp))
		register("Vabs", e, Unary(e, AbsOp))
		register("Transpose", e, Transpose(e))
		register("Permute", e, Permute(e))
		register("Gemm", e, Gemm(e))
		register("TileGemm", e, TileGemm(e))
		register("Extr", e, Extr(e))
		register("Mload", e, Mload(e))
		register("Mstore", e, Mstore(e))
	}
	// Vmul is only specified for I32/F32/F64/C32 (no C64 in the family list).
	for _, e := range []memory.Elem{memory.I32, memory.F32, memory.F64, memory.C32} {
		register("Vmul", e, Binary(e, MulOp))
	}
	for _, e := range realElems {
		register("Vsqua", e, Unary(e, SquaOp))
		register("Vneg", e, Unary(e, NegOp))
		register("Vexp", e, Unary(e, ExpOp))
		register("Vlog10", e, Unary(e, Log10Op))
		register("Vsum", e, Reduce(e, 0, SumFold))
		register("Vmax", e, Reduce(e, complex(math.Inf(-1), 0), MaxFold))
		register("Vmin", e, Reduce(e, complex(math.Inf(1), 0), MinFold))
		register("Mma", e, Mma(e))
		register("Mmp", e, Mmp(e))
		register("Smm", e, Smm(e))
		register("Mclip", e, Mclip(e))
	}
	for _, e := range []memory.Elem{memory.F32, memory.F64} {
		register("Vrec", e, Unary(e, RecOp))
	}
	register("Vrec", memory.I32, UnaryPromote(memory.I32, memory.F64, RecOp))
	for _, e := range complexElems {
		register("Vconj", e, Unary(e, ConjOp))
		register("Fft", e, Fft(e))
		register("Ifft", e, Ifft(e))
		register("Ddc", e, Ddc(e))
	}
	register("Conv", memory.F32, Conv(memory.F32))
	register("Fir", memory.I32, Conv(memory.I32))
}

// Lookup resolves a typed mnemonic (e.g. "Vadd.F32") to its KernelFn and
// element type. Used by the program builder when lowering mnemonic-form
// host kernels into isa.Instruction factories.
func Lookup(mnemonic string) (KernelFn, memory.Elem, bool) {
	e, ok := registry[mnemonic]
	if !ok {
		return nil, 0, false
	}
	return e.fn, e.elem, true
}

// Names returns every registered mnemonic, for diagnostics and the host
// console's `:kernels` listing.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
