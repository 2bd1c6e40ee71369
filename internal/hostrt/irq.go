package hostrt

import (
	"fmt"

	"github.com/accelsim/tensoraccel/internal/accel"
	"github.com/accelsim/tensoraccel/internal/isa"
	"github.com/accelsim/tensoraccel/internal/kernel"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

// irqSpec binds one IRQ number to the kernel mnemonic it invokes and the
// shape of its packed argument array: a run of device-pointer args (loaded
// into general registers 0..ptrArgs-1 in order) followed by one scalar
// per entry in specials (loaded into that special register in order).
type irqSpec struct {
	mnemonic string
	ptrArgs  int
	specials []regfile.Special
}

// irqTable is spec.md §6's IRQ -> kernel name table (FFT=1, IFFT=2, EXTR=3,
// VMULC32=4, FIR=5, DDC=6), each given the operand shape its kernel family
// needs (internal/kernel/dispatch.go, internal/kernel/ops_signal.go).
var irqTable = map[int]irqSpec{
	1: {mnemonic: "Fft.C32", ptrArgs: 2, specials: []regfile.Special{regfile.VLEN}},
	2: {mnemonic: "Ifft.C32", ptrArgs: 2, specials: []regfile.Special{regfile.VLEN}},
	3: {mnemonic: "Extr.C32", ptrArgs: 2, specials: []regfile.Special{regfile.ULEN, regfile.X_SIZE}},
	4: {mnemonic: "Vmul.C32", ptrArgs: 3, specials: []regfile.Special{regfile.VLEN}},
	5: {mnemonic: "Fir.I32", ptrArgs: 3, specials: []regfile.Special{regfile.ULEN, regfile.VLEN}},
	6: {mnemonic: "Ddc.C32", ptrArgs: 2, specials: []regfile.Special{regfile.ULEN, regfile.VLEN, regfile.X_SIZE}},
}

// WaitIRQ looks up irq in the IRQ table, translates args into a MOVI
// prologue (one Movi per pointer argument, one Movid-style special-register
// load per trailing scalar) plus the named AI opcode, and synchronizes.
// args must hold exactly spec.ptrArgs device offsets followed by
// len(spec.specials) scalars, in that order.
func (r *Runtime) WaitIRQ(irq int, args []uint64) error {
	spec, ok := irqTable[irq]
	if !ok {
		return fmt.Errorf("hostrt: unknown IRQ %d", irq)
	}
	want := spec.ptrArgs + len(spec.specials)
	if len(args) != want {
		return fmt.Errorf("hostrt: IRQ %d (%s) wants %d args, got %d", irq, spec.mnemonic, want, len(args))
	}

	fn, _, ok := kernel.Lookup(spec.mnemonic)
	if !ok {
		return fmt.Errorf("hostrt: IRQ %d names unregistered kernel %q", irq, spec.mnemonic)
	}

	r.mu.Lock()
	for i := 0; i < spec.ptrArgs; i++ {
		r.pending = append(r.pending, accel.Movi(i, args[i]))
	}
	for i, s := range spec.specials {
		r.pending = append(r.pending, accel.Movi(specialPrologueReg, args[spec.ptrArgs+i]))
		r.pending = append(r.pending, setSpecialFromReg(specialPrologueReg, s))
	}
	rd, rs1, rs2 := computeOperands(spec.ptrArgs)
	r.pending = append(r.pending, isa.NewAI(spec.mnemonic, classify(baseOf(spec.mnemonic)), rd, rs1, rs2, 0, isa.DriveInst, isa.DriveNone, kernel.Wrap(fn, rd, rs1, rs2)))
	r.mu.Unlock()

	return r.Synchronize()
}

// specialPrologueReg is a scratch general register used only to stage a
// scalar argument on its way into a special register; never read again
// afterwards.
const specialPrologueReg = 63

// setSpecialFromReg builds a Basic instruction copying a general register's
// value into a special register -- the Movid-style prologue step spec.md §6
// describes for wait_irq's scalar arguments, inverted (Movid goes special
// -> general; this goes general -> special).
func setSpecialFromReg(rs int, special regfile.Special) *isa.Instruction {
	return isa.NewBasic("SetSpecial", int(special), rs, 0, func(m isa.Machine) {
		m.Special().Set(int(special), m.General().Get(rs))
		m.SetPC(m.PC() + 1)
	})
}

// computeOperands derives (rd, rs1, rs2) from how many pointer arguments a
// kernel family takes: two pointers means (src=0, dst=1); three means
// (a=0, b=1, dst=2), matching the Binary/Unary operand convention in
// internal/kernel/ops_vector.go and ops_signal.go.
func computeOperands(ptrArgs int) (rd, rs1, rs2 int) {
	switch ptrArgs {
	case 2:
		return 1, 0, 0
	case 3:
		return 2, 0, 1
	default:
		return 0, 0, 0
	}
}

func baseOf(mnemonicName string) string {
	for i, c := range mnemonicName {
		if c == '.' {
			return mnemonicName[:i]
		}
	}
	return mnemonicName
}
