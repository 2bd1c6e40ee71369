package isa

import "github.com/accelsim/tensoraccel/internal/regfile"

// fwdTmp is the reserved register index used by Build's data-forwarding
// fusion pass as the intra-chain forwarding slot (regfile.FWD_TMP).
const fwdTmp = int(regfile.FWD_TMP)

// Program is an ordered instruction stream plus a label -> index map. It is
// built in two phases: CreateFunc appends function bodies (resolving their
// internal labels as it goes), then Build performs the whole-program passes
// (path count, data-forwarding fusion, entry-point check) once all
// functions have been declared.
type Program struct {
	Instructions []*Instruction
	Labels       map[string]int

	PathNum int

	built bool
	errs  []error
}

// NewProgram creates an empty, unbuilt program.
func NewProgram() *Program {
	return &Program{Labels: make(map[string]int)}
}

// Errors returns the accumulated build-time error list.
func (p *Program) Errors() []error { return p.errs }

// Valid reports whether the program has been built and accumulated no
// errors along the way.
func (p *Program) Valid() bool { return p.built && len(p.errs) == 0 }

// GetPC returns the instruction index bound to label, and whether it exists.
func (p *Program) GetPC(label string) (int, bool) {
	pc, ok := p.Labels[label]
	return pc, ok
}

// CreateFunc declares a named function: name must be unique across the
// whole program, and body may interleave Label nodes (bound to the
// program-wide index of the next instruction and dropped) with Basic/AI instructions
// (appended as-is). A function lacking a Ret-tagged AI instruction, or
// containing a Call-tagged AI instruction outside MAIN, accumulates an
// error on the program rather than returning one directly, matching the
// source's "collect everything Build will need to report" convention.
func (p *Program) CreateFunc(name string, body []*Instruction) {
	if _, exists := p.Labels[name]; exists {
		p.errs = append(p.errs, duplicateName(name))
		return
	}
	p.Labels[name] = len(p.Instructions)

	sawRet := false
	for _, instr := range body {
		switch instr.Typ {
		case Label:
			if _, exists := p.Labels[instr.Name]; exists {
				p.errs = append(p.errs, duplicateLabel(instr.Name))
				continue
			}
			p.Labels[instr.Name] = len(p.Instructions)
		case Basic, AI:
			if instr.Typ == AI && instr.Tag == Ret {
				sawRet = true
			}
			if instr.Typ == AI && instr.Tag == Call && name != MainLabel {
				p.errs = append(p.errs, callOutsideMain(name))
			}
			p.Instructions = append(p.Instructions, instr)
		}
	}
	if !sawRet {
		p.errs = append(p.errs, missingRet(name))
	}
}

// Build performs the whole-program passes: path count derivation,
// data-forwarding fusion, and the MAIN entry-point check. It may be called
// only once; Valid() reports the outcome.
func (p *Program) Build() {
	p.computePathNum()
	p.fuseDataForwarding()
	if _, ok := p.Labels[MainLabel]; !ok {
		p.errs = append(p.errs, noEntryPoint())
	}
	p.built = true
}

func (p *Program) computePathNum() {
	max := -1
	for _, instr := range p.Instructions {
		if instr.Typ == AI && instr.PathID > max {
			max = instr.PathID
		}
	}
	p.PathNum = max + 1
}

// fuseDataForwarding is a single left-to-right pass identifying maximal
// Data-driven AI runs (optionally capped by one trailing Inst-driven
// instruction) and rewriting their operand registers to use fwdTmp as the
// intra-chain forwarding slot. It is confluent: a chain whose head already
// writes fwdTmp is assumed already fused and is skipped, so re-running
// Build's fusion pass on an already-built program is a no-op.
func (p *Program) fuseDataForwarding() {
	instrs := p.Instructions
	i := 0
	for i < len(instrs) {
		if instrs[i].Typ != AI || instrs[i].Driver != DriveData {
			i++
			continue
		}
		j := i
		for j < len(instrs) && instrs[j].Typ == AI && instrs[j].Driver == DriveData {
			j++
		}
		end := j
		if j < len(instrs) && instrs[j].Typ == AI && instrs[j].Driver == DriveInst {
			end = j + 1
		}
		if end-i >= 2 && instrs[i].Rd != fwdTmp {
			fuseChain(instrs[i:end])
		}
		i = end
	}
}

func fuseChain(chain []*Instruction) {
	head := chain[0]
	sink := head.Rd
	head.Rd = fwdTmp
	for k := 1; k < len(chain)-1; k++ {
		chain[k].Rs1 = fwdTmp
		chain[k].Rd = fwdTmp
	}
	tail := chain[len(chain)-1]
	tail.Rs1 = fwdTmp
	tail.Rd = sink
}
