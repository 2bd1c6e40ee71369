package hostrt

import (
	"fmt"
	"strings"

	"github.com/accelsim/tensoraccel/internal/accel"
	"github.com/accelsim/tensoraccel/internal/isa"
)

// controlFlow recognises one of the fixed control-flow mnemonics spec.md
// §4.8 tables and lowers it via internal/accel's factories. The bool return
// reports whether base named a control-flow mnemonic at all, so callers can
// fall through to the compute-kernel registry otherwise.
func controlFlow(m mnemonic) (*isa.Instruction, bool, error) {
	base := strings.ToUpper(m.base)
	switch base {
	case "MOV":
		rd, rs, err := two(m)
		return opt(accel.Mov(rd, rs)), true, err
	case "MOVI":
		rd, err := m.reg(0)
		return opt(accel.Movi(rd, m.immOrZero(1))), true, err
	case "MOVID":
		rd, err := m.reg(0)
		if err != nil {
			return nil, true, err
		}
		s, err := m.special(1)
		return opt(accel.Movid(rd, s)), true, err
	case "DMOVI":
		rd, rs, err := two(m)
		return opt(accel.Dmovi(rd, rs)), true, err
	case "DMOVO":
		rd, rs, err := two(m)
		return opt(accel.Dmovo(rd, rs)), true, err
	case "XMOVI":
		rd, rs, err := two(m)
		return opt(accel.Xmovi(rd, rs)), true, err
	case "XMOVO":
		rd, rs, err := two(m)
		return opt(accel.Xmovo(rd, rs)), true, err

	case "ADD", "SUB", "MUL", "SLT", "SGT", "OR", "AND", "XOR", "SRL", "SLL":
		rd, rs1, rs2, err := three(m)
		if err != nil {
			return nil, true, err
		}
		return opt(aluOp(base)(rd, rs1, rs2)), true, nil
	case "ADDI", "SUBI", "MULI", "SLTI", "SGTI":
		rd, rs1, err := two(m)
		if err != nil {
			return nil, true, err
		}
		return opt(aluImmOp(base)(rd, rs1, m.immOrZero(2))), true, nil

	case "BEQ", "BNE", "BLT", "BNL":
		rs1, rs2, err := two(m)
		if err != nil {
			return nil, true, err
		}
		target, err := m.label(2)
		return opt(branchOp(base)(rs1, rs2, target)), true, err
	case "BEQI", "BNEI", "BLTI", "BNLI":
		rs1, err := m.reg(0)
		if err != nil {
			return nil, true, err
		}
		target, err := m.label(2)
		return opt(branchImmOp(base)(rs1, m.immOrZero(1), target)), true, err

	case "JMP":
		rd, err := m.reg(0)
		if err != nil {
			return nil, true, err
		}
		target, err := m.label(1)
		return opt(accel.Jmp(rd, target)), true, err
	case "JMPR":
		rd, rs, err := two(m)
		return opt(accel.Jmpr(rd, rs)), true, err

	case "CALL":
		target, err := m.label(0)
		if err != nil {
			return nil, true, err
		}
		dev, err := m.label(1)
		if err != nil {
			return nil, true, err
		}
		pathID := int(m.immOrZero(2))
		s := int(m.immOrZero(3))
		n := int(m.immOrZero(4))
		return opt(accel.Call(target, dev, pathID, s, n)), true, nil
	case "RET":
		return opt(accel.Ret()), true, nil
	case "FENCE":
		return opt(accel.Fence(int(m.immOrZero(0)))), true, nil
	case "HALT":
		return opt(accel.Halt()), true, nil
	case "MEMSET":
		rd, rlen, rval, err := three(m)
		return opt(accel.MemSet(rd, rlen, rval)), true, err

	default:
		return nil, false, nil
	}
}

func opt(instr *isa.Instruction) *isa.Instruction { return instr }

func two(m mnemonic) (int, int, error) {
	a, err := m.reg(0)
	if err != nil {
		return 0, 0, err
	}
	b, err := m.reg(1)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func three(m mnemonic) (int, int, int, error) {
	a, b, err := two(m)
	if err != nil {
		return 0, 0, 0, err
	}
	c, err := m.reg(2)
	if err != nil {
		return 0, 0, 0, err
	}
	return a, b, c, nil
}

func aluOp(base string) func(rd, rs1, rs2 int) *isa.Instruction {
	switch base {
	case "ADD":
		return accel.Add
	case "SUB":
		return accel.Sub
	case "MUL":
		return accel.Mul
	case "SLT":
		return accel.Slt
	case "SGT":
		return accel.Sgt
	case "OR":
		return accel.Or
	case "AND":
		return accel.And
	case "XOR":
		return accel.Xor
	case "SRL":
		return accel.Srl
	case "SLL":
		return accel.Sll
	default:
		panic(fmt.Sprintf("hostrt: unreachable alu op %q", base))
	}
}

func aluImmOp(base string) func(rd, rs1 int, imm uint64) *isa.Instruction {
	switch base {
	case "ADDI":
		return accel.Addi
	case "SUBI":
		return accel.Subi
	case "MULI":
		return accel.Muli
	case "SLTI":
		return accel.Slti
	case "SGTI":
		return accel.Sgti
	default:
		panic(fmt.Sprintf("hostrt: unreachable alu-immediate op %q", base))
	}
}

func branchOp(base string) func(rs1, rs2 int, target string) *isa.Instruction {
	switch base {
	case "BEQ":
		return accel.Beq
	case "BNE":
		return accel.Bne
	case "BLT":
		return accel.Blt
	case "BNL":
		return accel.Bnl
	default:
		panic(fmt.Sprintf("hostrt: unreachable branch op %q", base))
	}
}

func branchImmOp(base string) func(rs1 int, imm uint64, target string) *isa.Instruction {
	switch base {
	case "BEQI":
		return accel.Beqi
	case "BNEI":
		return accel.Bnei
	case "BLTI":
		return accel.Blti
	case "BNLI":
		return accel.Bnli
	default:
		panic(fmt.Sprintf("hostrt: unreachable branch-immediate op %q", base))
	}
}
