// Package accel implements the Accelerator orchestrator: it owns the
// register files, memories, and the three execution units for their full
// lifetime, and provides the control-flow instruction factories (Mov, the
// 64-bit ALU family, branches, Call/Ret/Fence/Jmp/Halt/MemSet) that the
// generic isa/unit/kernel packages deliberately don't know about.
//
// Grounded on cpu_ie64.go's big opcode-dispatch switch: one function per
// mnemonic, each a closure over its own operand registers that mutates the
// owning unit's state directly, generalised here from a single CPU struct
// to the three-unit Machine cluster in internal/unit.
package accel

import (
	"runtime"

	"github.com/accelsim/tensoraccel/internal/isa"
	"github.com/accelsim/tensoraccel/internal/regfile"
	"github.com/accelsim/tensoraccel/internal/unit"
)

func asUnitMachine(m isa.Machine) *unit.Machine { return m.(*unit.Machine) }

func advance(m isa.Machine) { m.SetPC(m.PC() + 1) }

// Mov copies one general register into another.
func Mov(rd, rs int) *isa.Instruction {
	return isa.NewBasic("Mov", rd, rs, 0, func(m isa.Machine) {
		m.General().Set(rd, m.General().Get(rs))
		advance(m)
	})
}

// Movi loads an immediate into a general register.
func Movi(rd int, imm uint64) *isa.Instruction {
	return isa.NewBasicImm("Movi", rd, 0, imm, func(m isa.Machine) {
		m.General().Set(rd, imm)
		advance(m)
	})
}

// Movid copies a special register's value into a general register.
func Movid(rd int, special regfile.Special) *isa.Instruction {
	return isa.NewBasic("Movid", rd, int(special), 0, func(m isa.Machine) {
		m.General().Set(rd, m.Special().Get(int(special)))
		advance(m)
	})
}

// Dmovi loads a 64-bit word from DRAM at the byte offset held in rs into rd.
func Dmovi(rd, rs int) *isa.Instruction {
	return isa.NewBasic("Dmovi", rd, rs, 0, func(m isa.Machine) {
		um := asUnitMachine(m)
		um.General().Set(rd, um.DRAM().ReadU64(um.General().Get(rs)))
		advance(m)
	})
}

// Dmovo stores rs's value into DRAM at the byte offset held in rd.
func Dmovo(rd, rs int) *isa.Instruction {
	return isa.NewBasic("Dmovo", rd, rs, 0, func(m isa.Machine) {
		um := asUnitMachine(m)
		um.DRAM().WriteU64(um.General().Get(rd), um.General().Get(rs))
		advance(m)
	})
}

// Xmovi loads a 64-bit word from the on-chip cache at the byte offset held
// in rs into rd.
func Xmovi(rd, rs int) *isa.Instruction {
	return isa.NewBasic("Xmovi", rd, rs, 0, func(m isa.Machine) {
		um := asUnitMachine(m)
		um.General().Set(rd, um.Cache().ReadU64(um.General().Get(rs)))
		advance(m)
	})
}

// Xmovo stores rs's value into the on-chip cache at the byte offset held
// in rd.
func Xmovo(rd, rs int) *isa.Instruction {
	return isa.NewBasic("Xmovo", rd, rs, 0, func(m isa.Machine) {
		um := asUnitMachine(m)
		um.Cache().WriteU64(um.General().Get(rd), um.General().Get(rs))
		advance(m)
	})
}

func alu(name string, rd, rs1, rs2 int, op func(a, b uint64) uint64) *isa.Instruction {
	return isa.NewBasic(name, rd, rs1, rs2, func(m isa.Machine) {
		m.General().Set(rd, op(m.General().Get(rs1), m.General().Get(rs2)))
		advance(m)
	})
}

func aluImm(name string, rd, rs1 int, imm uint64, op func(a, b uint64) uint64) *isa.Instruction {
	return isa.NewBasicImm(name, rd, rs1, imm, func(m isa.Machine) {
		m.General().Set(rd, op(m.General().Get(rs1), imm))
		advance(m)
	})
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// Add/Sub/Mul/Slt/Sgt/Or/And/Xor/Srl/Sll implement the 64-bit integer ALU
// family. Slt/Sgt are min/max despite their name (spec.md §4.8); Srl
// shifts left and Sll shifts right, preserved verbatim from the source.
func Add(rd, rs1, rs2 int) *isa.Instruction { return alu("Add", rd, rs1, rs2, func(a, b uint64) uint64 { return a + b }) }
func Sub(rd, rs1, rs2 int) *isa.Instruction { return alu("Sub", rd, rs1, rs2, func(a, b uint64) uint64 { return a - b }) }
func Mul(rd, rs1, rs2 int) *isa.Instruction { return alu("Mul", rd, rs1, rs2, func(a, b uint64) uint64 { return a * b }) }
func Slt(rd, rs1, rs2 int) *isa.Instruction { return alu("Slt", rd, rs1, rs2, minU64) }
func Sgt(rd, rs1, rs2 int) *isa.Instruction { return alu("Sgt", rd, rs1, rs2, maxU64) }
func Or(rd, rs1, rs2 int) *isa.Instruction  { return alu("Or", rd, rs1, rs2, func(a, b uint64) uint64 { return a | b }) }
func And(rd, rs1, rs2 int) *isa.Instruction { return alu("And", rd, rs1, rs2, func(a, b uint64) uint64 { return a & b }) }
func Xor(rd, rs1, rs2 int) *isa.Instruction { return alu("Xor", rd, rs1, rs2, func(a, b uint64) uint64 { return a ^ b }) }
func Srl(rd, rs1, rs2 int) *isa.Instruction {
	return alu("Srl", rd, rs1, rs2, func(a, b uint64) uint64 { return a << b })
}
func Sll(rd, rs1, rs2 int) *isa.Instruction {
	return alu("Sll", rd, rs1, rs2, func(a, b uint64) uint64 { return a >> b })
}

func Addi(rd, rs1 int, imm uint64) *isa.Instruction { return aluImm("Addi", rd, rs1, imm, func(a, b uint64) uint64 { return a + b }) }
func Subi(rd, rs1 int, imm uint64) *isa.Instruction { return aluImm("Subi", rd, rs1, imm, func(a, b uint64) uint64 { return a - b }) }
func Muli(rd, rs1 int, imm uint64) *isa.Instruction { return aluImm("Muli", rd, rs1, imm, func(a, b uint64) uint64 { return a * b }) }
func Slti(rd, rs1 int, imm uint64) *isa.Instruction { return aluImm("Slti", rd, rs1, imm, minU64) }
func Sgti(rd, rs1 int, imm uint64) *isa.Instruction { return aluImm("Sgti", rd, rs1, imm, maxU64) }

func branch(name string, rs1, rs2 int, target string, cmp func(a, b int32) bool) *isa.Instruction {
	return isa.NewBasic(name, rs1, rs2, 0, func(m isa.Machine) {
		um := asUnitMachine(m)
		if cmp(int32(m.General().Get(rs1)), int32(m.General().Get(rs2))) {
			pc, _ := um.Program().GetPC(target)
			m.SetPC(pc)
			return
		}
		advance(m)
	})
}

func branchImm(name string, rs1 int, imm uint64, target string, cmp func(a, b int32) bool) *isa.Instruction {
	return isa.NewBasicImm(name, rs1, 0, imm, func(m isa.Machine) {
		um := asUnitMachine(m)
		if cmp(int32(m.General().Get(rs1)), int32(imm)) {
			pc, _ := um.Program().GetPC(target)
			m.SetPC(pc)
			return
		}
		advance(m)
	})
}

// Beq/Bne/Blt/Bnl are signed 32-bit compares that jump to target on match,
// falling through otherwise. Bnl is "branch if not less" (>=).
func Beq(rs1, rs2 int, target string) *isa.Instruction {
	return branch("Beq", rs1, rs2, target, func(a, b int32) bool { return a == b })
}
func Bne(rs1, rs2 int, target string) *isa.Instruction {
	return branch("Bne", rs1, rs2, target, func(a, b int32) bool { return a != b })
}
func Blt(rs1, rs2 int, target string) *isa.Instruction {
	return branch("Blt", rs1, rs2, target, func(a, b int32) bool { return a < b })
}
func Bnl(rs1, rs2 int, target string) *isa.Instruction {
	return branch("Bnl", rs1, rs2, target, func(a, b int32) bool { return a >= b })
}

func Beqi(rs1 int, imm uint64, target string) *isa.Instruction {
	return branchImm("Beqi", rs1, imm, target, func(a, b int32) bool { return a == b })
}
func Bnei(rs1 int, imm uint64, target string) *isa.Instruction {
	return branchImm("Bnei", rs1, imm, target, func(a, b int32) bool { return a != b })
}
func Blti(rs1 int, imm uint64, target string) *isa.Instruction {
	return branchImm("Blti", rs1, imm, target, func(a, b int32) bool { return a < b })
}
func Bnli(rs1 int, imm uint64, target string) *isa.Instruction {
	return branchImm("Bnli", rs1, imm, target, func(a, b int32) bool { return a >= b })
}

// Jmp is an unconditional jump to target, recording the fall-through pc
// into rd as a link register.
func Jmp(rd int, target string) *isa.Instruction {
	return isa.NewBasic("Jmp", rd, 0, 0, func(m isa.Machine) {
		um := asUnitMachine(m)
		m.General().Set(rd, uint64(m.PC()+1))
		pc, _ := um.Program().GetPC(target)
		m.SetPC(pc)
	})
}

// Jmpr is an unconditional jump to the address held in rs, recording the
// fall-through pc into rd.
func Jmpr(rd, rs int) *isa.Instruction {
	return isa.NewBasic("Jmpr", rd, rs, 0, func(m isa.Machine) {
		fallThrough := m.PC() + 1
		target := int(m.General().Get(rs))
		m.General().Set(rd, uint64(fallThrough))
		m.SetPC(target)
	})
}

// Call copies n general registers starting at s down into 0..n, then
// dispatches to target on dev ("MPU" or "CU") per spec.md §4.8.
func Call(target, dev string, pathID, s, n int) *isa.Instruction {
	return isa.NewAI("Call", isa.Call, 0, s, n, pathID, isa.DriveNone, isa.DriveNone, func(m isa.Machine) {
		um := asUnitMachine(m)
		g := um.General()
		for i := 0; i < n; i++ {
			g.Set(i, g.Get(s+i))
		}
		prog := um.Program()
		targetPC, _ := prog.GetPC(target)
		switch dev {
		case "MPU":
			um.MPU.Wait()
			um.MPU.Run(prog, targetPC)
			advance(m)
		case "CU":
			um.Special().Set(int(regfile.RET), uint64(um.PC()+1))
			m.SetPC(targetPC)
		}
	})
}

// Ret implements spec.md §4.8's dual contract: on the CU it resumes at
// RET (waiting for the MPU and LSU to drain if RET is the sentinel
// top-level return), on the MPU it exits the current function body.
func Ret() *isa.Instruction {
	return isa.NewAI("Ret", isa.Ret, 0, 0, 0, 0, isa.DriveNone, isa.DriveNone, func(m isa.Machine) {
		um := asUnitMachine(m)
		if um == um.CU.Machine() {
			ret := int(um.Special().Get(int(regfile.RET)))
			um.SetPC(ret)
			if ret == um.ProgramSize() {
				um.MPU.Wait()
				for um.LSU.Running() {
					runtime.Gosched()
				}
				return
			}
			um.Special().Set(int(regfile.RET), uint64(um.ProgramSize()))
			return
		}
		um.SetPC(um.ProgramSize())
	})
}

// Fence blocks the current unit until the named path is empty. The MPU's
// dispatch loop already waits before invoking a Fence-tagged kernel; the
// closure waits as well so a Fence run by the CU also blocks, then
// advances pc.
func Fence(pathID int) *isa.Instruction {
	return isa.NewAI("Fence", isa.Fence, 0, 0, 0, pathID, isa.DriveNone, isa.DriveNone, func(m isa.Machine) {
		m.Path(pathID).Wait()
		advance(m)
	})
}

// Halt terminates the owning unit's dispatch loop with pc at the sentinel
// program-size value. Reserved: spec.md notes no current factory emits it.
func Halt() *isa.Instruction {
	return isa.NewBasic("Halt", 0, 0, 0, func(m isa.Machine) {
		um := asUnitMachine(m)
		m.SetPC(um.ProgramSize())
	})
}

// MemSet fills n 64-bit words at the byte offset held in rd with the
// value held in rval, where n is read from rlen.
func MemSet(rd, rlen, rval int) *isa.Instruction {
	return isa.NewBasic("MemSet", rd, rlen, rval, func(m isa.Machine) {
		um := asUnitMachine(m)
		dram := um.DRAM()
		dst := um.General().Get(rd)
		n := um.General().Get(rlen)
		val := um.General().Get(rval)
		for i := uint64(0); i < n; i++ {
			dram.WriteU64(dst+i*8, val)
		}
		advance(m)
	})
}
