package kernel

import (
	"testing"

	"github.com/accelsim/tensoraccel/internal/isa"
	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/path"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

type fakeMachine struct {
	pc      int
	general *regfile.General
	special *regfile.SpecialFile
	dram    *memory.DRAM
	cache   *memory.Cache
	paths   map[int]*path.Path
}

func newFakeMachine() *fakeMachine {
	return &fakeMachine{
		general: regfile.NewGeneral(),
		special: regfile.NewSpecialFile(),
		dram:    memory.NewDRAM(),
		cache:   memory.NewCache(),
		paths:   map[int]*path.Path{0: path.New()},
	}
}

func (m *fakeMachine) PC() int                 { return m.pc }
func (m *fakeMachine) SetPC(pc int)            { m.pc = pc }
func (m *fakeMachine) General() isa.RegFile    { return m.general }
func (m *fakeMachine) Special() isa.RegFile    { return m.special }
func (m *fakeMachine) Path(id int) isa.Waiter  { return m.paths[id] }
func (m *fakeMachine) DRAM() *memory.DRAM      { return m.dram }
func (m *fakeMachine) Cache() *memory.Cache    { return m.cache }

func TestVaddKernel(t *testing.T) {
	m := newFakeMachine()
	m.special.SetNamed(regfile.VLEN, 4)
	m.general.Set(1, 0)   // a
	m.general.Set(2, 100) // b
	m.general.Set(3, 200) // dst

	for i := 0; i < 4; i++ {
		m.dram.WriteElem(memory.F64, uint64(i)*8, complex(float64(i), 0))
		m.dram.WriteElem(memory.F64, 100+uint64(i)*8, complex(float64(i*10), 0))
	}

	fn, elem, ok := Lookup("Vadd.F64")
	if !ok {
		t.Fatal("Vadd.F64 not registered")
	}
	fn(m, 3, 1, 2)

	for i := 0; i < 4; i++ {
		got := m.dram.ReadElem(elem, 200+uint64(i)*8)
		want := complex(float64(i)+float64(i*10), 0)
		if got != want {
			t.Fatalf("Vadd[%d] = %v, want %v", i, got, want)
		}
	}
	if m.pc != 1 {
		t.Fatalf("pc = %d, want 1 (advanced)", m.pc)
	}
}

func TestVsumKernel(t *testing.T) {
	m := newFakeMachine()
	m.special.SetNamed(regfile.VLEN, 3)
	m.general.Set(1, 0)
	m.general.Set(2, 100)
	for i := 0; i < 3; i++ {
		m.dram.WriteElem(memory.F64, uint64(i)*8, complex(float64(i+1), 0))
	}
	fn, elem, _ := Lookup("Vsum.F64")
	fn(m, 2, 1, 0)
	got := m.dram.ReadElem(elem, 100)
	if got != complex(6, 0) {
		t.Fatalf("Vsum = %v, want 6", got)
	}
}

func TestGemmKernel(t *testing.T) {
	m := newFakeMachine()
	m.special.SetNamed(regfile.X_SIZE, 2)
	m.special.SetNamed(regfile.Y_SIZE, 2)
	m.special.SetNamed(regfile.Z_SIZE, 2)

	// A = [[1,2],[3,4]], B = identity -> C should equal A.
	a := []float64{1, 2, 3, 4}
	b := []float64{1, 0, 0, 1}
	for i, v := range a {
		m.dram.WriteElem(memory.F64, uint64(i)*8, complex(v, 0))
	}
	for i, v := range b {
		m.dram.WriteElem(memory.F64, 100+uint64(i)*8, complex(v, 0))
	}
	m.general.Set(1, 0)
	m.general.Set(2, 100)
	m.general.Set(3, 200)

	fn, elem, _ := Lookup("Gemm.F64")
	fn(m, 3, 1, 2)

	for i, want := range a {
		got := m.dram.ReadElem(elem, 200+uint64(i)*8)
		if real(got) != want {
			t.Fatalf("C[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestMloadBroadcastsBlockAndZeroPads(t *testing.T) {
	m := newFakeMachine()
	m.special.SetNamed(regfile.X_SIZE, 3)
	m.special.SetNamed(regfile.Y_SIZE, 2)
	m.special.SetNamed(regfile.X_STRIDE, 3)
	m.special.SetNamed(regfile.X_PAD_0, 1)
	m.special.SetNamed(regfile.X_PAD_1, 1)
	m.special.SetNamed(regfile.Y_PAD_0, 0)
	m.special.SetNamed(regfile.Y_PAD_1, 0)

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			m.dram.WriteElem(memory.F64, uint64(i*3+j)*8, complex(float64(10*i+j), 0))
		}
	}
	m.general.Set(1, 0) // dst cache offset (elements)
	m.general.Set(2, 0) // src dram offset
	m.general.Set(3, 16) // block

	fn, elem, ok := Lookup("Mload.F64")
	if !ok {
		t.Fatal("Mload.F64 not registered")
	}
	fn(m, 1, 2, 3)

	const block = 16
	for row := 0; row < 2; row++ {
		want := []float64{0, 10 * float64(row), 10*float64(row) + 1, 10*float64(row) + 2, 0}
		for col, wv := range want {
			for b := 0; b < block; b++ {
				off := uint64(row*5+col)*block*8 + uint64(b)*8
				got := real(m.cache.ReadElem(elem, off))
				if got != wv {
					t.Fatalf("row=%d col=%d b=%d = %v, want %v", row, col, b, got, wv)
				}
			}
		}
	}
	if m.pc != 1 {
		t.Fatalf("pc = %d, want 1 (advanced)", m.pc)
	}
}

func TestMstoreCollapsesBlockBackToOneElement(t *testing.T) {
	m := newFakeMachine()
	m.special.SetNamed(regfile.X_SIZE, 2)
	m.special.SetNamed(regfile.Y_SIZE, 1)
	m.special.SetNamed(regfile.X_STRIDE, 2)

	const block = 4
	for col := 0; col < 2; col++ {
		for b := 0; b < block; b++ {
			m.cache.WriteElem(memory.F64, uint64(col*block+b)*8, complex(float64(col+1), 0))
		}
	}
	m.general.Set(1, 0) // dst dram offset
	m.general.Set(2, 0) // src cache offset
	m.general.Set(3, block)

	fn, elem, ok := Lookup("Mstore.F64")
	if !ok {
		t.Fatal("Mstore.F64 not registered")
	}
	fn(m, 1, 2, 3)

	want := []float64{1, 2}
	for i, wv := range want {
		got := real(m.dram.ReadElem(elem, uint64(i)*8))
		if got != wv {
			t.Fatalf("dram[%d] = %v, want %v", i, got, wv)
		}
	}
}

func TestMmaReadsRegionRelativeOperands(t *testing.T) {
	m := newFakeMachine()
	m.special.SetNamed(regfile.MSIZE, 1)
	m.special.SetNamed(regfile.NSIZE, 2)

	m.cache.WriteElem(memory.F64, uint64(memory.AccumOffset), complex(1, 0))
	m.cache.WriteElem(memory.F64, uint64(memory.AccumOffset)+8, complex(2, 0))
	m.cache.WriteElem(memory.F64, uint64(memory.InputOffset), complex(3, 0))
	m.cache.WriteElem(memory.F64, uint64(memory.InputOffset)+8, complex(4, 0))
	m.cache.WriteElem(memory.F64, uint64(memory.ConstOffset), complex(5, 0))
	m.cache.WriteElem(memory.F64, uint64(memory.ConstOffset)+8, complex(6, 0))

	m.general.Set(1, 0) // rd: index 0 within AccumOffset
	m.general.Set(2, 0) // rs1: index 0 within InputOffset
	m.general.Set(3, 0) // rs2: index 0 within ConstOffset

	fn, elem, ok := Lookup("Mma.F64")
	if !ok {
		t.Fatal("Mma.F64 not registered")
	}
	fn(m, 1, 2, 3)

	got0 := real(m.cache.ReadElem(elem, uint64(memory.AccumOffset)))
	if got0 != 1+3*5 {
		t.Fatalf("acc[0] = %v, want %v", got0, 1+3*5)
	}
	got1 := real(m.cache.ReadElem(elem, uint64(memory.AccumOffset)+8))
	if got1 != 2+4*6 {
		t.Fatalf("acc[1] = %v, want %v (MSIZE x NSIZE = 1 x 2 covers both elements)", got1, 2+4*6)
	}
}

func TestTileGemmWeightIndexNotTransposed(t *testing.T) {
	m := newFakeMachine()
	m.special.SetNamed(regfile.RESET_ACC, 1)

	// One nonzero input element at row 0, k 0; weight at outCol 1, k 0 is
	// nonzero. The product must land in acc[outCol=1], not acc[outCol=0].
	m.cache.WriteElem(memory.F64, uint64(memory.InputOffset), complex(2, 0))
	m.cache.WriteElem(memory.F64, uint64(memory.ConstOffset)+uint64(1*memory.InputBlock+0)*8, complex(3, 0))

	fn, elem, ok := Lookup("TileGemm.F64")
	if !ok {
		t.Fatal("TileGemm.F64 not registered")
	}
	fn(m, 0, 0, 0)

	got := real(m.cache.ReadElem(elem, uint64(memory.AccumOffset)+uint64(1)*8))
	if got != 6 {
		t.Fatalf("acc[outCol=1] = %v, want 6", got)
	}
	got0 := real(m.cache.ReadElem(elem, uint64(memory.AccumOffset)))
	if got0 != 0 {
		t.Fatalf("acc[outCol=0] = %v, want 0 (weight belongs to outCol=1)", got0)
	}
}

func TestTransposeKernel(t *testing.T) {
	m := newFakeMachine()
	m.special.SetNamed(regfile.X_SIZE, 2)
	m.special.SetNamed(regfile.Y_SIZE, 3)
	// 2x3 matrix [[0,1,2],[3,4,5]]
	for i := 0; i < 6; i++ {
		m.dram.WriteElem(memory.F64, uint64(i)*8, complex(float64(i), 0))
	}
	m.general.Set(1, 0)
	m.general.Set(2, 100)
	fn, elem, _ := Lookup("Transpose.F64")
	fn(m, 2, 1, 0)

	// Transposed 3x2: [[0,3],[1,4],[2,5]]
	want := []float64{0, 3, 1, 4, 2, 5}
	for i, w := range want {
		got := m.dram.ReadElem(elem, 100+uint64(i)*8)
		if real(got) != w {
			t.Fatalf("T[%d] = %v, want %v", i, got, w)
		}
	}
}
