package hostrt

import (
	"bytes"
	"testing"

	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

func TestNewPrimesVersion(t *testing.T) {
	r := New()
	defer r.Close()

	if got := r.Accelerator().Special().GetNamed(regfile.VERSION); got != versionCode(Version) {
		t.Fatalf("VERSION = %#x, want %#x", got, versionCode(Version))
	}
}

func TestAllocCopyRoundTrip(t *testing.T) {
	r := New()
	defer r.Close()

	off, err := r.AllocBuffer(32)
	if err != nil {
		t.Fatalf("AllocBuffer: %v", err)
	}
	defer r.FreeBuffer(off)

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := r.CopyToDevice(off, want); err != nil {
		t.Fatalf("CopyToDevice: %v", err)
	}

	got := make([]byte, len(want))
	if err := r.CopyToHost(got, off); err != nil {
		t.Fatalf("CopyToHost: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("CopyToHost = %v, want %v", got, want)
	}
}

func TestCopyToDeviceOutOfRange(t *testing.T) {
	r := New()
	defer r.Close()

	base := r.Accelerator().DRAM().Base()
	if err := r.CopyToDevice(uint64(len(base))-1, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestPushKernelArithmeticSynchronize(t *testing.T) {
	r := New()
	defer r.Close()

	for _, line := range []string{
		"MOVI $1, #5",
		"MOVI $2, #7",
		"ADD $3, $1, $2",
	} {
		if err := r.PushKernel(line); err != nil {
			t.Fatalf("PushKernel(%q): %v", line, err)
		}
	}
	if err := r.Synchronize(); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	if got := r.Accelerator().General().Get(3); got != 12 {
		t.Fatalf("General(3) = %d, want 12", got)
	}
	if r.Status() != StatusDone {
		t.Fatalf("Status = %v, want Done", r.Status())
	}
	if r.Session() != 1 {
		t.Fatalf("Session = %d, want 1", r.Session())
	}
}

func TestPushKernelUnknownMnemonicErrors(t *testing.T) {
	r := New()
	defer r.Close()

	if err := r.PushKernel("Frobnicate $1"); err == nil {
		t.Fatal("expected error for unknown mnemonic")
	}
}

func TestPushKernelAddiSynchronize(t *testing.T) {
	r := New()
	defer r.Close()

	for _, line := range []string{
		"MOVI $1, #0",
	} {
		if err := r.PushKernel(line); err != nil {
			t.Fatalf("PushKernel(%q): %v", line, err)
		}
	}
	// push_kernel has no way to declare a label, so a branch loop is not
	// built here; internal/accel's TestRunBranchLoop covers that with a
	// hand-built Program. Here we only check that ADDI compiles through
	// push_kernel's control-flow path.
	if err := r.PushKernel("ADDI $1, $1, #9"); err != nil {
		t.Fatalf("PushKernel ADDI: %v", err)
	}
	if err := r.Synchronize(); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if got := r.Accelerator().General().Get(1); got != 9 {
		t.Fatalf("General(1) = %d, want 9", got)
	}
}

// push_kernel bodies run straight on the CU (internal/hostrt bypasses MPU
// Tag dispatch entirely, as DESIGN.md's internal/hostrt entry notes), so this only
// confirms Mload's now-Load Tag doesn't break the CU-bypass path; the
// actual MPU->LSU async dispatch is exercised by
// internal/accel's TestCallDispatchesLoadToLSU.
func TestPushKernelMloadRunsOnCU(t *testing.T) {
	r := New()
	defer r.Close()

	sp := r.Accelerator().Special()
	sp.SetNamed(regfile.X_SIZE, 2)
	sp.SetNamed(regfile.Y_SIZE, 1)
	sp.SetNamed(regfile.X_STRIDE, 2)
	sp.SetNamed(regfile.X_PAD_0, 0)
	sp.SetNamed(regfile.X_PAD_1, 0)
	sp.SetNamed(regfile.Y_PAD_0, 0)
	sp.SetNamed(regfile.Y_PAD_1, 0)

	dram := r.Accelerator().DRAM()
	dram.WriteElem(memory.F64, 0, 7)
	dram.WriteElem(memory.F64, 8, 9)

	for _, line := range []string{
		"MOVI $1, #0", // cache dst
		"MOVI $2, #0", // dram src
		"MOVI $3, #1", // block
		"Mload.F64 $1, $2, $3",
	} {
		if err := r.PushKernel(line); err != nil {
			t.Fatalf("PushKernel(%q): %v", line, err)
		}
	}
	if err := r.Synchronize(); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	cache := r.Accelerator().Cache()
	if got := real(cache.ReadElem(memory.F64, 0)); got != 7 {
		t.Fatalf("cache[0] = %v, want 7", got)
	}
	if got := real(cache.ReadElem(memory.F64, 8)); got != 9 {
		t.Fatalf("cache[1] = %v, want 9", got)
	}
}

func TestWaitIRQFFTThenIFFTRoundTrip(t *testing.T) {
	r := New()
	defer r.Close()

	const n = 4
	elem := memory.C32
	sz := uint64(elem.Size())

	src, err := r.AllocBuffer(n * sz)
	if err != nil {
		t.Fatalf("AllocBuffer src: %v", err)
	}
	freq, err := r.AllocBuffer(n * sz)
	if err != nil {
		t.Fatalf("AllocBuffer freq: %v", err)
	}
	back, err := r.AllocBuffer(n * sz)
	if err != nil {
		t.Fatalf("AllocBuffer back: %v", err)
	}

	dram := r.Accelerator().DRAM()
	input := []complex128{1, 2, 3, 4}
	for i, v := range input {
		dram.WriteElem(elem, src+uint64(i)*sz, v)
	}

	if err := r.WaitIRQ(1, []uint64{src, freq, n}); err != nil {
		t.Fatalf("WaitIRQ(FFT): %v", err)
	}
	if err := r.WaitIRQ(2, []uint64{freq, back, n}); err != nil {
		t.Fatalf("WaitIRQ(IFFT): %v", err)
	}

	for i, want := range input {
		got := dram.ReadElem(elem, back+uint64(i)*sz)
		if diff := sqMag(got - want); diff > 1e-6 {
			t.Fatalf("sample %d = %v, want %v (diff %v)", i, got, want, diff)
		}
	}
}

func sqMag(v complex128) float64 {
	re, im := real(v), imag(v)
	return re*re + im*im
}

func TestWaitIRQUnknownIRQ(t *testing.T) {
	r := New()
	defer r.Close()

	if err := r.WaitIRQ(99, nil); err == nil {
		t.Fatal("expected error for unknown IRQ")
	}
}

func TestWaitIRQWrongArgCount(t *testing.T) {
	r := New()
	defer r.Close()

	if err := r.WaitIRQ(1, []uint64{0}); err == nil {
		t.Fatal("expected error for wrong arg count")
	}
}
