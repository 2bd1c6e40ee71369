// Package memory implements the accelerator's two memories: a 256 MiB DRAM
// with a first-fit bump allocator for host-visible buffers, and a 4 MiB
// on-chip cache partitioned into Input/Const/Accum regions.
//
// This generalises the teacher's memory_bus.go SystemBus: a little-endian
// byte buffer behind a sync.RWMutex with typed read/write helpers, but
// addressed by element type and index instead of by MMIO register width.
package memory

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/cmplx"
)

// Elem identifies one of the five element types the kernels and memories
// operate on. Each has a fixed on-wire byte width.
type Elem int

const (
	I32 Elem = iota
	F32
	F64
	C32
	C64
)

// Size returns the number of bytes one element of this type occupies.
func (e Elem) Size() int {
	switch e {
	case I32, F32:
		return 4
	case F64:
		return 8
	case C32:
		return 8
	case C64:
		return 16
	default:
		panic(fmt.Sprintf("memory: unknown element type %d", int(e)))
	}
}

func (e Elem) String() string {
	switch e {
	case I32:
		return "I32"
	case F32:
		return "F32"
	case F64:
		return "F64"
	case C32:
		return "C32"
	case C64:
		return "C64"
	default:
		return fmt.Sprintf("Elem(%d)", int(e))
	}
}

// decodeComplex reinterprets b (exactly e.Size() bytes) as a value of type e
// and widens it to complex128, the common currency for reinterpret-and-
// convert copies between mismatched element types.
func decodeComplex(e Elem, b []byte) complex128 {
	switch e {
	case I32:
		return complex(float64(int32(binary.LittleEndian.Uint32(b))), 0)
	case F32:
		return complex(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), 0)
	case F64:
		return complex(math.Float64frombits(binary.LittleEndian.Uint64(b)), 0)
	case C32:
		re := math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))
		return complex(float64(re), float64(im))
	case C64:
		re := math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(b[8:16]))
		return complex(re, im)
	default:
		panic(fmt.Sprintf("memory: unknown element type %d", int(e)))
	}
}

// encodeComplex narrows v to element type e and writes it into b (exactly
// e.Size() bytes), truncating the imaginary part for real-valued types.
func encodeComplex(e Elem, b []byte, v complex128) {
	switch e {
	case I32:
		binary.LittleEndian.PutUint32(b, uint32(int32(real(v))))
	case F32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(real(v))))
	case F64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(real(v)))
	case C32:
		binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(float32(real(v))))
		binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(float32(imag(v))))
	case C64:
		binary.LittleEndian.PutUint64(b[0:8], math.Float64bits(real(v)))
		binary.LittleEndian.PutUint64(b[8:16], math.Float64bits(imag(v)))
	default:
		panic(fmt.Sprintf("memory: unknown element type %d", int(e)))
	}
}

// abs returns the magnitude of v regardless of source element type. No
// kernel calls it: Mclip clips on the real part and Vabs uses cmplx.Abs.
func abs(v complex128) float64 {
	if imag(v) == 0 {
		return math.Abs(real(v))
	}
	return cmplx.Abs(v)
}
