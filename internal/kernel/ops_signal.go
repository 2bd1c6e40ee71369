package kernel

import (
	"math"

	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

func ulenVlen(ctx Context) (u, v int) {
	return int(special(ctx, regfile.ULEN)), int(special(ctx, regfile.VLEN))
}

// Conv (F32) / Fir (I32) both compute a linear convolution of length
// ULEN x VLEN producing ULEN+VLEN-1 outputs; they differ only in element
// type, so one shape function serves both.
func Conv(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, rs2 int) {
		d := ctx.DRAM()
		u, v := ulenVlen(ctx)
		sz := uint64(elem.Size())
		dst, a, b := general(ctx, rd), general(ctx, rs1), general(ctx, rs2)
		out := u + v - 1
		for n := 0; n < out; n++ {
			var acc complex128
			lo := 0
			if n-v+1 > 0 {
				lo = n - v + 1
			}
			hi := u - 1
			if n < hi {
				hi = n
			}
			for k := lo; k <= hi; k++ {
				j := n - k
				if j < 0 || j >= v {
					continue
				}
				acc += d.ReadElem(elem, a+uint64(k)*sz) * d.ReadElem(elem, b+uint64(j)*sz)
			}
			d.WriteElem(elem, dst+uint64(n)*sz, acc)
		}
		advancePC(ctx)
	}
}

// Fft computes the DFT of length VLEN: X[k] = sum_j x[j]*exp(-2*pi*i*k*j/N).
func Fft(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		d := ctx.DRAM()
		n := vlen(ctx)
		sz := uint64(elem.Size())
		dst, src := general(ctx, rd), general(ctx, rs1)
		for k := 0; k < n; k++ {
			var acc complex128
			for j := 0; j < n; j++ {
				angle := -2 * math.Pi * float64(k) * float64(j) / float64(n)
				twiddle := complex(math.Cos(angle), math.Sin(angle))
				acc += d.ReadElem(elem, src+uint64(j)*sz) * twiddle
			}
			d.WriteElem(elem, dst+uint64(k)*sz, acc)
		}
		advancePC(ctx)
	}
}

// Ifft computes the inverse DFT with 1/N normalization.
func Ifft(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		d := ctx.DRAM()
		n := vlen(ctx)
		sz := uint64(elem.Size())
		dst, src := general(ctx, rd), general(ctx, rs1)
		for k := 0; k < n; k++ {
			var acc complex128
			for j := 0; j < n; j++ {
				angle := 2 * math.Pi * float64(k) * float64(j) / float64(n)
				twiddle := complex(math.Cos(angle), math.Sin(angle))
				acc += d.ReadElem(elem, src+uint64(j)*sz) * twiddle
			}
			d.WriteElem(elem, dst+uint64(k)*sz, acc/complex(float64(n), 0))
		}
		advancePC(ctx)
	}
}

// Ddc: out[i] = in[i] * exp(-2*pi*i*i*fc*Ts) over X_SIZE samples, with fc
// and Ts read as integer code points from ULEN/VLEN (preserved verbatim
// from the source rather than widened to real-valued rates).
func Ddc(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		d := ctx.DRAM()
		x, _, _ := sizes(ctx)
		fc, ts := ulenVlen(ctx)
		sz := uint64(elem.Size())
		dst, src := general(ctx, rd), general(ctx, rs1)
		for i := 0; i < x; i++ {
			angle := -2 * math.Pi * float64(i) * float64(fc) * float64(ts)
			twiddle := complex(math.Cos(angle), math.Sin(angle))
			v := d.ReadElem(elem, src+uint64(i)*sz)
			d.WriteElem(elem, dst+uint64(i)*sz, v*twiddle)
		}
		advancePC(ctx)
	}
}

// Extr: decimation, picking every (X_SIZE+1)-th sample from an input of
// length ULEN.
func Extr(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		d := ctx.DRAM()
		u, _ := ulenVlen(ctx)
		x, _, _ := sizes(ctx)
		step := x + 1
		sz := uint64(elem.Size())
		dst, src := general(ctx, rd), general(ctx, rs1)
		out := 0
		for i := 0; i < u; i += step {
			v := d.ReadElem(elem, src+uint64(i)*sz)
			d.WriteElem(elem, dst+uint64(out)*sz, v)
			out++
		}
		advancePC(ctx)
	}
}
