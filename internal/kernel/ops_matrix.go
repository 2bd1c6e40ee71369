package kernel

import (
	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

func sizes(ctx Context) (x, y, z int) {
	return int(special(ctx, regfile.X_SIZE)), int(special(ctx, regfile.Y_SIZE)), int(special(ctx, regfile.Z_SIZE))
}

// Transpose swaps the two axes of an X_SIZE x Y_SIZE DRAM matrix.
func Transpose(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		d := ctx.DRAM()
		x, y, _ := sizes(ctx)
		sz := uint64(elem.Size())
		dst, src := general(ctx, rd), general(ctx, rs1)
		for i := 0; i < x; i++ {
			for j := 0; j < y; j++ {
				v := d.ReadElem(elem, src+uint64(i*y+j)*sz)
				d.WriteElem(elem, dst+uint64(j*x+i)*sz, v)
			}
		}
		advancePC(ctx)
	}
}

// Permute reorders a tensor of up to three axes (NDIM, X/Y/Z_SIZE,
// X/Y/Z_AXIS) by computing each source axis's destination stride as the
// product of sizes of every destination axis ranked above it, per
// spec.md's axis-rank rule.
func Permute(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		d := ctx.DRAM()
		ndim := int(special(ctx, regfile.NDIM))
		sizesArr := [3]int{int(special(ctx, regfile.X_SIZE)), int(special(ctx, regfile.Y_SIZE)), int(special(ctx, regfile.Z_SIZE))}
		axes := [3]int{int(special(ctx, regfile.X_AXIS)), int(special(ctx, regfile.Y_AXIS)), int(special(ctx, regfile.Z_AXIS))}

		strides := make([]int, ndim)
		for a := 0; a < ndim; a++ {
			stride := 1
			for b := 0; b < ndim; b++ {
				if axes[b] > axes[a] {
					stride *= sizesArr[b]
				}
			}
			strides[a] = stride
		}

		total := 1
		for a := 0; a < ndim; a++ {
			total *= sizesArr[a]
		}

		sz := uint64(elem.Size())
		dst, src := general(ctx, rd), general(ctx, rs1)
		idx := make([]int, ndim)
		for lin := 0; lin < total; lin++ {
			rem := lin
			for a := ndim - 1; a >= 0; a-- {
				idx[a] = rem % sizesArr[a]
				rem /= sizesArr[a]
			}
			dstOff := 0
			for a := 0; a < ndim; a++ {
				dstOff += idx[a] * strides[a]
			}
			v := d.ReadElem(elem, src+uint64(lin)*sz)
			d.WriteElem(elem, dst+uint64(dstOff)*sz, v)
		}
		advancePC(ctx)
	}
}

// Gemm computes C <- A*B over DRAM, with A (X_SIZE x Y_SIZE), B (Y_SIZE x
// Z_SIZE), C (X_SIZE x Z_SIZE). C is zeroed before accumulation.
func Gemm(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, rs2 int) {
		d := ctx.DRAM()
		x, y, z := sizes(ctx)
		sz := uint64(elem.Size())
		c, a, b := general(ctx, rd), general(ctx, rs1), general(ctx, rs2)
		for i := 0; i < x; i++ {
			for k := 0; k < z; k++ {
				var acc complex128
				for j := 0; j < y; j++ {
					av := d.ReadElem(elem, a+uint64(i*y+j)*sz)
					bv := d.ReadElem(elem, b+uint64(j*z+k)*sz)
					acc += av * bv
				}
				d.WriteElem(elem, c+uint64(i*z+k)*sz, acc)
			}
		}
		advancePC(ctx)
	}
}

// TileGemm operates on cache-resident Batch x BlockIn, BlockIn x BlockOut,
// Batch x BlockOut tiles (the Input/Const/Accum regions). RESET_ACC zeroes
// the accumulator tile before accumulating.
func TileGemm(elem memory.Elem) KernelFn {
	return func(ctx Context, _, _, _ int) {
		c := ctx.Cache()
		sz := uint64(elem.Size())

		if special(ctx, regfile.RESET_ACC) != 0 {
			for i := 0; i < memory.Batch*memory.AccumBlock; i++ {
				c.WriteElem(elem, uint64(memory.AccumOffset)+uint64(i)*sz, 0)
			}
		}

		for row := 0; row < memory.Batch; row++ {
			for outCol := 0; outCol < memory.AccumBlock; outCol++ {
				accOff := uint64(memory.AccumOffset) + uint64(row*memory.AccumBlock+outCol)*sz
				acc := c.ReadElem(elem, accOff)
				for k := 0; k < memory.InputBlock; k++ {
					inOff := uint64(memory.InputOffset) + uint64(row*memory.InputBlock+k)*sz
					wOff := uint64(memory.ConstOffset) + uint64(outCol*memory.InputBlock+k)*sz
					acc += c.ReadElem(elem, inOff) * c.ReadElem(elem, wOff)
				}
				c.WriteElem(elem, accOff, acc)
			}
		}
		advancePC(ctx)
	}
}

// matDim is the shared MSIZE x NSIZE cache-resident matrix family's extent.
func matDim(ctx Context) (m, n int) {
	return int(special(ctx, regfile.MSIZE)), int(special(ctx, regfile.NSIZE))
}

// Mma: cache-resident multiply-add, C <- C + A*B over an MSIZE x NSIZE tile.
// Register operands are element indices *within* their region, not raw
// cache byte offsets: rd/acc is relative to AccumOffset, rs1/inp to
// InputOffset, rs2/wgt to ConstOffset, mirroring the three-region cache
// partitioning the rest of the matrix family (TileGemm) already uses.
func Mma(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, rs2 int) {
		c := ctx.Cache()
		m, n := matDim(ctx)
		sz := uint64(elem.Size())
		dst := uint64(memory.AccumOffset) + general(ctx, rd)*sz
		a := uint64(memory.InputOffset) + general(ctx, rs1)*sz
		b := uint64(memory.ConstOffset) + general(ctx, rs2)*sz
		for i := 0; i < m*n; i++ {
			off := uint64(i) * sz
			cur := c.ReadElem(elem, dst+off)
			av := c.ReadElem(elem, a+off)
			bv := c.ReadElem(elem, b+off)
			c.WriteElem(elem, dst+off, cur+av*bv)
		}
		advancePC(ctx)
	}
}

// Mmp: multiply-with-positional-weight; rs2 holds a per-position scalar
// weight base in the Const region, applied as C <- C + A*weight[i].
func Mmp(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, rs2 int) {
		c := ctx.Cache()
		m, n := matDim(ctx)
		sz := uint64(elem.Size())
		dst := uint64(memory.AccumOffset) + general(ctx, rd)*sz
		a := uint64(memory.InputOffset) + general(ctx, rs1)*sz
		w := uint64(memory.ConstOffset) + general(ctx, rs2)*sz
		for i := 0; i < m*n; i++ {
			off := uint64(i) * sz
			cur := c.ReadElem(elem, dst+off)
			av := c.ReadElem(elem, a+off)
			wv := c.ReadElem(elem, w+off)
			c.WriteElem(elem, dst+off, cur+av*wv)
		}
		advancePC(ctx)
	}
}

// Smm: scalar-multiply-accumulate; rs1 holds the scalar operand value
// directly (not a pointer), matching the control-flow immediate idiom.
// rs2/b is an Input-region index, same as Mma/Mmp's activation operand.
func Smm(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, rs2 int) {
		c := ctx.Cache()
		m, n := matDim(ctx)
		sz := uint64(elem.Size())
		dst := uint64(memory.AccumOffset) + general(ctx, rd)*sz
		b := uint64(memory.InputOffset) + general(ctx, rs2)*sz
		scalar := c.ReadElem(elem, general(ctx, rs1))
		for i := 0; i < m*n; i++ {
			off := uint64(i) * sz
			cur := c.ReadElem(elem, dst+off)
			bv := c.ReadElem(elem, b+off)
			c.WriteElem(elem, dst+off, cur+scalar*bv)
		}
		advancePC(ctx)
	}
}

// Mclip: elementwise clip to [lower, upper], the 16-bit bounds packed into
// the low and high halves of rs1's register value (rs1 is dual-purpose: a
// packed immediate here, a cache pointer in Mma/Mmp). rd/dst is an
// Accum-region index, same as Mma/Mmp/Smm's accumulator operand.
func Mclip(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, _ int) {
		c := ctx.Cache()
		m, n := matDim(ctx)
		sz := uint64(elem.Size())
		dst := uint64(memory.AccumOffset) + general(ctx, rd)*sz
		packed := general(ctx, rs1)
		lower := float64(int16(packed & 0xFFFF))
		upper := float64(int16((packed >> 16) & 0xFFFF))
		for i := 0; i < m*n; i++ {
			off := uint64(i) * sz
			v := real(c.ReadElem(elem, dst+off))
			if v < lower {
				v = lower
			} else if v > upper {
				v = upper
			}
			c.WriteElem(elem, dst+off, complex(v, 0))
		}
		advancePC(ctx)
	}
}
