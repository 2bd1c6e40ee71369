package kernel

import (
	"github.com/accelsim/tensoraccel/internal/memory"
	"github.com/accelsim/tensoraccel/internal/regfile"
)

func loadGeometry(ctx Context) (x, y, stride, padX0, padX1, padY0, padY1 int) {
	return int(special(ctx, regfile.X_SIZE)), int(special(ctx, regfile.Y_SIZE)),
		int(special(ctx, regfile.X_STRIDE)),
		int(special(ctx, regfile.X_PAD_0)), int(special(ctx, regfile.X_PAD_1)),
		int(special(ctx, regfile.Y_PAD_0)), int(special(ctx, regfile.Y_PAD_1))
}

// Mload copies an X_SIZE x Y_SIZE tile from DRAM into the cache, applying
// per-side x/y padding (zero-filled) and a DRAM row stride. rd addresses the
// cache destination, rs1 the DRAM source, rs2 the per-cell block factor:
// each logical (row, col) cell expands into a block-element run in the
// cache, broadcasting the single source element (or zero, for a padding
// cell) across it.
//
// Mload/Mstore carry Tag Load/Store, so when Called onto the MPU they are
// handed to the LSU's async read/write queues (unit.MPU.dispatchLoop),
// which already advances the MPU's own pc before dispatch; the LSU then
// runs the kernel against a throwaway pc of its own (unit.lsuContext), so
// the self-advance below lands there instead of racing the MPU's live pc.
// Pushed directly onto a MAIN body via internal/hostrt (bypassing MPU/LSU
// dispatch entirely), the self-advance is what moves the CU's pc forward.
func Mload(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, rs2 int) {
		dram, cache := ctx.DRAM(), ctx.Cache()
		x, y, stride, padX0, padX1, padY0, padY1 := loadGeometry(ctx)
		sz := uint64(elem.Size())
		dstBase, srcBase := general(ctx, rd), general(ctx, rs1)
		block := int(general(ctx, rs2))
		if block <= 0 {
			block = 1
		}

		outW := padX0 + x + padX1
		outH := padY0 + y + padY1

		for row := 0; row < outH; row++ {
			srcRow := row - padY0
			for col := 0; col < outW; col++ {
				cellOff := dstBase + uint64(row*outW+col)*uint64(block)*sz
				srcCol := col - padX0
				if srcRow < 0 || srcRow >= y || srcCol < 0 || srcCol >= x {
					for b := 0; b < block; b++ {
						cache.WriteElem(elem, cellOff+uint64(b)*sz, 0)
					}
					continue
				}
				srcOff := srcBase + uint64(srcRow*stride+srcCol)*sz
				v := dram.ReadElem(elem, srcOff)
				for b := 0; b < block; b++ {
					cache.WriteElem(elem, cellOff+uint64(b)*sz, v)
				}
			}
		}
		advancePC(ctx)
	}
}

// Mstore copies an X_SIZE x Y_SIZE tile from the cache back into DRAM,
// applying a DRAM row stride. rd addresses the DRAM destination, rs1 the
// cache source, rs2 the per-cell block factor Mload expanded into: the
// first element of each block-element cache run is the cell's value, the
// rest are redundant broadcast copies that collapse back to one element.
func Mstore(elem memory.Elem) KernelFn {
	return func(ctx Context, rd, rs1, rs2 int) {
		dram, cache := ctx.DRAM(), ctx.Cache()
		x, y, stride, _, _, _, _ := loadGeometry(ctx)
		sz := uint64(elem.Size())
		dstBase, srcBase := general(ctx, rd), general(ctx, rs1)
		block := int(general(ctx, rs2))
		if block <= 0 {
			block = 1
		}

		for row := 0; row < y; row++ {
			for col := 0; col < x; col++ {
				srcOff := srcBase + uint64(row*x+col)*uint64(block)*sz
				dstOff := dstBase + uint64(row*stride+col)*sz
				dram.WriteElem(elem, dstOff, cache.ReadElem(elem, srcOff))
			}
		}
		advancePC(ctx)
	}
}
