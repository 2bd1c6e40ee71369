// Package script exposes internal/hostrt.Runtime to Lua scripts via
// gopher-lua, so host test programs can drive the accelerator without a
// recompile. No example in the retrieved corpus demonstrates gopher-lua, so
// the binding follows the library's own idiom (lua.LGFunction closures
// registered as globals, arguments read with the L.Check* family) rather
// than any teacher pattern.
package script

import (
	"encoding/hex"

	lua "github.com/yuin/gopher-lua"

	"github.com/accelsim/tensoraccel/internal/hostrt"
)

// Engine runs Lua scripts against one Runtime.
type Engine struct {
	rt *hostrt.Runtime
	L  *lua.LState
}

// New creates an Engine bound to rt and registers its host functions as
// Lua globals: alloc_buffer, free_buffer, copy_to_device, copy_to_host,
// push_kernel, synchronize, wait_irq.
func New(rt *hostrt.Runtime) *Engine {
	L := lua.NewState()
	e := &Engine{rt: rt, L: L}
	L.SetGlobal("alloc_buffer", L.NewFunction(e.allocBuffer))
	L.SetGlobal("free_buffer", L.NewFunction(e.freeBuffer))
	L.SetGlobal("copy_to_device", L.NewFunction(e.copyToDevice))
	L.SetGlobal("copy_to_host", L.NewFunction(e.copyToHost))
	L.SetGlobal("push_kernel", L.NewFunction(e.pushKernel))
	L.SetGlobal("synchronize", L.NewFunction(e.synchronize))
	L.SetGlobal("wait_irq", L.NewFunction(e.waitIRQ))
	return e
}

// Close releases the underlying Lua state.
func (e *Engine) Close() { e.L.Close() }

// Run executes src as a Lua chunk against this Engine's globals.
func (e *Engine) Run(src string) error {
	return e.L.DoString(src)
}

// alloc_buffer(nbytes) -> offset
func (e *Engine) allocBuffer(L *lua.LState) int {
	n := uint64(L.CheckInt64(1))
	off, err := e.rt.AllocBuffer(n)
	if err != nil {
		L.RaiseError("alloc_buffer: %v", err)
		return 0
	}
	L.Push(lua.LNumber(off))
	return 1
}

// free_buffer(offset)
func (e *Engine) freeBuffer(L *lua.LState) int {
	e.rt.FreeBuffer(uint64(L.CheckInt64(1)))
	return 0
}

// copy_to_device(offset, hexstring)
func (e *Engine) copyToDevice(L *lua.LState) int {
	off := uint64(L.CheckInt64(1))
	data, err := hex.DecodeString(L.CheckString(2))
	if err != nil {
		L.RaiseError("copy_to_device: %v", err)
		return 0
	}
	if err := e.rt.CopyToDevice(off, data); err != nil {
		L.RaiseError("copy_to_device: %v", err)
	}
	return 0
}

// copy_to_host(offset, nbytes) -> hexstring
func (e *Engine) copyToHost(L *lua.LState) int {
	off := uint64(L.CheckInt64(1))
	n := L.CheckInt64(2)
	buf := make([]byte, n)
	if err := e.rt.CopyToHost(buf, off); err != nil {
		L.RaiseError("copy_to_host: %v", err)
		return 0
	}
	L.Push(lua.LString(hex.EncodeToString(buf)))
	return 1
}

// push_kernel(line)
func (e *Engine) pushKernel(L *lua.LState) int {
	if err := e.rt.PushKernel(L.CheckString(1)); err != nil {
		L.RaiseError("push_kernel: %v", err)
	}
	return 0
}

// synchronize()
func (e *Engine) synchronize(L *lua.LState) int {
	if err := e.rt.Synchronize(); err != nil {
		L.RaiseError("synchronize: %v", err)
	}
	return 0
}

// wait_irq(irq, {arg1, arg2, ...})
func (e *Engine) waitIRQ(L *lua.LState) int {
	irq := int(L.CheckInt64(1))
	tbl := L.CheckTable(2)
	var args []uint64
	tbl.ForEach(func(_, v lua.LValue) {
		n, ok := v.(lua.LNumber)
		if !ok {
			L.RaiseError("wait_irq: argument table must hold only numbers")
			return
		}
		args = append(args, uint64(n))
	})
	if err := e.rt.WaitIRQ(irq, args); err != nil {
		L.RaiseError("wait_irq: %v", err)
	}
	return 0
}
