package memory

import (
	"fmt"
	"sort"
	"sync"
)

// DRAMSize is the fixed size of the device DRAM in bytes (2^28 = 256 MiB).
const DRAMSize = 1 << 28

// OutOfDeviceMemory is returned when the DRAM allocator cannot find room for
// a requested allocation. It is a ResourceError, not a programmer error: the
// caller did nothing wrong, the device is simply full.
type OutOfDeviceMemory struct {
	Requested uint64
}

func (e *OutOfDeviceMemory) Error() string {
	return fmt.Sprintf("memory: out of device memory requesting %d bytes", e.Requested)
}

// DRAM is the accelerator's 256 MiB byte-addressable device memory. Buffers
// are placed by a first-fit bump allocator that preserves the source
// simulator's slightly quirky placement policy (see Alloc).
type DRAM struct {
	mu      sync.RWMutex
	buf     []byte
	records map[uint64]uint64 // offset -> size, for every live allocation
}

// NewDRAM allocates a zeroed DRAM instance.
func NewDRAM() *DRAM {
	return &DRAM{
		buf:     make([]byte, DRAMSize),
		records: make(map[uint64]uint64),
	}
}

// Alloc reserves nbytes contiguous bytes and returns their starting offset.
//
// Placement is first-fit by walking existing records in offset order and
// taking the first gap wide enough to hold nbytes. If no internal gap fits,
// the allocator appends after the last record if there's room; failing
// that, it places the new record at offset 0 if nbytes is smaller than the
// offset of the first existing record (leaving a gap at the end that a
// later allocation may fill). This mirrors the source simulator's policy;
// it is not a "best" placement strategy and is not meant to be one.
func (d *DRAM) Alloc(nbytes uint64) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if nbytes == 0 || nbytes > DRAMSize {
		return 0, &OutOfDeviceMemory{Requested: nbytes}
	}

	if len(d.records) == 0 {
		d.records[0] = nbytes
		return 0, nil
	}

	offsets := d.sortedOffsetsLocked()

	for i := 0; i < len(offsets)-1; i++ {
		end := offsets[i] + d.records[offsets[i]]
		gap := offsets[i+1] - end
		if gap >= nbytes {
			d.records[end] = nbytes
			return end, nil
		}
	}

	last := offsets[len(offsets)-1]
	tail := last + d.records[last]
	if tail+nbytes <= DRAMSize {
		d.records[tail] = nbytes
		return tail, nil
	}

	first := offsets[0]
	if nbytes <= first {
		d.records[0] = nbytes
		return 0, nil
	}

	return DRAMSize, &OutOfDeviceMemory{Requested: nbytes}
}

// Free releases a previously allocated offset. Freeing an offset that was
// never allocated (or already freed) is a no-op, matching the permissive
// bookkeeping of the source allocator.
func (d *DRAM) Free(offset uint64) {
	d.mu.Lock()
	delete(d.records, offset)
	d.mu.Unlock()
}

func (d *DRAM) sortedOffsetsLocked() []uint64 {
	offsets := make([]uint64, 0, len(d.records))
	for off := range d.records {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets
}

// Base returns the raw backing slice, for code that needs direct
// byte-level access (e.g. the host runtime's CopyToDevice/CopyToHost).
func (d *DRAM) Base() []byte {
	return d.buf
}

// ReadU64 reads a raw little-endian 64-bit word at byte offset off,
// independent of any typed element codec. Used by control-flow kernels
// that treat DRAM as a flat word array (MemSet, Dmovi/Dmovo).
func (d *DRAM) ReadU64(off uint64) uint64 {
	if off+8 > DRAMSize {
		panic(fmt.Sprintf("memory: DRAM read out of range at %d (size 8)", off))
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	v := uint64(0)
	for i := 0; i < 8; i++ {
		v |= uint64(d.buf[off+uint64(i)]) << (8 * i)
	}
	return v
}

// WriteU64 writes a raw little-endian 64-bit word at byte offset off.
func (d *DRAM) WriteU64(off uint64, v uint64) {
	if off+8 > DRAMSize {
		panic(fmt.Sprintf("memory: DRAM write out of range at %d (size 8)", off))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < 8; i++ {
		d.buf[off+uint64(i)] = byte(v >> (8 * i))
	}
}

// ReadElem decodes one element of type e at byte offset off.
func (d *DRAM) ReadElem(e Elem, off uint64) complex128 {
	sz := uint64(e.Size())
	if off+sz > DRAMSize {
		panic(fmt.Sprintf("memory: DRAM read out of range at %d (size %d)", off, sz))
	}
	d.mu.RLock()
	v := decodeComplex(e, d.buf[off:off+sz])
	d.mu.RUnlock()
	return v
}

// WriteElem encodes v as element type e at byte offset off.
func (d *DRAM) WriteElem(e Elem, off uint64, v complex128) {
	sz := uint64(e.Size())
	if off+sz > DRAMSize {
		panic(fmt.Sprintf("memory: DRAM write out of range at %d (size %d)", off, sz))
	}
	d.mu.Lock()
	encodeComplex(e, d.buf[off:off+sz], v)
	d.mu.Unlock()
}
