// Package physmem is a thin façade over the platform's physically
// contiguous memory allocator. Hardware engines on this display subsystem
// do not support scatter-gather addressing, so every buffer they read or
// write must be physically contiguous; the allocator also provides the
// cache maintenance and address translation those engines need.
package physmem

// Buffer is a physically contiguous allocation. Data is the CPU mapping,
// Phys the bus address the hardware engines use.
type Buffer struct {
	Data []byte
	Phys uint64
}

// Len returns the allocation size in bytes.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// Ops is the allocator contract.
//
// Implementations must guarantee:
//   - Alloc returns a zero-capable buffer whose physical range is
//     contiguous, or an error; it never returns a partial buffer.
//   - Free is safe to call exactly once per allocated buffer.
//   - FlushCache writes back and invalidates the CPU cache for the given
//     mapping so the hardware engines observe consistent memory.
//   - PhysAddr translates a CPU mapping obtained from this allocator to
//     its physical address.
//   - ActualSize reports the true content dimensions of the most recently
//     delivered frame buffer when it carries non-default alignment
//     padding.
type Ops interface {
	Alloc(size int) (*Buffer, error)
	Free(buf *Buffer) error
	FlushCache(data []byte) error
	PhysAddr(data []byte) (uint64, error)
	ActualSize() (width, height int, err error)
}
