// Package volatile provides memory-mapped register cells. Every access goes
// through a non-inlinable load or store on the cell address so the compiler
// can neither elide nor merge it.
package volatile

import "unsafe"

type Integer interface {
	~uint8 | ~uint16 | ~uint32
}

// RO is a read-only register cell.
type RO[T Integer] struct {
	reg T
}

// WO is a write-only register cell.
type WO[T Integer] struct {
	reg T
}

// RW is a read-write register cell.
type RW[T Integer] struct {
	reg T
}

type (
	Register8  = RW[uint8]
	Register16 = RW[uint16]
	Register32 = RW[uint32]
)

func (r *RO[T]) Get() T {
	return load(&r.reg)
}

func (r *WO[T]) Set(value T) {
	store(&r.reg, value)
}

func (r *RW[T]) Get() T {
	return load(&r.reg)
}

func (r *RW[T]) Set(value T) {
	store(&r.reg, value)
}

// SetBits sets the bits in mask, leaving the others untouched.
func (r *RW[T]) SetBits(mask T) {
	store(&r.reg, load(&r.reg)|mask)
}

// ClearBits clears the bits in mask.
func (r *RW[T]) ClearBits(mask T) {
	store(&r.reg, load(&r.reg)&^mask)
}

// HasBits reports whether any bit of mask is set.
func (r *RW[T]) HasBits(mask T) bool {
	return load(&r.reg)&mask > 0
}

// ReplaceBits replaces the field selected by mask<<pos with value<<pos.
func (r *RW[T]) ReplaceBits(value T, mask T, pos uint8) {
	store(&r.reg, load(&r.reg)&^(mask<<pos)|value&mask<<pos)
}

// Addr returns the address of the cell.
func (r *RW[T]) Addr() uintptr {
	return uintptr(unsafe.Pointer(&r.reg))
}

//go:noinline
func load[T Integer](addr *T) T {
	return *(*T)(unsafe.Pointer(addr))
}

//go:noinline
func store[T Integer](addr *T, value T) {
	*(*T)(unsafe.Pointer(addr)) = value
}

// LoadUint8 and friends access a raw address, for code that has no register
// block to hand.
func LoadUint8(addr *uint8) uint8    { return load(addr) }
func LoadUint16(addr *uint16) uint16 { return load(addr) }
func LoadUint32(addr *uint32) uint32 { return load(addr) }

func StoreUint8(addr *uint8, value uint8)    { store(addr, value) }
func StoreUint16(addr *uint16, value uint16) { store(addr, value) }
func StoreUint32(addr *uint32, value uint32) { store(addr, value) }
