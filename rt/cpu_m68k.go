//go:build m68k

package rt

import (
	"unsafe"

	"omibyte.io/m68krt/register"
	"omibyte.io/m68krt/volatile"
)

//sigo:extern readSR _m68k_read_sr
func readSR() uint16

//sigo:extern writeSR _m68k_write_sr
func writeSR(sr uint16)

//sigo:extern illegal _m68k_illegal
func illegal()

//sigo:extern nop _m68k_nop
func nop()

//sigo:extern stop _m68k_stop
func stop()

//sigo:extern trap _m68k_trap
func trap(n uint8)

type cpu struct{}

func (cpu) ReadSR() register.SR     { return register.SR(readSR()) }
func (cpu) WriteSR(sr register.SR) { writeSR(uint16(sr)) }
func (cpu) Illegal()               { illegal() }
func (cpu) Nop()                   { nop() }
func (cpu) Trap(n uint8)           { trap(n) }

// Exceptions are vectored by the hardware.
func (cpu) Attach(Dispatcher) {}

func (cpu) Halt() {
	for {
		stop()
	}
}

func (cpu) Zero(start, end uintptr) {
	for p := start; p < end; p += 4 {
		volatile.StoreUint32((*uint32)(unsafe.Add(unsafe.Pointer(nil), p)), 0)
	}
}

func (cpu) Copy(dst, end, src uintptr) {
	for ; dst < end; dst, src = dst+4, src+4 {
		volatile.StoreUint32((*uint32)(unsafe.Add(unsafe.Pointer(nil), dst)), volatile.LoadUint32((*uint32)(unsafe.Add(unsafe.Pointer(nil), src))))
	}
}

func init() {
	current = cpu{}
}
