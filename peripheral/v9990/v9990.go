// Package v9990 maps the Yamaha V9990 video display processor ports.
package v9990

import (
	"unsafe"

	"omibyte.io/m68krt/volatile"
)

const BaseAddress = 0x0080_0000

type RegisterBlock struct {
	VD volatile.RW[uint8] // VRAM data
	PD volatile.RW[uint8] // palette data
	CD volatile.RW[uint8] // command data
	RD volatile.RW[uint8] // register data
	RS volatile.WO[uint8] // register select
	S  volatile.RO[uint8] // status
	I  volatile.RW[uint8] // interrupt flags
	SC volatile.WO[uint8] // system control
}

// Status bits.
const (
	S_CE  = 1 << 0 // command being executed
	S_EO  = 1 << 1 // second field during interlace
	S_MCS = 1 << 2 // master clock source
	S_BD  = 1 << 4 // border colour detected by SRCH
	S_HR  = 1 << 5 // horizontal non-display period
	S_VR  = 1 << 6 // vertical non-display period
	S_TR  = 1 << 7 // command data transfer ready
)

// Interrupt flag bits.
const (
	I_VI = 1 << 0
	I_HI = 1 << 1
	I_CE = 1 << 2
)

const SC_MCS = 1 << 0

// VDP is the device at BaseAddress.
var VDP = At(BaseAddress)

// At maps a block at an arbitrary address, for boards that decode the VDP
// elsewhere and for tests.
func At(addr uintptr) *RegisterBlock {
	return (*RegisterBlock)(unsafe.Add(unsafe.Pointer(nil), addr))
}

// WriteRegister selects register reg and writes value to it.
func (p *RegisterBlock) WriteRegister(reg, value uint8) {
	p.RS.Set(reg)
	p.RD.Set(value)
}

func (p *RegisterBlock) ReadRegister(reg uint8) uint8 {
	p.RS.Set(reg)
	return p.RD.Get()
}

// AckInterrupts clears the given pending flags. Flags are write-one-to-clear.
func (p *RegisterBlock) AckInterrupts(flags uint8) {
	p.I.Set(flags)
}

func (p *RegisterBlock) Pending() uint8 {
	return p.I.Get() & (I_VI | I_HI | I_CE)
}

func (p *RegisterBlock) Busy() bool {
	return p.S.Get()&S_CE != 0
}
