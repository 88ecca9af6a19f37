// Package interrupt controls the processor interrupt priority mask held in
// bits 8 to 10 of the status register.
package interrupt

import (
	"sync/atomic"

	"omibyte.io/m68krt/register"
)

// Mask is an interrupt priority level. Interrupts at or below the mask are
// held off, except level 7 which is non-maskable.
type Mask uint8

const (
	MaskNone Mask = 0
	MaskAll  Mask = 7
)

// StatusRegister is the capability to read and write SR.
type StatusRegister interface {
	ReadSR() register.SR
	WriteSR(sr register.SR)
}

// InterruptNumber is implemented by device interrupt enumerations.
type InterruptNumber interface {
	Number() uint16
}

type Controller struct {
	sr StatusRegister
}

func New(sr StatusRegister) *Controller {
	return &Controller{sr: sr}
}

// Disable raises the mask to level 7.
func (c *Controller) Disable() {
	c.sr.WriteSR(c.sr.ReadSR() | register.SRMaskBits)
	fence()
}

// Get returns the current mask.
func (c *Controller) Get() Mask {
	return Mask(c.sr.ReadSR().IPL())
}

// Set replaces the mask with m in a single status register write. Calling Set
// inside an active critical section lowers the mask the section relies on.
func (c *Controller) Set(m Mask) {
	fence()
	c.sr.WriteSR(c.sr.ReadSR().WithIPL(uint8(m)))
}

var barrier atomic.Uint32

// fence keeps memory accesses on either side of a mask change from being
// moved across it.
func fence() {
	barrier.Add(1)
}
