//go:build m68k

package interrupt

import "omibyte.io/m68krt/register"

//sigo:extern readSR _m68k_read_sr
func readSR() uint16

//sigo:extern writeSR _m68k_write_sr
func writeSR(sr uint16)

type cpuSR struct{}

func (cpuSR) ReadSR() register.SR {
	return register.SR(readSR())
}

func (cpuSR) WriteSR(sr register.SR) {
	writeSR(uint16(sr))
}

// CPU controls the mask of the running processor.
var CPU = New(cpuSR{})
