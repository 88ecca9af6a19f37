// Package register decodes the 68000 status register and its condition code
// byte. Values are plain bits; reading the live register is the job of the
// interrupt package's StatusRegister capability.
package register

// SR is a raw status register value.
type SR uint16

const (
	SRMaskShift = 8
	SRMaskBits  = SR(0x0700)

	srSupervisor = SR(1 << 13)
	srTrace      = SR(1 << 15)
)

// IPL returns the interrupt priority mask, bits 8 to 10.
func (s SR) IPL() uint8 {
	return uint8((s & SRMaskBits) >> SRMaskShift)
}

// WithIPL returns s with the interrupt mask replaced by level.
func (s SR) WithIPL(level uint8) SR {
	return s&^SRMaskBits | SR(level&0x7)<<SRMaskShift
}

func (s SR) Supervisor() bool {
	return s&srSupervisor != 0
}

func (s SR) Trace() bool {
	return s&srTrace != 0
}

func (s SR) CCR() CCR {
	return CCR(s & 0xFF)
}
