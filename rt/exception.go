package rt

import "fmt"

// Exception is a processor exception, numbered by its vector.
type Exception uint8

const (
	BusError Exception = iota + 2
	AddressError
	IllegalInstruction
	ZeroDivide
	CHKInstruction
	TRAPVInstruction
	PrivilegeViolation
	Trace
	Line1010Emulator
	Line1111Emulator
	_
	_
	FormatError
)

// Fixed vector numbers.
const (
	VectorInitialSSP    = 0
	VectorReset         = 1
	VectorUninitialized = 15
	VectorSpurious      = 24
	VectorAutovector    = 24 // plus level 1 to 7
	VectorTrap          = 32 // plus trap number 0 to 15
	VectorUser          = 64
	VectorCount         = 256

	// ExceptionSlots is the number of vectors after the reset vector that
	// make up the core exception table.
	ExceptionSlots = 14
	TrapSlots      = 16
)

// Symbols placed in the vector table by the startup code.
const (
	ResetSymbol          = "Reset"
	EntrySymbol          = "main"
	PreInitSymbol        = "__pre_init"
	DefaultHandlerSymbol = "DefaultHandler"
	DefaultPreInitSymbol = "DefaultPreInit"

	// InitPackagesSymbol runs the Go package initializers. Reset calls it
	// once RAM is ready and before the entry point.
	InitPackagesSymbol = "runtime.initPackages"
)

var exceptionNames = [ExceptionSlots]string{
	"BusError",
	"AddressError",
	"IllegalInstruction",
	"ZeroDivide",
	"CHKInstruction",
	"TRAPVInstruction",
	"PrivilegeViolation",
	"Trace",
	"Line1010Emulator",
	"Line1111Emulator",
	"",
	"",
	"FormatError",
	"",
}

func (e Exception) String() string {
	if e.Valid() {
		return exceptionNames[e-BusError]
	}
	return fmt.Sprintf("Exception(%d)", uint8(e))
}

// Valid reports whether e names a non-reserved core exception slot.
func (e Exception) Valid() bool {
	return e >= BusError && e < BusError+ExceptionSlots && exceptionNames[e-BusError] != ""
}

func LookupException(name string) (Exception, bool) {
	for i, n := range exceptionNames {
		if n != "" && n == name {
			return BusError + Exception(i), true
		}
	}
	return 0, false
}

// Exceptions returns the core exceptions in vector order.
func Exceptions() []Exception {
	var result []Exception
	for i, n := range exceptionNames {
		if n != "" {
			result = append(result, BusError+Exception(i))
		}
	}
	return result
}

func TrapSymbol(n int) string {
	return fmt.Sprintf("_TRAP%d", n)
}

// Interrupt is a device interrupt, numbered by its vector.
type Interrupt uint8

// Number returns the position of the interrupt in the user vector area.
func (i Interrupt) Number() uint16 {
	return uint16(i) - VectorUser
}

func (i Interrupt) Vector() uint8 {
	return uint8(i)
}

// ValidInterruptVector reports whether a device interrupt may use vector v:
// the spurious and autovector slots or the user area.
func ValidInterruptVector(v int) bool {
	return (v >= VectorSpurious && v < VectorTrap) || (v >= VectorUser && v < VectorCount)
}
