package builder

import (
	"fmt"

	"omibyte.io/m68krt/rt"
)

const (
	defaultHandler = rt.DefaultHandlerSymbol
	StackSymbol    = "_stack_start"
)

// Entry is one long word of the vector table. An empty Symbol is written as
// zero.
type Entry struct {
	Vector  int
	Symbol  string
	Section string

	// Weak entries fall back to the default handler when nothing defines
	// Symbol.
	Weak    bool
	Comment string
}

// VectorLayout lays out the vector table of t from the initial stack pointer
// up to the last used vector. The table always covers the traps; it extends
// into the user area only as far as the highest declared interrupt.
func VectorLayout(t *rt.Table) []Entry {
	slots := map[int]rt.Slot{}
	last := rt.VectorTrap + rt.TrapSlots - 1
	for _, slot := range t.Slots() {
		v := int(slot.Vector)
		slots[v] = slot
		if v > last {
			last = v
		}
	}

	layout := []Entry{{Vector: rt.VectorInitialSSP, Symbol: StackSymbol, Section: rt.SectionReset, Comment: "initial stack pointer"}}
	for v := rt.VectorReset; v <= last; v++ {
		e := Entry{Vector: v, Section: sectionOf(v)}
		slot, ok := slots[v]
		switch {
		case ok && slot.Reserved:
			e.Comment = "reserved"
		case ok:
			e.Symbol = slot.Symbol
			e.Weak = v != rt.VectorReset
			e.Comment = describe(v, slot.Symbol)
		case rt.ValidInterruptVector(v):
			e.Symbol = defaultHandler
			e.Comment = describe(v, "")
		default:
			e.Comment = "reserved"
		}
		layout = append(layout, e)
	}
	return layout
}

func sectionOf(v int) string {
	switch {
	case v <= rt.VectorReset:
		return rt.SectionReset
	case v <= rt.VectorReset+rt.ExceptionSlots:
		return rt.SectionExceptions
	case v < rt.VectorTrap:
		return rt.SectionAutovector
	case v < rt.VectorUser:
		return rt.SectionTraps
	}
	return rt.SectionInterrupts
}

func describe(v int, name string) string {
	var what string
	switch {
	case v == rt.VectorReset:
		return "reset"
	case v == rt.VectorSpurious:
		what = "spurious interrupt"
	case v > rt.VectorAutovector && v < rt.VectorTrap:
		what = fmt.Sprintf("level %d autovector", v-rt.VectorAutovector)
	case v >= rt.VectorTrap && v < rt.VectorTrap+rt.TrapSlots:
		what = fmt.Sprintf("TRAP #%d", v-rt.VectorTrap)
	case v >= rt.VectorUser:
		what = fmt.Sprintf("user interrupt %d", v-rt.VectorUser)
	default:
		return name
	}
	if name == "" {
		return what
	}
	return name + ", " + what
}
