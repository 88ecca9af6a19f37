// Package critical provides critical sections over the interrupt mask and the
// storage types that depend on them.
//
// A critical section raises the mask to level 7 on entry and puts back the
// mask observed at entry on exit. Nested sections therefore restore the mask
// of the immediately enclosing section, and only the outermost exit lowers it
// to the pre-section level.
package critical

import "omibyte.io/m68krt/interrupt"

// RestoreState is the mask captured at entry. It must be released exactly
// once, in reverse order of acquisition.
type RestoreState interrupt.Mask

// Impl acquires and releases critical sections.
type Impl interface {
	Acquire() RestoreState
	Release(state RestoreState)
}

// CS is the token With hands to code running inside a critical section.
// Other packages can still write CS{}, so the token is checked where it is
// consumed: a zero CS was not issued by With.
type CS struct {
	issued bool
}

// Issued reports whether cs came from With.
func (cs CS) Issued() bool {
	return cs.issued
}

var impl Impl

// SetImpl installs the implementation used by the package level functions and
// returns the previous one. Programs install one at startup; host harnesses
// install one per simulated machine.
func SetImpl(i Impl) Impl {
	prev := impl
	impl = i
	return prev
}

func current() Impl {
	if impl == nil {
		panic("critical: no implementation installed")
	}
	return impl
}

func Acquire() RestoreState {
	return current().Acquire()
}

func Release(state RestoreState) {
	current().Release(state)
}

// With runs f inside a critical section.
func With(f func(cs CS)) {
	i := current()
	state := i.Acquire()
	defer i.Release(state)
	f(CS{issued: true})
}

// SingleCore implements Impl for a uniprocessor by masking all interrupts.
type SingleCore struct {
	c *interrupt.Controller
}

func NewSingleCore(c *interrupt.Controller) *SingleCore {
	return &SingleCore{c: c}
}

func (s *SingleCore) Acquire() RestoreState {
	state := RestoreState(s.c.Get())
	s.c.Disable()
	return state
}

func (s *SingleCore) Release(state RestoreState) {
	s.c.Set(interrupt.Mask(state))
}
