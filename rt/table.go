package rt

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// Handler is the body of a vector.
type Handler func()

// Vector is one slot of the vector table. Reserved slots can never be bound
// or called; an unbound slot resolves to the table's default handler.
type Vector struct {
	number   uint8
	name     string
	handler  Handler
	reserved bool
}

func (v Vector) Number() uint8   { return v.number }
func (v Vector) Name() string    { return v.name }
func (v Vector) Reserved() bool  { return v.reserved }
func (v Vector) Bound() bool     { return v.handler != nil }
func (v Vector) Handler() Handler { return v.handler }

// Table maps vectors to handlers. It is filled in by generated init code and
// sealed by the reset sequence.
type Table struct {
	mu         sync.Mutex
	sealed     bool
	reset      Vector
	exceptions [ExceptionSlots]Vector
	traps      [TrapSlots]Vector
	interrupts map[uint8]*Vector
	names      map[string]uint8
	entry      Handler
	preInit    Handler
	def        Handler
}

func NewTable() *Table {
	t := &Table{
		reset:      Vector{number: VectorReset, name: ResetSymbol},
		interrupts: map[uint8]*Vector{},
		names:      map[string]uint8{},
	}
	for i := range t.exceptions {
		e := BusError + Exception(i)
		t.exceptions[i] = Vector{number: uint8(e), name: exceptionNames[i], reserved: !e.Valid()}
	}
	for i := range t.traps {
		t.traps[i] = Vector{number: uint8(VectorTrap + i), name: TrapSymbol(i)}
	}
	return t
}

func (t *Table) lock() error {
	t.mu.Lock()
	if t.sealed {
		t.mu.Unlock()
		return ErrTableSealed
	}
	return nil
}

// Override binds h to the named exception or declared device interrupt.
func (t *Table) Override(name string, h Handler) error {
	if err := t.lock(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if e, ok := LookupException(name); ok {
		t.exceptions[e-BusError].handler = h
		return nil
	}
	if v, ok := t.names[name]; ok {
		t.interrupts[v].handler = h
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownException, name)
}

// OverrideTrap binds h to TRAP #n.
func (t *Table) OverrideTrap(n int, h Handler) error {
	if n < 0 || n >= TrapSlots {
		return fmt.Errorf("%w: %d", ErrTrapNumber, n)
	}
	if err := t.lock(); err != nil {
		return err
	}
	defer t.mu.Unlock()
	t.traps[n].handler = h
	return nil
}

// Declare adds a device interrupt at vector.
func (t *Table) Declare(name string, vector uint8) error {
	if !ValidInterruptVector(int(vector)) {
		return fmt.Errorf("%w: %s at %d", ErrInvalidVector, name, vector)
	}
	if _, ok := LookupException(name); ok {
		return fmt.Errorf("%w: %s", ErrNameInUse, name)
	}
	if err := t.lock(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if prev, ok := t.interrupts[vector]; ok {
		if prev.name == name {
			return nil
		}
		return fmt.Errorf("%w: %d by %s", ErrVectorInUse, vector, prev.name)
	}
	if _, ok := t.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrNameInUse, name)
	}
	t.interrupts[vector] = &Vector{number: vector, name: name}
	t.names[name] = vector
	return nil
}

func (t *Table) SetEntry(h Handler) error {
	if err := t.lock(); err != nil {
		return err
	}
	defer t.mu.Unlock()
	if t.entry != nil {
		return ErrEntryRedeclared
	}
	t.entry = h
	return nil
}

func (t *Table) SetPreInit(h Handler) error {
	if err := t.lock(); err != nil {
		return err
	}
	defer t.mu.Unlock()
	if t.preInit != nil {
		return ErrPreInitRedeclared
	}
	t.preInit = h
	return nil
}

// SetDefault replaces the handler of unbound vectors.
func (t *Table) SetDefault(h Handler) error {
	if err := t.lock(); err != nil {
		return err
	}
	defer t.mu.Unlock()
	t.def = h
	return nil
}

// Seal freezes the table. It is idempotent.
func (t *Table) Seal() {
	t.mu.Lock()
	t.sealed = true
	t.mu.Unlock()
}

func (t *Table) Sealed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sealed
}

// Fetch returns the handler for vector. ok is false for reserved and unknown
// vectors; a nil handler means the default handler.
func (t *Table) Fetch(vector uint8) (h Handler, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case vector >= BusError.vector() && vector < BusError.vector()+ExceptionSlots:
		v := t.exceptions[vector-BusError.vector()]
		return v.handler, !v.reserved
	case vector >= VectorTrap && vector < VectorTrap+TrapSlots:
		return t.traps[vector-VectorTrap].handler, true
	}
	if v, ok := t.interrupts[vector]; ok {
		return v.handler, true
	}
	return nil, false
}

func (e Exception) vector() uint8 {
	return uint8(e)
}

// Exception returns the slot of a core exception.
func (t *Table) Exception(e Exception) Vector {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exceptions[e-BusError]
}

// Interrupts returns the declared device interrupts in vector order.
func (t *Table) Interrupts() []Vector {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]Vector, 0, len(t.interrupts))
	for _, v := range t.interrupts {
		result = append(result, *v)
	}
	slices.SortFunc(result, func(a, b Vector) bool {
		return a.number < b.number
	})
	return result
}

// Section names of the vector table.
const (
	SectionReset      = ".vector_table.reset_vector"
	SectionExceptions = ".vector_table.exceptions"
	SectionAutovector = ".vector_table.autovectors"
	SectionTraps      = ".vector_table.traps"
	SectionInterrupts = ".vector_table.interrupts"
)

// Slot describes one vector for the linker script and startup assembly.
type Slot struct {
	Vector   uint8
	Symbol   string
	Section  string
	Reserved bool
}

// Slots returns the layout of the table in vector order: the reset vector,
// the core exceptions, the traps and the declared device interrupts.
func (t *Table) Slots() []Slot {
	slots := []Slot{{Vector: VectorReset, Symbol: ResetSymbol, Section: SectionReset}}
	t.mu.Lock()
	for _, v := range t.exceptions {
		slots = append(slots, Slot{Vector: v.number, Symbol: v.name, Section: SectionExceptions, Reserved: v.reserved})
	}
	for _, v := range t.traps {
		slots = append(slots, Slot{Vector: v.number, Symbol: v.name, Section: SectionTraps})
	}
	t.mu.Unlock()
	for _, v := range t.Interrupts() {
		slots = append(slots, Slot{Vector: v.number, Symbol: v.name, Section: SectionInterrupts})
	}
	slices.SortStableFunc(slots, func(a, b Slot) bool {
		return a.Vector < b.Vector
	})
	return slots
}
