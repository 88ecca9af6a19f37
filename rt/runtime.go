package rt

import (
	"fmt"

	"omibyte.io/m68krt/interrupt"
)

// Machine is the capability set the runtime needs from the processor.
type Machine interface {
	interrupt.StatusRegister

	// Zero clears memory in [start, end).
	Zero(start, end uintptr)
	// Copy copies [src, src+(end-dst)) to [dst, end).
	Copy(dst, end, src uintptr)

	// Halt stops the processor. It does not return.
	Halt()
	// Illegal executes an illegal instruction.
	Illegal()
	Nop()
	// Trap raises TRAP #n.
	Trap(n uint8)

	// Attach routes exceptions raised by the machine to d.
	Attach(d Dispatcher)
}

type Dispatcher interface {
	Dispatch(vector uint8)
}

// MemoryPolicy selects how RAM is prepared before the entry point runs.
type MemoryPolicy int

const (
	// Sections zeroes .bss and copies .data from its load address.
	Sections MemoryPolicy = iota
	// ZeroRAM zeroes the whole of RAM.
	ZeroRAM
)

func (p MemoryPolicy) String() string {
	switch p {
	case Sections:
		return "sections"
	case ZeroRAM:
		return "zero-ram"
	}
	return fmt.Sprintf("MemoryPolicy(%d)", int(p))
}

func ParseMemoryPolicy(s string) (MemoryPolicy, error) {
	switch s {
	case "", "sections":
		return Sections, nil
	case "zero-ram":
		return ZeroRAM, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Layout holds the linker symbols used by memory initialization.
type Layout struct {
	RAMStart, RAMEnd   uintptr
	BSSStart, BSSEnd   uintptr
	DataStart, DataEnd uintptr
	DataLoad           uintptr
}

type Config struct {
	Policy MemoryPolicy
	Layout Layout

	// Init runs after memory initialization and before the entry point.
	Init func()
}

type Runtime struct {
	m     Machine
	table *Table
	cfg   Config
}

func New(m Machine, table *Table, cfg Config) *Runtime {
	if table == nil {
		table = Default
	}
	return &Runtime{m: m, table: table, cfg: cfg}
}

func (r *Runtime) Table() *Table {
	return r.table
}

// Reset runs the startup sequence: seal the table, run the pre-init hook,
// initialize memory, then call the entry point. If the entry point returns,
// an illegal instruction is executed and the machine halts.
func (r *Runtime) Reset() {
	r.table.Seal()
	current = r.m
	r.m.Attach(r)

	if r.table.preInit != nil {
		r.table.preInit()
	}

	r.initMemory()

	if r.cfg.Init != nil {
		r.cfg.Init()
	}

	if r.table.entry != nil {
		r.table.entry()
	}

	r.m.Illegal()
	for {
		r.m.Halt()
	}
}

func (r *Runtime) initMemory() {
	l := r.cfg.Layout
	switch r.cfg.Policy {
	case ZeroRAM:
		if l.RAMEnd > l.RAMStart {
			r.m.Zero(l.RAMStart, l.RAMEnd)
		}
	default:
		if l.BSSEnd > l.BSSStart {
			r.m.Zero(l.BSSStart, l.BSSEnd)
		}
		if l.DataEnd > l.DataStart && l.DataLoad != l.DataStart {
			r.m.Copy(l.DataStart, l.DataEnd, l.DataLoad)
		}
	}
}

// Dispatch runs the handler of vector. Reserved and unknown vectors halt.
func (r *Runtime) Dispatch(vector uint8) {
	h, ok := r.table.Fetch(vector)
	switch {
	case !ok:
		r.m.Halt()
	case h == nil:
		r.DefaultHandler()
	default:
		h()
	}
}

// DefaultHandler runs the table's default handler, or halts forever when the
// table has none.
func (r *Runtime) DefaultHandler() {
	r.table.mu.Lock()
	def := r.table.def
	r.table.mu.Unlock()
	if def != nil {
		def()
		return
	}
	for {
		r.m.Halt()
	}
}

func (r *Runtime) Trap(n uint8) {
	r.m.Trap(n)
}
