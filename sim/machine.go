// Package sim is a host model of a 68000 system: status register, flat
// memory, prioritized interrupt delivery and halting. It implements
// rt.Machine so a program's startup sequence and handlers can be exercised
// without hardware.
package sim

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"omibyte.io/m68krt/critical"
	"omibyte.io/m68krt/interrupt"
	"omibyte.io/m68krt/register"
	"omibyte.io/m68krt/rt"
)

// ResetSR is the status register after reset: supervisor mode, all
// interrupts masked.
const ResetSR = register.SR(0x2700)

// Stop ends a run. It is raised as a panic value by Halt and recovered by Run.
type Stop struct {
	Reason string
	Vector uint8
}

func (s *Stop) Error() string {
	return fmt.Sprintf("machine stopped: %s (vector %d)", s.Reason, s.Vector)
}

type pending struct {
	level  uint8
	vector uint8
}

type Machine struct {
	mu         sync.Mutex
	sr         register.SR
	mem        []byte
	pending    []pending
	dispatcher rt.Dispatcher
	current    uint8
	delivered  []uint8
}

// New returns a machine with size bytes of memory at address 0.
func New(size int) *Machine {
	return &Machine{sr: ResetSR, mem: make([]byte, size)}
}

func (m *Machine) ReadSR() register.SR {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sr
}

// WriteSR replaces SR and delivers any interrupt the new mask lets through.
func (m *Machine) WriteSR(sr register.SR) {
	m.mu.Lock()
	m.sr = sr
	m.mu.Unlock()
	m.Poll()
}

// Controller returns an interrupt controller bound to this machine.
func (m *Machine) Controller() *interrupt.Controller {
	return interrupt.New(m)
}

// Install makes this machine the critical section implementation. The
// returned function restores the previous one.
func (m *Machine) Install() (restore func()) {
	prev := critical.SetImpl(critical.NewSingleCore(m.Controller()))
	return func() { critical.SetImpl(prev) }
}

func (m *Machine) Attach(d rt.Dispatcher) {
	m.mu.Lock()
	m.dispatcher = d
	m.mu.Unlock()
}

func (m *Machine) check(start, end uintptr) {
	if start > end || end > uintptr(len(m.mem)) {
		panic(&Stop{Reason: fmt.Sprintf("bus error at %#x-%#x", start, end), Vector: uint8(rt.BusError)})
	}
}

func (m *Machine) Zero(start, end uintptr) {
	m.check(start, end)
	for i := start; i < end; i++ {
		m.mem[i] = 0
	}
}

func (m *Machine) Copy(dst, end, src uintptr) {
	m.check(dst, end)
	m.check(src, src+(end-dst))
	copy(m.mem[dst:end], m.mem[src:src+(end-dst)])
}

// Load writes data at addr.
func (m *Machine) Load(addr uintptr, data []byte) {
	m.check(addr, addr+uintptr(len(data)))
	copy(m.mem[addr:], data)
}

// Bytes returns n bytes of memory at addr.
func (m *Machine) Bytes(addr uintptr, n int) []byte {
	m.check(addr, addr+uintptr(n))
	return m.mem[addr : addr+uintptr(n)]
}

func (m *Machine) Halt() {
	m.mu.Lock()
	v := m.current
	m.mu.Unlock()
	panic(&Stop{Reason: "halted", Vector: v})
}

// Illegal raises the illegal instruction exception. An illegal instruction
// cannot be resumed, so the machine stops once the handler returns.
func (m *Machine) Illegal() {
	m.exception(uint8(rt.IllegalInstruction), 7)
	panic(&Stop{Reason: "illegal instruction", Vector: uint8(rt.IllegalInstruction)})
}

// Nop is an instruction boundary; pending interrupts are taken here.
func (m *Machine) Nop() {
	m.Poll()
}

func (m *Machine) Trap(n uint8) {
	if n >= rt.TrapSlots {
		panic(&Stop{Reason: fmt.Sprintf("trap #%d", n)})
	}
	m.exception(rt.VectorTrap+n, m.ReadSR().IPL())
}

// Raise asserts an interrupt at level 1 to 7. A zero vector selects the
// autovector of the level. The interrupt is taken as soon as the mask
// allows.
func (m *Machine) Raise(level, vector uint8) {
	if level == 0 || level > 7 {
		panic(fmt.Sprintf("sim: invalid interrupt level %d", level))
	}
	if vector == 0 {
		vector = rt.VectorAutovector + level
	}
	m.mu.Lock()
	m.pending = append(m.pending, pending{level: level, vector: vector})
	m.mu.Unlock()
	m.Poll()
}

// Pending returns the number of interrupts waiting for delivery.
func (m *Machine) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Delivered returns the vectors taken so far, in order.
func (m *Machine) Delivered() []uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.delivered)
}

// Poll takes every pending interrupt the current mask lets through, highest
// level first. Level 7 is never masked.
func (m *Machine) Poll() {
	for {
		m.mu.Lock()
		mask := m.sr.IPL()
		best := -1
		for i, p := range m.pending {
			if (p.level > mask || p.level == 7) && (best < 0 || p.level > m.pending[best].level) {
				best = i
			}
		}
		if best < 0 {
			m.mu.Unlock()
			return
		}
		p := m.pending[best]
		m.pending = slices.Delete(m.pending, best, best+1)
		m.mu.Unlock()

		m.exception(p.vector, p.level)
	}
}

// exception enters supervisor mode with the mask at level, runs the vector
// and returns from the exception.
func (m *Machine) exception(vector, level uint8) {
	m.mu.Lock()
	saved, prev := m.sr, m.current
	d := m.dispatcher
	m.sr = (m.sr | 0x2000).WithIPL(level)
	m.current = vector
	m.delivered = append(m.delivered, vector)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.sr, m.current = saved, prev
		m.mu.Unlock()
	}()

	if d == nil {
		panic(&Stop{Reason: "no vector table", Vector: vector})
	}
	d.Dispatch(vector)
}

// Run resets the machine through r and returns the condition that stopped
// it. Panics that are not a *Stop are propagated.
func Run(m *Machine, r *rt.Runtime) (stop *Stop) {
	defer func() {
		if v := recover(); v != nil {
			s, ok := v.(*Stop)
			if !ok {
				panic(v)
			}
			stop = s
		}
	}()
	restore := m.Install()
	defer restore()
	r.Reset()
	return nil
}
