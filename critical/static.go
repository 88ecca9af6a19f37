package critical

import "sync/atomic"

// Static is a fixed storage slot initialized once, on first use. Generated
// handler trampolines keep each persistent handler variable in one.
type Static[T any] struct {
	value       T
	initialized atomic.Bool
}

// Get returns the slot, running initial on the first call. A nil initial leaves
// the zero value in place.
func (s *Static[T]) Get(initial func() T) *T {
	if !s.initialized.Load() {
		With(func(CS) {
			if s.initialized.Load() {
				return
			}
			if initial != nil {
				s.value = initial()
			}
			s.initialized.Store(true)
		})
	}
	return &s.value
}

// Initialized reports whether Get has run.
func (s *Static[T]) Initialized() bool {
	return s.initialized.Load()
}

// Singleton hands out its value at most once.
type Singleton[T any] struct {
	value T
	taken bool
}

// Take initializes the value and returns it on the first call and returns nil
// on every later call.
func (s *Singleton[T]) Take(initial func() T) *T {
	var p *T
	With(func(CS) {
		if s.taken {
			return
		}
		s.taken = true
		if initial != nil {
			s.value = initial()
		}
		p = &s.value
	})
	return p
}

// Mutex holds data shared between the main program and interrupt handlers.
// The data is reachable only with a CS token issued by With.
type Mutex[T any] struct {
	value T
}

func NewMutex[T any](value T) *Mutex[T] {
	return &Mutex[T]{value: value}
}

// Borrow panics when cs was not issued by With.
func (m *Mutex[T]) Borrow(cs CS) *T {
	if !cs.issued {
		panic("critical: Borrow outside a critical section")
	}
	return &m.value
}

// Lock runs f on the data inside a critical section.
func (m *Mutex[T]) Lock(f func(v *T)) {
	With(func(cs CS) {
		f(m.Borrow(cs))
	})
}
