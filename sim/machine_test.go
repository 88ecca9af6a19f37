package sim

import (
	"testing"

	"omibyte.io/m68krt/critical"
	"omibyte.io/m68krt/register"
	"omibyte.io/m68krt/rt"
)

func run(t *testing.T, table *rt.Table, entry func(m *Machine)) (*Machine, *Stop) {
	t.Helper()
	m := New(0x400)
	if err := table.SetEntry(func() { entry(m) }); err != nil {
		t.Fatal(err)
	}
	return m, Run(m, rt.New(m, table, rt.Config{}))
}

func TestMaskedDelivery(t *testing.T) {
	tests := []struct {
		name  string
		mask  uint8
		level uint8
		taken bool
	}{
		{"above mask", 2, 3, true},
		{"at mask", 3, 3, false},
		{"below mask", 5, 1, false},
		{"nmi", 7, 7, true},
		{"unmasked", 0, 1, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			table := rt.NewTable()
			if err := table.Declare("DEV", 64); err != nil {
				t.Fatal(err)
			}
			taken := 0
			if err := table.Override("DEV", func() { taken++ }); err != nil {
				t.Fatal(err)
			}
			m, stop := run(t, table, func(m *Machine) {
				m.WriteSR(register.SR(0x2000).WithIPL(test.mask))
				m.Raise(test.level, 64)
				m.Halt()
			})
			if stop == nil {
				t.Fatal("run did not stop")
			}
			if (taken == 1) != test.taken {
				t.Fatalf("taken = %d, want %v", taken, test.taken)
			}
			if !test.taken && m.Pending() != 1 {
				t.Errorf("masked interrupt not left pending")
			}
		})
	}
}

func TestPriorityOrder(t *testing.T) {
	table := rt.NewTable()
	for i, name := range []string{"L2", "L5", "L3"} {
		if err := table.Declare(name, uint8(64+i)); err != nil {
			t.Fatal(err)
		}
		name := name
		if err := table.Override(name, func() {}); err != nil {
			t.Fatal(err)
		}
	}
	m, _ := run(t, table, func(m *Machine) {
		m.Raise(2, 64)
		m.Raise(5, 65)
		m.Raise(3, 66)
		m.WriteSR(0x2000)
		m.Halt()
	})
	got := m.Delivered()
	want := []uint8{65, 66, 64}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered %v, want %v", got, want)
		}
	}
}

func TestHandlerRunsAtItsLevel(t *testing.T) {
	table := rt.NewTable()
	if err := table.Declare("DEV", 90); err != nil {
		t.Fatal(err)
	}
	var inside register.SR
	var m *Machine
	if err := table.Override("DEV", func() { inside = m.ReadSR() }); err != nil {
		t.Fatal(err)
	}
	m, _ = run(t, table, func(self *Machine) {
		m = self
		self.WriteSR(0x0000)
		self.Raise(4, 90)
		if sr := self.ReadSR(); sr != 0x0000 {
			t.Errorf("SR not restored after exception: %#04x", uint16(sr))
		}
		self.Halt()
	})
	if inside.IPL() != 4 || !inside.Supervisor() {
		t.Errorf("handler ran with SR %#04x", uint16(inside))
	}
}

// The main program increments a counter shared with an interrupt handler.
// The interrupt is asserted between the load and the store of the increment.
func TestSharedCounter(t *testing.T) {
	for _, guarded := range []bool{false, true} {
		name := "unguarded"
		if guarded {
			name = "guarded"
		}
		t.Run(name, func(t *testing.T) {
			counter := critical.NewMutex(0)
			var raw int
			table := rt.NewTable()
			if err := table.Declare("TICK", 64); err != nil {
				t.Fatal(err)
			}
			if err := table.Override("TICK", func() {
				if guarded {
					counter.Lock(func(v *int) { *v++ })
				} else {
					raw++
				}
			}); err != nil {
				t.Fatal(err)
			}
			var got int
			run(t, table, func(m *Machine) {
				m.WriteSR(0x2000)
				if guarded {
					counter.Lock(func(v *int) {
						x := *v
						m.Raise(3, 64)
						m.Nop()
						*v = x + 1
					})
					counter.Lock(func(v *int) { got = *v })
				} else {
					x := raw
					m.Raise(3, 64)
					raw = x + 1
					got = raw
				}
				m.Halt()
			})
			want := 2
			if !guarded {
				want = 1
			}
			if got != want {
				t.Fatalf("counter = %d, want %d", got, want)
			}
		})
	}
}

func TestRunPropagatesPanics(t *testing.T) {
	table := rt.NewTable()
	defer func() {
		if v := recover(); v != "boom" {
			t.Fatalf("recovered %v", v)
		}
	}()
	run(t, table, func(*Machine) { panic("boom") })
}

func TestBusError(t *testing.T) {
	_, stop := run(t, rt.NewTable(), func(m *Machine) {
		m.Zero(0x300, 0x500)
	})
	if stop == nil || stop.Vector != uint8(rt.BusError) {
		t.Fatalf("stop = %v", stop)
	}
}
