package interrupt

import (
	"testing"

	"omibyte.io/m68krt/register"
)

type fakeSR struct {
	sr     register.SR
	writes int
}

func (f *fakeSR) ReadSR() register.SR { return f.sr }

func (f *fakeSR) WriteSR(sr register.SR) {
	f.sr = sr
	f.writes++
}

func TestDisable(t *testing.T) {
	for _, initial := range []register.SR{0x2000, 0x2314, 0x2700, 0x0000} {
		f := &fakeSR{sr: initial}
		New(f).Disable()
		if f.sr.IPL() != 7 {
			t.Errorf("%#04x: mask after Disable = %d", uint16(initial), f.sr.IPL())
		}
		if f.sr&^register.SRMaskBits != initial&^register.SRMaskBits {
			t.Errorf("%#04x: Disable touched other bits: %#04x", uint16(initial), uint16(f.sr))
		}
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	f := &fakeSR{sr: 0x2514}
	c := New(f)
	c.Set(c.Get())
	if f.sr != 0x2514 {
		t.Fatalf("Set(Get()) changed SR to %#04x", uint16(f.sr))
	}
	for m := MaskNone; m <= MaskAll; m++ {
		c.Set(m)
		if got := c.Get(); got != m {
			t.Errorf("Set(%d) then Get() = %d", m, got)
		}
		if f.sr&0xF8FF != 0x2014 {
			t.Errorf("Set(%d) touched other bits: %#04x", m, uint16(f.sr))
		}
	}
}

func TestSetSingleWrite(t *testing.T) {
	f := &fakeSR{sr: 0x2700}
	New(f).Set(2)
	if f.writes != 1 {
		t.Fatalf("Set issued %d SR writes, want 1", f.writes)
	}
}
