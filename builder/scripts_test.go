package builder

import (
	"errors"
	"strings"
	"testing"

	"omibyte.io/m68krt/rt"
	"omibyte.io/m68krt/targets"
)

func testTable(t *testing.T) *rt.Table {
	t.Helper()
	table := rt.NewTable()
	if err := table.Declare("VBLANK", 64); err != nil {
		t.Fatal(err)
	}
	return table
}

func TestWriteLinkScript(t *testing.T) {
	opts := LinkOptions{
		ROM:    targets.Region{Origin: 0, Length: 0x80000},
		RAM:    targets.Region{Origin: 0x100000, Length: 0x100000},
		Device: true,
	}
	var b strings.Builder
	if err := WriteLinkScript(&b, testTable(t), opts); err != nil {
		t.Fatal(err)
	}
	script := b.String()

	for _, want := range []string{
		"ROM (rx)  : ORIGIN = 0x00000000, LENGTH = 0x00080000",
		"RAM (rwx) : ORIGIN = 0x00100000, LENGTH = 0x00100000",
		"ENTRY(Reset);",
		"PROVIDE(BusError = DefaultHandler);",
		"PROVIDE(FormatError = DefaultHandler);",
		"PROVIDE(_TRAP15 = DefaultHandler);",
		"PROVIDE(__pre_init = DefaultPreInit);",
		"PROVIDE(_stack_start = _ram_end);",
		"KEEP(*(.vector_table.reset_vector));",
		"_sidata = LOADADDR(.data);",
		"ASSERT(_ebss <= _stack_start",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("link script lacks %q", want)
		}
	}
	if strings.Contains(script, "PROVIDE(VBLANK") {
		t.Error("device interrupt aliased outside the device fragment")
	}
	if strings.Contains(script, "PROVIDE( =") {
		t.Error("reserved slot aliased")
	}

	// The device fragment comes after every core alias.
	include := strings.Index(script, "INCLUDE device.x")
	if include < 0 || include < strings.LastIndex(script, "PROVIDE(") {
		t.Error("INCLUDE device.x must follow the core aliases")
	}

	// The sections are kept in vector order.
	last := -1
	for _, section := range []string{rt.SectionReset, rt.SectionExceptions, rt.SectionAutovector, rt.SectionTraps, rt.SectionInterrupts} {
		i := strings.Index(script, "KEEP(*("+section+"))")
		if i < last {
			t.Errorf("%s out of order", section)
		}
		last = i
	}
}

func TestWriteLinkScriptWithoutDevice(t *testing.T) {
	opts := LinkOptions{
		ROM:    targets.Region{Origin: 0, Length: 0x10000},
		RAM:    targets.Region{Origin: 0x200000, Length: 0x8000},
		Policy: rt.ZeroRAM,
	}
	var b strings.Builder
	if err := WriteLinkScript(&b, testTable(t), opts); err != nil {
		t.Fatal(err)
	}
	script := b.String()
	if strings.Contains(script, "INCLUDE") {
		t.Error("unexpected INCLUDE")
	}
	if !strings.Contains(script, "PROVIDE(VBLANK = DefaultHandler);") {
		t.Error("device interrupt not aliased")
	}
	if strings.Contains(script, "_ebss <= _stack_start") {
		t.Error("bss assertion with zero-ram policy")
	}
}

func TestWriteLinkScriptInvalidMemory(t *testing.T) {
	opts := LinkOptions{
		ROM: targets.Region{Origin: 0, Length: 0x10000},
		RAM: targets.Region{Origin: 0x8000, Length: 0x8000},
	}
	err := WriteLinkScript(&strings.Builder{}, rt.NewTable(), opts)
	if !errors.Is(err, ErrMemoryLayout) {
		t.Fatalf("error = %v, want %v", err, ErrMemoryLayout)
	}
}

func TestWriteDeviceScript(t *testing.T) {
	var b strings.Builder
	if err := WriteDeviceScript(&b, testTable(t)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "PROVIDE(VBLANK = DefaultHandler);") {
		t.Errorf("device script:\n%s", b.String())
	}
}

func TestWriteStartup(t *testing.T) {
	tests := []struct {
		name    string
		policy  rt.MemoryPolicy
		want    []string
		notWant []string
	}{
		{
			name:    "sections",
			policy:  rt.Sections,
			want:    []string{"lea\t_sbss, %a0", "lea\t_sidata, %a2", "move.l\t(%a2)+, (%a0)+", "4:\n\tjsr\truntime.initPackages"},
			notWant: []string{"_ram_start"},
		},
		{
			name:    "zero ram",
			policy:  rt.ZeroRAM,
			want:    []string{"lea\t_ram_start, %a0", "lea\t_ram_end, %a1", "2:\n\tjsr\truntime.initPackages"},
			notWant: []string{"_sbss", "_sidata"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			if err := WriteStartup(&b, VectorLayout(testTable(t)), tt.policy); err != nil {
				t.Fatal(err)
			}
			src := b.String()
			for _, want := range append(tt.want,
				"move.w\t#0x2700, %sr",
				"jsr\t__pre_init",
				"jsr\tmain\n\tillegal",
				"DefaultHandler:\n1:\tstop\t#0x2700",
				"DefaultPreInit:\n\trts",
				"_m68k_read_sr:",
				"trap\t#15",
				".long\t_stack_start",
				".long\tVBLANK",
			) {
				if !strings.Contains(src, want) {
					t.Errorf("startup lacks %q", want)
				}
			}
			for _, bad := range tt.notWant {
				if strings.Contains(src, bad) {
					t.Errorf("startup contains %q", bad)
				}
			}

			// The pre-init hook runs before memory is touched, the package
			// initializers once RAM is ready and the entry point last.
			preInit := strings.Index(src, "jsr\t__pre_init")
			clear := strings.Index(src, "clr.l")
			inits := strings.Index(src, "jsr\t"+rt.InitPackagesSymbol)
			entry := strings.Index(src, "jsr\tmain")
			if !(preInit < clear && clear < inits && inits < entry) {
				t.Errorf("reset sequence out of order: pre-init %d, clear %d, package init %d, entry %d", preInit, clear, inits, entry)
			}
			if n := strings.Count(src, "jsr\t"+rt.InitPackagesSymbol); n != 1 {
				t.Errorf("package initializers called %d times", n)
			}
			if n := strings.Count(src, ".long\t"); n != 65 {
				t.Errorf("%d vector entries, want 65", n)
			}
		})
	}
}
