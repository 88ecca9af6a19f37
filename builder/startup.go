package builder

import (
	"fmt"
	"io"
	"strings"

	"omibyte.io/m68krt/rt"
)

// WriteStartup writes the startup assembly: the vector table, the reset
// sequence, the default handlers and the CPU helpers the runtime calls.
func WriteStartup(w io.Writer, layout []Entry, policy rt.MemoryPolicy) error {
	var b strings.Builder

	fmt.Fprintln(&b, "| Code generated by m68krt. DO NOT EDIT.")
	fmt.Fprintln(&b)

	// Reset masks all interrupts, runs the pre-init hook before the memory
	// is touched, prepares RAM, runs the package initializers and calls the
	// entry point. The entry point never returns; if it does, the illegal
	// instruction traps.
	fmt.Fprintln(&b, "\t.section .Reset, \"ax\"")
	fmt.Fprintf(&b, "\t.global %s\n", rt.ResetSymbol)
	fmt.Fprintf(&b, "\t.type %s, @function\n", rt.ResetSymbol)
	fmt.Fprintf(&b, "%s:\n", rt.ResetSymbol)
	writeLines(&b, "\tmove.w\t#0x2700, %sr")
	fmt.Fprintf(&b, "\tjsr\t%s\n", rt.PreInitSymbol)
	switch policy {
	case rt.ZeroRAM:
		writeZero(&b, "_ram_start", "_ram_end", 1)
	default:
		writeZero(&b, "_sbss", "_ebss", 1)
		writeLines(&b,
			"\tlea\t_sdata, %a0",
			"\tlea\t_edata, %a1",
			"\tlea\t_sidata, %a2",
			"3:\tcmpa.l\t%a1, %a0",
			"\tbcc.s\t4f",
			"\tmove.l\t(%a2)+, (%a0)+",
			"\tbra.s\t3b",
			"4:")
	}
	fmt.Fprintf(&b, "\tjsr\t%s\n", rt.InitPackagesSymbol)
	fmt.Fprintf(&b, "\tjsr\t%s\n", rt.EntrySymbol)
	writeLines(&b, "\tillegal")
	fmt.Fprintf(&b, "\t.size %s, .-%s\n", rt.ResetSymbol, rt.ResetSymbol)
	fmt.Fprintln(&b)

	writeFunc(&b, rt.DefaultHandlerSymbol,
		"1:\tstop\t#0x2700",
		"\tbra.s\t1b")
	writeFunc(&b, rt.DefaultPreInitSymbol,
		"\trts")

	writeFunc(&b, "_m68k_read_sr",
		"\tmoveq\t#0, %d0",
		"\tmove.w\t%sr, %d0",
		"\trts")
	writeFunc(&b, "_m68k_write_sr",
		"\tmove.w\t6(%sp), %sr",
		"\trts")
	writeFunc(&b, "_m68k_illegal",
		"\tillegal",
		"\trts")
	writeFunc(&b, "_m68k_nop",
		"\tnop",
		"\trts")
	writeFunc(&b, "_m68k_stop",
		"\tstop\t#0x2700",
		"\trts")

	// TRAP takes an immediate operand, so the trap number selects an entry
	// of a table of four byte trap/rts pairs.
	trap := []string{
		"\tmove.l\t4(%sp), %d0",
		"\tandi.l\t#0xf, %d0",
		"\tlsl.l\t#2, %d0",
		"\tlea\t1f, %a0",
		"\tjmp\t(%a0, %d0.l)",
		"1:",
	}
	for n := 0; n < rt.TrapSlots; n++ {
		trap = append(trap, fmt.Sprintf("\ttrap\t#%d", n), "\trts")
	}
	writeFunc(&b, "_m68k_trap", trap...)

	section := ""
	for _, e := range layout {
		if e.Section != section {
			section = e.Section
			fmt.Fprintln(&b)
			fmt.Fprintf(&b, "\t.section %s, \"a\"\n", section)
		}
		symbol := e.Symbol
		if symbol == "" {
			symbol = "0"
		}
		fmt.Fprintf(&b, "\t.long\t%-24s| %3d %s\n", symbol, e.Vector, e.Comment)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeZero(b *strings.Builder, start, end string, label int) {
	fmt.Fprintf(b, "\tlea\t%s, %%a0\n", start)
	fmt.Fprintf(b, "\tlea\t%s, %%a1\n", end)
	fmt.Fprintf(b, "%d:\tcmpa.l\t%%a1, %%a0\n", label)
	fmt.Fprintf(b, "\tbcc.s\t%df\n", label+1)
	writeLines(b, "\tclr.l\t(%a0)+")
	fmt.Fprintf(b, "\tbra.s\t%db\n", label)
	fmt.Fprintf(b, "%d:\n", label+1)
}

func writeFunc(b *strings.Builder, name string, body ...string) {
	fmt.Fprintf(b, "\t.section .text.%s, \"ax\"\n", name)
	fmt.Fprintf(b, "\t.global %s\n", name)
	fmt.Fprintf(b, "\t.type %s, @function\n", name)
	fmt.Fprintf(b, "%s:\n", name)
	writeLines(b, body...)
	fmt.Fprintf(b, "\t.size %s, .-%s\n", name, name)
	fmt.Fprintln(b)
}

// writeLines writes assembly verbatim. Register names start with a percent
// sign, so they never go through a format string.
func writeLines(b *strings.Builder, lines ...string) {
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
}
