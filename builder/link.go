package builder

import (
	"fmt"
	"io"
	"strings"

	"omibyte.io/m68krt/rt"
	"omibyte.io/m68krt/targets"
)

// DeviceScript is the name of the fragment holding the weak aliases of the
// device interrupts.
const DeviceScript = "device.x"

type LinkOptions struct {
	ROM    targets.Region
	RAM    targets.Region
	Policy rt.MemoryPolicy

	// Device includes the device fragment after the core aliases.
	Device bool
}

// WriteLinkScript writes the linker script placing the vector table at the
// start of ROM. Unbound core vectors are weak aliases of DefaultHandler.
func WriteLinkScript(w io.Writer, t *rt.Table, opts LinkOptions) error {
	if err := (targets.Board{Name: "link", ROM: opts.ROM, RAM: opts.RAM}).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryLayout, err)
	}

	var b strings.Builder
	fmt.Fprintln(&b, "/* Code generated by m68krt. DO NOT EDIT. */")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "MEMORY")
	fmt.Fprintln(&b, "{")
	fmt.Fprintf(&b, "\tROM (rx)  : ORIGIN = 0x%08x, LENGTH = 0x%08x\n", opts.ROM.Origin, opts.ROM.Length)
	fmt.Fprintf(&b, "\tRAM (rwx) : ORIGIN = 0x%08x, LENGTH = 0x%08x\n", opts.RAM.Origin, opts.RAM.Length)
	fmt.Fprintln(&b, "}")
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "ENTRY(%s);\n", rt.ResetSymbol)
	fmt.Fprintf(&b, "EXTERN(%s);\n", rt.ResetSymbol)
	fmt.Fprintf(&b, "EXTERN(%s);\n", rt.DefaultHandlerSymbol)
	fmt.Fprintf(&b, "EXTERN(%s);\n", rt.DefaultPreInitSymbol)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "_ram_start = ORIGIN(RAM);")
	fmt.Fprintln(&b, "_ram_end = ORIGIN(RAM) + LENGTH(RAM);")
	fmt.Fprintf(&b, "PROVIDE(%s = _ram_end);\n", StackSymbol)
	fmt.Fprintln(&b)

	// Device interrupts are aliased by the device fragment when there is
	// one.
	for _, slot := range t.Slots() {
		if slot.Reserved || slot.Vector == rt.VectorReset || (opts.Device && slot.Section == rt.SectionInterrupts) {
			continue
		}
		fmt.Fprintf(&b, "PROVIDE(%s = %s);\n", slot.Symbol, rt.DefaultHandlerSymbol)
	}
	fmt.Fprintf(&b, "PROVIDE(%s = %s);\n", rt.PreInitSymbol, rt.DefaultPreInitSymbol)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "SECTIONS")
	fmt.Fprintln(&b, "{")
	fmt.Fprintln(&b, "\t.vector_table ORIGIN(ROM) :")
	fmt.Fprintln(&b, "\t{")
	for _, section := range []string{rt.SectionReset, rt.SectionExceptions, rt.SectionAutovector, rt.SectionTraps, rt.SectionInterrupts} {
		fmt.Fprintf(&b, "\t\tKEEP(*(%s));\n", section)
	}
	fmt.Fprintln(&b, "\t} > ROM")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "\t.text : ALIGN(4)")
	fmt.Fprintln(&b, "\t{")
	fmt.Fprintln(&b, "\t\t*(.Reset);")
	fmt.Fprintln(&b, "\t\t*(.text .text.*);")
	fmt.Fprintln(&b, "\t} > ROM")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "\t.rodata : ALIGN(4)")
	fmt.Fprintln(&b, "\t{")
	fmt.Fprintln(&b, "\t\t*(.rodata .rodata.*);")
	fmt.Fprintln(&b, "\t\t. = ALIGN(4);")
	fmt.Fprintln(&b, "\t} > ROM")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "\t.data : ALIGN(4)")
	fmt.Fprintln(&b, "\t{")
	fmt.Fprintln(&b, "\t\t_sdata = .;")
	fmt.Fprintln(&b, "\t\t*(.data .data.*);")
	fmt.Fprintln(&b, "\t\t. = ALIGN(4);")
	fmt.Fprintln(&b, "\t\t_edata = .;")
	fmt.Fprintln(&b, "\t} > RAM AT > ROM")
	fmt.Fprintln(&b, "\t_sidata = LOADADDR(.data);")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "\t.bss (NOLOAD) : ALIGN(4)")
	fmt.Fprintln(&b, "\t{")
	fmt.Fprintln(&b, "\t\t_sbss = .;")
	fmt.Fprintln(&b, "\t\t*(.bss .bss.* COMMON);")
	fmt.Fprintln(&b, "\t\t. = ALIGN(4);")
	fmt.Fprintln(&b, "\t\t_ebss = .;")
	fmt.Fprintln(&b, "\t} > RAM")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "\t/DISCARD/ :")
	fmt.Fprintln(&b, "\t{")
	fmt.Fprintln(&b, "\t\t*(.comment .note .note.*);")
	fmt.Fprintln(&b, "\t}")
	fmt.Fprintln(&b, "}")
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "ASSERT(ORIGIN(ROM) == ADDR(.vector_table), \"vector table must start at the origin of ROM\");\n")
	if opts.Policy == rt.Sections {
		fmt.Fprintln(&b, "ASSERT(_ebss <= _stack_start, \".bss overlaps the stack\");")
	}

	if opts.Device {
		// The weak aliases of the device must come after the core ones or
		// the linker prefers them over the handlers of the program.
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "INCLUDE %s\n", DeviceScript)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteDeviceScript writes the weak aliases of the device interrupts
// declared in t.
func WriteDeviceScript(w io.Writer, t *rt.Table) error {
	var b strings.Builder
	fmt.Fprintln(&b, "/* Code generated by m68krt. DO NOT EDIT. */")
	for _, v := range t.Interrupts() {
		fmt.Fprintf(&b, "PROVIDE(%s = %s);\n", v.Name(), rt.DefaultHandlerSymbol)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
