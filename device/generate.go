package device

import (
	"fmt"
	"go/format"
	"io"
	"strings"

	"omibyte.io/m68krt/rt"
	"omibyte.io/m68krt/transform"
)

// WriteGo writes the Go package declaring the interrupts of d. Handlers in
// other packages refer to these declarations, which ties a handler to the
// package that makes its vector known to the runtime.
func WriteGo(w io.Writer, d *Device) error {
	var b strings.Builder

	fmt.Fprintf(&b, "// Code generated by m68krt from the %s device description. DO NOT EDIT.\n\n", d.Name)
	if d.Description != "" {
		fmt.Fprintf(&b, "// Package %s declares the interrupts of the %s.\n", d.PackageName(), d.Description)
	}
	fmt.Fprintf(&b, "package %s\n\n", d.PackageName())
	fmt.Fprintf(&b, "import %q\n\n", transform.RuntimePath)

	if len(d.Peripherals) > 0 {
		fmt.Fprintln(&b, "// Peripheral base addresses.")
		fmt.Fprintln(&b, "const (")
		for _, p := range d.Peripherals {
			if p.Description != "" {
				fmt.Fprintf(&b, "// %s\n", p.Description)
			}
			fmt.Fprintf(&b, "%sBase uintptr = %#x\n", p.Name, p.BaseAddress)
		}
		fmt.Fprintln(&b, ")")
		fmt.Fprintln(&b)
	}

	if len(d.Interrupts) > 0 {
		fmt.Fprintln(&b, "const (")
		for _, irq := range d.Interrupts {
			if irq.Description != "" {
				fmt.Fprintf(&b, "// %s\n", irq.Description)
			}
			fmt.Fprintf(&b, "%s rt.Interrupt = %d // %s\n", irq.Name, irq.Vector, where(irq))
		}
		fmt.Fprintln(&b, ")")
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "func init() {")
	for _, irq := range d.Interrupts {
		fmt.Fprintf(&b, "rt.DeclareInterrupt(%q, %s)\n", irq.Name, irq.Name)
	}
	fmt.Fprintln(&b, "}")

	src, err := format.Source([]byte(b.String()))
	if err != nil {
		return fmt.Errorf("error formatting device package %s: %v", d.Name, err)
	}
	_, err = w.Write(src)
	return err
}

func where(irq Interrupt) string {
	switch {
	case irq.Vector == rt.VectorSpurious:
		return "spurious interrupt"
	case irq.Vector < rt.VectorTrap:
		return fmt.Sprintf("level %d autovector", irq.Vector-rt.VectorAutovector)
	case irq.Level > 0:
		return fmt.Sprintf("user interrupt %d, level %d", irq.Vector-rt.VectorUser, irq.Level)
	}
	return fmt.Sprintf("user interrupt %d", irq.Vector-rt.VectorUser)
}
