//go:build m68k

package critical

import "omibyte.io/m68krt/interrupt"

func init() {
	SetImpl(NewSingleCore(interrupt.CPU))
}
