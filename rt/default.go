package rt

// Default is the table filled in by generated registration code.
var Default = NewTable()

// current is the machine of the running program.
var current Machine

func mustBind(err error) {
	if err != nil {
		panic("rt: " + err.Error())
	}
}

func Bind(name string, h Handler) {
	mustBind(Default.Override(name, h))
}

func BindEntry(h Handler) {
	mustBind(Default.SetEntry(h))
}

func BindPreInit(h Handler) {
	mustBind(Default.SetPreInit(h))
}

func BindTrap(n int, h Handler) {
	mustBind(Default.OverrideTrap(n, h))
}

func BindDefault(h Handler) {
	mustBind(Default.SetDefault(h))
}

func DeclareInterrupt(name string, i Interrupt) {
	mustBind(Default.Declare(name, i.Vector()))
}

func machine() Machine {
	if current == nil {
		panic("rt: no machine is running")
	}
	return current
}

// Trap raises TRAP #n on the running machine.
func Trap(n uint8) {
	machine().Trap(n)
}

func Nop() {
	machine().Nop()
}

func Illegal() {
	machine().Illegal()
}
