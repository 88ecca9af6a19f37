// Package handlers runs on the simulated machine once its handlers are
// transformed.
package handlers

// Set before reset.
var (
	Raise func()
	Halt  func()
	Log   []int
)

var traps int

//m68k:entry
func run() {
	var rounds int = 1
	for {
		Raise()
		Syscall()
		if rounds == 3 {
			Halt()
		}
		rounds++
	}
}

//m68k:interrupt
func ZeroDivide() {
	var count int = 100
	var seen [2]int
	count++
	seen[0], seen[1] = seen[1], count
	Log = append(Log, seen[0])
}

//m68k:trap num=3
func Syscall() {
	traps++
	Log = append(Log, -traps)
}
