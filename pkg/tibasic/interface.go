package tibasic

// Screen is the display sink the interpreter writes to.
type Screen interface {
	Display(v Value)
	Output(row, col int, v Value)
	Clear()
}

// Menu is the selection widget a Menu statement drives. The interpreter
// writes the options once and reads the selection back on the next step.
type Menu interface {
	SetTitleAndOptions(title string, options []string)
	CurrentIndex() int
}
