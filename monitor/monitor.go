// Package monitor implements the interactive debug console.
//
// The emulator suspends the guest, between instructions, when the
// escape character is typed or a breakpoint is hit, and hands control
// here.  The monitor can show registers, examine and deposit memory,
// manage breakpoints, and resume or end execution.  The guest's own
// state is untouched until the user deposits into it.
package monitor

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/koron-go/z80"

	"github.com/skx/romulator/consolein"
	"github.com/skx/romulator/memory"
)

// Monitor holds the pieces of the emulator we are allowed to poke.
type Monitor struct {

	// CPU is the guest processor; not owned.
	CPU *z80.CPU

	// Mem is the banked memory; not owned.
	Mem *memory.Memory

	// In reads the operator's commands.
	In *consolein.ConsoleIn

	// Out is where our prompts and reports go.
	Out io.Writer

	// AddBreak, DelBreak and Breaks manage the emulator's
	// breakpoint set.
	AddBreak func(addr uint16)
	DelBreak func(addr uint16)
	Breaks   func() []uint16

	// styles colour our output.
	styles styles
}

// New returns a monitor over the given emulator pieces.
func New(cpu *z80.CPU, mem *memory.Memory, in *consolein.ConsoleIn, out io.Writer) *Monitor {
	return &Monitor{
		CPU:    cpu,
		Mem:    mem,
		In:     in,
		Out:    out,
		styles: newStyles(),
	}
}

// Interact runs the monitor until the user resumes or quits; the
// return is false when the emulator should terminate.
func (m *Monitor) Interact() bool {

	fmt.Fprintf(m.Out, "\r\n%s\r\n", m.styles.banner.Render(" monitor "))
	m.showRegisters()

	for {
		fmt.Fprintf(m.Out, "> ")
		line, err := m.readLine()
		if err != nil {
			return true
		}

		args := strings.Fields(strings.ToLower(line))
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "c", "continue", "go":
			return true

		case "q", "quit", "exit":
			return false

		case "r", "regs":
			m.showRegisters()

		case "x", "examine":
			m.examine(args[1:])

		case "d", "deposit":
			m.deposit(args[1:])

		case "b", "break":
			m.breakCmd(args[1:])

		case "del":
			m.deleteCmd(args[1:])

		case "bank":
			m.bankCmd(args[1:])

		case "h", "help", "?":
			m.help()

		default:
			fmt.Fprintf(m.Out, "%s\r\n",
				m.styles.err.Render(fmt.Sprintf("unknown command '%s', try help", args[0])))
		}
	}
}

// readLine collects a command line, echoing as we go; the console
// driver is in raw mode so we do our own line discipline.
func (m *Monitor) readLine() (string, error) {
	var sb strings.Builder

	for {
		c, err := m.In.BlockForChar()
		if err != nil {
			return "", err
		}

		switch c {
		case '\r', '\n':
			fmt.Fprintf(m.Out, "\r\n")
			return sb.String(), nil

		case 0x7F, 0x08:
			s := sb.String()
			if len(s) > 0 {
				sb.Reset()
				sb.WriteString(s[:len(s)-1])
				fmt.Fprintf(m.Out, "\x08 \x08")
			}

		default:
			if c >= ' ' && c < 0x7F {
				sb.WriteByte(c)
				fmt.Fprintf(m.Out, "%c", c)
			}
		}
	}
}

// showRegisters dumps the guest CPU state.
func (m *Monitor) showRegisters() {
	s := m.CPU.States

	line1 := fmt.Sprintf(" AF=%04X BC=%04X DE=%04X HL=%04X",
		s.AF.U16(), s.BC.U16(), s.DE.U16(), s.HL.U16())
	line2 := fmt.Sprintf(" PC=%04X SP=%04X IX=%04X IY=%04X bank=%02X",
		s.SPR.PC, s.SPR.SP, s.SPR.IX, s.SPR.IY, m.Mem.CurrentBank())

	fmt.Fprintf(m.Out, "%s\r\n%s\r\n",
		m.styles.cpu.Render(line1),
		m.styles.cpu.Render(line2))
}

// examine dumps memory: "x ADDR [COUNT]".
func (m *Monitor) examine(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(m.Out, "%s\r\n", m.styles.err.Render("usage: x ADDR [COUNT]"))
		return
	}

	addr, ok := m.parseAddr(args[0])
	if !ok {
		return
	}

	count := 64
	if len(args) > 1 {
		if n, err := strconv.ParseUint(args[1], 0, 16); err == nil {
			count = int(n)
		}
	}

	for count > 0 {
		row := fmt.Sprintf(" %04X:", addr)
		text := ""
		for i := 0; i < 16 && count > 0; i++ {
			b := m.Mem.Get(addr)
			row += fmt.Sprintf(" %02X", b)
			if b >= ' ' && b < 0x7F {
				text += string(rune(b))
			} else {
				text += "."
			}
			addr++
			count--
		}
		fmt.Fprintf(m.Out, "%s  %s\r\n", m.styles.mem.Render(row), text)
	}
}

// deposit stores bytes: "d ADDR VAL [VAL...]".
func (m *Monitor) deposit(args []string) {
	if len(args) < 2 {
		fmt.Fprintf(m.Out, "%s\r\n", m.styles.err.Render("usage: d ADDR VAL [VAL..]"))
		return
	}

	addr, ok := m.parseAddr(args[0])
	if !ok {
		return
	}

	for _, arg := range args[1:] {
		v, err := strconv.ParseUint(arg, 16, 8)
		if err != nil {
			fmt.Fprintf(m.Out, "%s\r\n",
				m.styles.err.Render(fmt.Sprintf("bad value '%s'", arg)))
			return
		}
		m.Mem.Set(addr, uint8(v))
		addr++
	}
}

// breakCmd lists breakpoints, or adds one: "b [ADDR]".
func (m *Monitor) breakCmd(args []string) {
	if len(args) == 0 {
		for _, a := range m.Breaks() {
			fmt.Fprintf(m.Out, "%s\r\n",
				m.styles.breakpoint.Render(fmt.Sprintf(" break 0x%04X ", a)))
		}
		return
	}

	addr, ok := m.parseAddr(args[0])
	if !ok {
		return
	}
	if m.AddBreak != nil {
		m.AddBreak(addr)
	}
}

// deleteCmd removes a breakpoint: "del ADDR".
func (m *Monitor) deleteCmd(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(m.Out, "%s\r\n", m.styles.err.Render("usage: del ADDR"))
		return
	}

	addr, ok := m.parseAddr(args[0])
	if !ok {
		return
	}
	if m.DelBreak != nil {
		m.DelBreak(addr)
	}
}

// bankCmd shows or selects the current bank: "bank [ID]".
func (m *Monitor) bankCmd(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(m.Out, " bank=%02X\r\n", m.Mem.CurrentBank())
		return
	}

	v, err := strconv.ParseUint(args[0], 16, 8)
	if err != nil {
		fmt.Fprintf(m.Out, "%s\r\n",
			m.styles.err.Render(fmt.Sprintf("bad bank '%s'", args[0])))
		return
	}
	m.Mem.SelectBank(uint8(v))
}

// parseAddr reads a hex address.
func (m *Monitor) parseAddr(s string) (uint16, bool) {
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		fmt.Fprintf(m.Out, "%s\r\n",
			m.styles.err.Render(fmt.Sprintf("bad address '%s'", s)))
		return 0, false
	}
	return uint16(v), true
}

// help lists the commands.
func (m *Monitor) help() {
	fmt.Fprintf(m.Out, "  r            show registers\r\n")
	fmt.Fprintf(m.Out, "  x ADDR [N]   examine memory\r\n")
	fmt.Fprintf(m.Out, "  d ADDR V..   deposit bytes\r\n")
	fmt.Fprintf(m.Out, "  b [ADDR]     list/add breakpoints\r\n")
	fmt.Fprintf(m.Out, "  del ADDR     delete breakpoint\r\n")
	fmt.Fprintf(m.Out, "  bank [ID]    show/select bank\r\n")
	fmt.Fprintf(m.Out, "  c            continue\r\n")
	fmt.Fprintf(m.Out, "  q            quit the emulator\r\n")
}
