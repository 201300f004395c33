package monitor

import "github.com/charmbracelet/lipgloss"

type styles struct {
	banner     lipgloss.Style
	cpu        lipgloss.Style
	mem        lipgloss.Style
	breakpoint lipgloss.Style
	err        lipgloss.Style
}

// ANSI Color reference
// 0	Black
// 1	Red
// 2	Green
// 3	Yellow
// 4	Blue
// 5	Magenta
// 6	Cyan
// 7	White

func newStyles() styles {
	return styles{
		banner:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(2)),
		cpu:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(4)),
		mem:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(5)),
		breakpoint: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(4)),
		err:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(1)),
	}
}
