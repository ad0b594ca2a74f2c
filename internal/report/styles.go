package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the palette for one output stream. Colors degrade to plain
// text when the writer is not a terminal.
type styles struct {
	header    lipgloss.Style
	repo      lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
	dim       lipgloss.Style
	highlight lipgloss.Style
	warning   lipgloss.Style
	err       lipgloss.Style
	sparkline lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true),
		repo: r.NewStyle().
			Foreground(lipgloss.Color("167")).
			Bold(true),
		label: r.NewStyle().
			Foreground(lipgloss.Color("45")),
		value: r.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("245")),
		highlight: r.NewStyle().
			Foreground(lipgloss.Color("105")).
			Bold(true),
		warning: r.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true),
		err: r.NewStyle().
			Foreground(lipgloss.Color("196")),
		sparkline: r.NewStyle().
			Foreground(lipgloss.Color("51")),
	}
}
