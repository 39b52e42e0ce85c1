package reporter

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor  = lipgloss.Color("#FF6B6B")
	successColor = lipgloss.Color("#4ECDC4")
	warningColor = lipgloss.Color("#FFE66D")
	subtleColor  = lipgloss.Color("#666666")
)

// palette holds the console styles. Without colors every style renders
// its input unchanged.
type palette struct {
	title   lipgloss.Style
	header  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	subtle  lipgloss.Style
	box     lipgloss.Style
}

func newPalette(colors bool) palette {
	if !colors {
		plain := lipgloss.NewStyle()
		return palette{title: plain, header: plain, success: plain, warning: plain, subtle: plain, box: plain}
	}
	return palette{
		title:   lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		success: lipgloss.NewStyle().Foreground(successColor),
		warning: lipgloss.NewStyle().Foreground(warningColor),
		subtle:  lipgloss.NewStyle().Foreground(subtleColor),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(0, 1),
	}
}
