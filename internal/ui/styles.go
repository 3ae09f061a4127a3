package ui

import "github.com/charmbracelet/lipgloss"

// Palette names the ANSI-256 colors used by the terminal views.
type Palette struct {
	Accent    string
	AccentDim string
	Muted     string
	Faint     string
	Bad       string
	Caution   string
}

// DefaultPalette is lime on grays.
var DefaultPalette = Palette{
	Accent:    "154",
	AccentDim: "106",
	Muted:     "245",
	Faint:     "238",
	Bad:       "196",
	Caution:   "220",
}

// Styles are the rendered text styles for the load view and status report.
// The zero palette means no color.
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
	Active    lipgloss.Style
	Label     lipgloss.Style
	Border    lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style

	palette Palette
}

// NewStyles derives styles from p. Empty colors are left unset.
func NewStyles(p Palette) Styles {
	fg := func(color string) lipgloss.Style {
		s := lipgloss.NewStyle()
		if color != "" {
			s = s.Foreground(lipgloss.Color(color))
		}
		return s
	}
	colored := p != Palette{}

	return Styles{
		Header:    fg(p.Accent).Bold(colored),
		Success:   fg(p.Accent),
		Warning:   fg(p.Caution),
		Error:     fg(p.Bad),
		Dim:       fg(p.Faint),
		Active:    fg(p.Accent).Bold(colored),
		Label:     fg(p.Muted),
		Border:    fg(p.Faint),
		Sparkline: fg(p.AccentDim),
		Speed:     fg(p.Muted),
		palette:   p,
	}
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return NewStyles(DefaultPalette)
}

// NoColorStyles returns styles that render text untouched.
func NoColorStyles() Styles {
	return NewStyles(Palette{})
}

// GetStyles picks colored or plain styles.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// Panel returns a rounded box of the given width. Highlighted panels use
// the accent for their border.
func (s Styles) Panel(width int, highlight bool, padY, padX int) lipgloss.Style {
	border := s.palette.Faint
	if highlight {
		border = s.palette.Accent
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(padY, padX).
		Width(width)
	if border != "" {
		panel = panel.BorderForeground(lipgloss.Color(border))
	}
	return panel
}
