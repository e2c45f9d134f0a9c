package visualization

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nvandessel/eigentrust/internal/matrix"
)

// AnnotateThreshold is the largest matrix size whose cells show values.
// Larger matrices render shade glyphs instead.
const AnnotateThreshold = 20

// heatColors is a viridis-like ramp over the xterm 256 palette.
var heatColors = []lipgloss.Color{"17", "24", "30", "36", "71", "113", "149", "185", "227"}

// shades ramps from empty to full for the unannotated view.
var shades = []string{" ", "░", "▒", "▓", "█"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	legendStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
)

// HeatmapOptions controls RenderHeatmap.
type HeatmapOptions struct {
	Title string

	// Annotate forces cell values on or off; nil picks by matrix size.
	Annotate *bool
}

// RenderHeatmap draws the matrix as a terminal heat map. Row i holds the
// trust peer i places in each column peer. Colours are dropped
// automatically when the output is not a colour terminal.
func RenderHeatmap(m *matrix.TrustMatrix, opts HeatmapOptions) string {
	n := m.Size()
	annotate := n <= AnnotateThreshold
	if opts.Annotate != nil {
		annotate = *opts.Annotate
	}
	title := opts.Title
	if title == "" {
		title = fmt.Sprintf("Trust Matrix Heatmap (%d×%d)", n, n)
	}

	cellWidth := 1
	if annotate {
		cellWidth = 5
	}
	labelWidth := len(fmt.Sprint(n-1)) + 1
	cell := lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Right)

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if annotate {
		header := make([]string, 0, n+1)
		header = append(header, labelStyle.Width(labelWidth).Render(""))
		for j := 0; j < n; j++ {
			header = append(header, labelStyle.Width(cellWidth).Align(lipgloss.Right).Render(fmt.Sprint(j)))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...))
		b.WriteString("\n")
	}

	lo, hi := valueRange(m)
	for i := 0; i < n; i++ {
		row := make([]string, 0, n+1)
		row = append(row, labelStyle.Width(labelWidth).Render(fmt.Sprint(i)))
		for j := 0; j < n; j++ {
			v := m.At(i, j)
			level := scale(v, lo, hi)
			text := shades[bucket(level, len(shades))]
			if annotate {
				text = fmt.Sprintf("%.2f", v)
			}
			row = append(row, cell.Background(heatColors[bucket(level, len(heatColors))]).Render(text))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
		b.WriteString("\n")
	}

	b.WriteString(legendStyle.Render(fmt.Sprintf("range %.4f .. %.4f, rows trust columns", lo, hi)))
	b.WriteString("\n")
	return b.String()
}

func valueRange(m *matrix.TrustMatrix) (lo, hi float64) {
	n := m.Size()
	if n == 0 {
		return 0, 0
	}
	lo, hi = m.At(0, 0), m.At(0, 0)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := m.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

func scale(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

func bucket(level float64, size int) int {
	i := int(level * float64(size))
	if i >= size {
		i = size - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
