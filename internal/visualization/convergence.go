package visualization

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nvandessel/eigentrust/internal/models"
)

// DefaultTopN is the number of peers followed across iterations.
const DefaultTopN = 5

// ErrNoHistory is returned when a convergence view is requested for a run
// that did not record history.
var ErrNoHistory = errors.New("no convergence history recorded; rerun with history tracking enabled")

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	convergedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// TopPeers returns the ids of the n highest-scoring peers in the final
// snapshot, highest first.
func TopPeers(history []models.ConvergenceSnapshot, n int) []string {
	if len(history) == 0 {
		return nil
	}
	ranked := models.RankScores(history[len(history)-1].Scores())
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.PeerID
	}
	return ids
}

// WriteConvergenceCSV writes one row per iteration: the iteration, the
// delta and the scores of the top-n peers.
func WriteConvergenceCSV(w io.Writer, history []models.ConvergenceSnapshot, topN int) error {
	if len(history) == 0 {
		return ErrNoHistory
	}
	peers := TopPeers(history, topN)

	cw := csv.NewWriter(w)
	header := append([]string{"iteration", "delta"}, peers...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, snap := range history {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(snap.Iteration()), strconv.FormatFloat(snap.Delta(), 'g', -1, 64))
		for _, id := range peers {
			v, _ := snap.Score(id)
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", snap.Iteration(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderConvergenceTable renders the history as an aligned text table.
// Rows whose delta is below epsilon are highlighted; epsilon <= 0
// disables highlighting.
func RenderConvergenceTable(history []models.ConvergenceSnapshot, topN int, epsilon float64) (string, error) {
	if len(history) == 0 {
		return "", ErrNoHistory
	}
	peers := TopPeers(history, topN)

	const colWidth = 12
	col := lipgloss.NewStyle().Width(colWidth).Align(lipgloss.Right)

	var b strings.Builder
	header := []string{col.Render("iteration"), col.Render("delta")}
	for _, id := range peers {
		header = append(header, col.Render(truncate(id, colWidth-1)))
	}
	b.WriteString(headerStyle.Render(strings.Join(header, "")))
	b.WriteString("\n")

	for _, snap := range history {
		cells := []string{
			col.Render(strconv.Itoa(snap.Iteration())),
			col.Render(fmt.Sprintf("%.6f", snap.Delta())),
		}
		for _, id := range peers {
			v, _ := snap.Score(id)
			cells = append(cells, col.Render(fmt.Sprintf("%.6f", v)))
		}
		line := strings.Join(cells, "")
		if epsilon > 0 && snap.Delta() < epsilon {
			line = convergedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), nil
}
