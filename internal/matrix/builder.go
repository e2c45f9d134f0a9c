package matrix

import (
	"fmt"

	"github.com/nvandessel/eigentrust/internal/models"
)

// Fallback selects what a peer's row becomes when it interacted with
// others but every interaction failed.
type Fallback string

const (
	// FallbackInteracted spreads trust uniformly over the peers it
	// interacted with.
	FallbackInteracted Fallback = "interacted"
	// FallbackColdStart treats the peer as if it had no interactions.
	FallbackColdStart Fallback = "cold_start"
)

// ParseFallback maps a config string to a Fallback. Empty selects
// FallbackInteracted.
func ParseFallback(s string) (Fallback, error) {
	switch Fallback(s) {
	case "", FallbackInteracted:
		return FallbackInteracted, nil
	case FallbackColdStart:
		return FallbackColdStart, nil
	default:
		return "", &models.Error{
			Kind:    models.KindInvalidParameter,
			Message: fmt.Sprintf("unknown zero-trust fallback %q (want %q or %q)", s, FallbackInteracted, FallbackColdStart),
		}
	}
}

// BuildOptions tunes Build.
type BuildOptions struct {
	Fallback Fallback
}

// tally counts outcomes between one source and one target.
type tally struct {
	successes int
	failures  int
}

func (t tally) rate() float64 {
	total := t.successes + t.failures
	if total == 0 {
		return 0
	}
	return float64(t.successes) / float64(total)
}

// Build derives a raw (not yet normalized) trust matrix. Peer order
// defines the matrix indices.
//
// Row i comes from peer i's explicit local trust when any of it is
// positive.
// Otherwise it is the per-target success rate of the interactions i
// initiated, normalized to sum to 1. A peer without interactions trusts
// every other peer equally (cold start).
func Build(peers []*models.Peer, interactions []models.Interaction, opts BuildOptions) (*TrustMatrix, error) {
	n := len(peers)
	ids := make([]string, n)
	for i, p := range peers {
		ids[i] = p.ID
	}

	m, err := New(zeroValues(n), ids)
	if err != nil {
		return nil, err
	}

	// Tallies are keyed by source index, then target index, in
	// first-seen order so rows are deterministic.
	tallies := make([]map[int]*tally, n)
	order := make([][]int, n)
	for _, in := range interactions {
		src, ok := m.index[in.Source()]
		if !ok {
			return nil, models.OrphanError(in.Source(), fmt.Sprintf("interaction %s source", in.ID()))
		}
		dst, ok := m.index[in.Target()]
		if !ok {
			return nil, models.OrphanError(in.Target(), fmt.Sprintf("interaction %s target", in.ID()))
		}
		if tallies[src] == nil {
			tallies[src] = make(map[int]*tally)
		}
		t, seen := tallies[src][dst]
		if !seen {
			t = &tally{}
			tallies[src][dst] = t
			order[src] = append(order[src], dst)
		}
		if in.Succeeded() {
			t.successes++
		} else {
			t.failures++
		}
	}

	for i, p := range peers {
		row := m.values[i]
		if p.HasLocalTrust() {
			ok, err := fillLocalTrust(row, p, m.index)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}
			// All-zero local trust says nothing; derive the row instead.
			clear(row)
		}
		if len(order[i]) == 0 {
			coldStart(row, i)
			continue
		}
		total := 0.0
		for _, j := range order[i] {
			row[j] = tallies[i][j].rate()
			total += row[j]
		}
		if total > 0 {
			for _, j := range order[i] {
				row[j] /= total
			}
			continue
		}
		if opts.Fallback == FallbackColdStart {
			coldStart(row, i)
			continue
		}
		w := 1.0 / float64(len(order[i]))
		for _, j := range order[i] {
			row[j] = w
		}
	}
	return m, nil
}

// fillLocalTrust copies p's explicit local trust into row. It reports
// false when every value is zero.
func fillLocalTrust(row []float64, p *models.Peer, index map[string]int) (bool, error) {
	total := 0.0
	for partner, v := range p.LocalTrust {
		j, ok := index[partner]
		if !ok {
			return false, models.OrphanError(partner, fmt.Sprintf("local trust of peer %s", p.ID))
		}
		switch {
		case partner == p.ID:
			return false, &models.Error{
				Kind:     models.KindSelfInteraction,
				Message:  fmt.Sprintf("peer %s holds local trust in itself", p.ID),
				PeerID:   p.ID,
				TargetID: partner,
			}
		case v < 0:
			return false, &models.Error{
				Kind:     models.KindNegativeEntry,
				Message:  fmt.Sprintf("local trust of peer %s in %s is negative: %g", p.ID, partner, v),
				PeerID:   p.ID,
				TargetID: partner,
				Value:    v,
			}
		case v > 1:
			return false, &models.Error{
				Kind:     models.KindInvalidTrustValue,
				Message:  fmt.Sprintf("local trust of peer %s in %s exceeds 1: %g", p.ID, partner, v),
				PeerID:   p.ID,
				TargetID: partner,
				Value:    v,
			}
		}
		row[j] = v
		total += v
	}
	return total > 0, nil
}

// coldStart fills row with 1/(N-1) for every peer except self.
func coldStart(row []float64, self int) {
	if len(row) < 2 {
		return
	}
	w := 1.0 / float64(len(row)-1)
	for j := range row {
		if j != self {
			row[j] = w
		}
	}
}

func zeroValues(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	return out
}
