// Package matrix holds the dense trust matrix and the operations that
// produce it: building from interactions and column normalization.
package matrix

import (
	"fmt"
	"math"

	"github.com/nvandessel/eigentrust/internal/models"
)

// StochasticTolerance bounds how far a non-zero column sum may drift from
// 1.0 after normalization.
const StochasticTolerance = 1e-6

// TrustMatrix is an N×N non-negative matrix. Entry [i][j] is how much
// peer i trusts peer j. Row and column indices map to peer ids through a
// bijection fixed at construction.
type TrustMatrix struct {
	values     [][]float64
	peerIDs    []string
	index      map[string]int
	normalized bool
}

// New validates values and the peer ordering and returns a matrix that
// owns a copy of both.
func New(values [][]float64, peerIDs []string) (*TrustMatrix, error) {
	n := len(values)
	for i, row := range values {
		if len(row) != n {
			return nil, models.ShapeError(fmt.Sprintf("trust matrix row %d length", i), n, len(row))
		}
	}
	if len(peerIDs) != n {
		return nil, models.ShapeError("peer id mapping size", n, len(peerIDs))
	}
	if err := checkNonNegative(values); err != nil {
		return nil, err
	}

	index := make(map[string]int, n)
	for i, id := range peerIDs {
		if _, dup := index[id]; dup {
			return nil, &models.Error{
				Kind:    models.KindDuplicatePeer,
				Message: fmt.Sprintf("peer %q appears more than once in the mapping", id),
				PeerID:  id,
			}
		}
		index[id] = i
	}

	ids := make([]string, n)
	copy(ids, peerIDs)
	return &TrustMatrix{
		values:  cloneValues(values),
		peerIDs: ids,
		index:   index,
	}, nil
}

// Size returns N.
func (m *TrustMatrix) Size() int { return len(m.values) }

// Normalized reports whether the matrix is known to be column-stochastic.
func (m *TrustMatrix) Normalized() bool { return m.normalized }

// PeerIDs returns the peer ids in index order.
func (m *TrustMatrix) PeerIDs() []string {
	out := make([]string, len(m.peerIDs))
	copy(out, m.peerIDs)
	return out
}

// Index returns the matrix index of peerID.
func (m *TrustMatrix) Index(peerID string) (int, bool) {
	i, ok := m.index[peerID]
	return i, ok
}

// At returns entry [i][j].
func (m *TrustMatrix) At(i, j int) float64 { return m.values[i][j] }

// Get returns the trust that peer from places in peer to.
func (m *TrustMatrix) Get(from, to string) (float64, error) {
	i, j, err := m.indices(from, to)
	if err != nil {
		return 0, err
	}
	return m.values[i][j], nil
}

// Set assigns the trust that from places in to. Any write clears the
// normalized flag.
func (m *TrustMatrix) Set(from, to string, value float64) error {
	if value < 0 || math.IsNaN(value) {
		return &models.Error{
			Kind:     models.KindNegativeEntry,
			Message:  fmt.Sprintf("trust matrix entries must be non-negative, got %g", value),
			PeerID:   from,
			TargetID: to,
			Value:    value,
		}
	}
	i, j, err := m.indices(from, to)
	if err != nil {
		return err
	}
	m.values[i][j] = value
	m.normalized = false
	return nil
}

// Values returns a copy of the raw entries.
func (m *TrustMatrix) Values() [][]float64 { return cloneValues(m.values) }

// NormalizeColumns rewrites the matrix in column-stochastic form and marks
// it normalized.
func (m *TrustMatrix) NormalizeColumns() error {
	out, err := NormalizeColumns(m.values)
	if err != nil {
		return err
	}
	m.values = out
	m.normalized = true
	return nil
}

// ColumnSums returns the sum of each column.
func (m *TrustMatrix) ColumnSums() []float64 {
	return columnSums(m.values)
}

func (m *TrustMatrix) indices(from, to string) (int, int, error) {
	i, ok := m.index[from]
	if !ok {
		return 0, 0, models.OrphanError(from, "trust matrix lookup")
	}
	j, ok := m.index[to]
	if !ok {
		return 0, 0, models.OrphanError(to, "trust matrix lookup")
	}
	return i, j, nil
}

// NormalizeColumns returns a column-stochastic copy of values. Each column
// is divided by its sum; a zero column keeps divisor 1 and stays zero.
func NormalizeColumns(values [][]float64) ([][]float64, error) {
	n := len(values)
	for i, row := range values {
		if len(row) != n {
			return nil, models.ShapeError(fmt.Sprintf("trust matrix row %d length", i), n, len(row))
		}
	}
	if err := checkNonNegative(values); err != nil {
		return nil, err
	}

	sums := columnSums(values)
	out := cloneValues(values)
	for j, s := range sums {
		if s == 0 {
			continue
		}
		for i := range out {
			out[i][j] /= s
		}
	}

	for j, s := range columnSums(out) {
		if s != 0 && math.Abs(s-1.0) > StochasticTolerance {
			return nil, &models.Error{
				Kind:    models.KindInconsistentScores,
				Message: fmt.Sprintf("column %d sums to %.9f after normalization", j, s),
				Value:   s,
			}
		}
	}
	return out, nil
}

// IsColumnStochastic reports whether every non-zero column sums to 1.
func IsColumnStochastic(values [][]float64) bool {
	for _, s := range columnSums(values) {
		if s != 0 && math.Abs(s-1.0) > StochasticTolerance {
			return false
		}
	}
	return true
}

func checkNonNegative(values [][]float64) error {
	for i, row := range values {
		for j, v := range row {
			if v < 0 || math.IsNaN(v) {
				return &models.Error{
					Kind:    models.KindNegativeEntry,
					Message: fmt.Sprintf("entry [%d][%d] must be non-negative, got %g", i, j, v),
					Value:   v,
				}
			}
		}
	}
	return nil
}

func columnSums(values [][]float64) []float64 {
	sums := make([]float64, len(values))
	for _, row := range values {
		for j, v := range row {
			sums[j] += v
		}
	}
	return sums
}

func cloneValues(values [][]float64) [][]float64 {
	out := make([][]float64, len(values))
	for i, row := range values {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}
	return out
}
