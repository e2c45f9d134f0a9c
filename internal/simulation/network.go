package simulation

import (
	"fmt"

	"github.com/nvandessel/eigentrust/internal/models"
)

// MaxPeers bounds the size of a generated network.
const MaxPeers = 500

// Preset names a distribution of peer characteristics.
type Preset string

const (
	// PresetRandom draws competence and maliciousness uniformly from [0, 1].
	PresetRandom Preset = "random"
	// PresetUniform gives every peer competence and maliciousness 0.5.
	PresetUniform Preset = "uniform"
	// PresetAdversarial mixes 30% good, 40% neutral and 30% bad peers.
	PresetAdversarial Preset = "adversarial"
)

// Presets lists the accepted preset names.
var Presets = []Preset{PresetRandom, PresetUniform, PresetAdversarial}

// ParsePreset maps a flag or config value to a Preset.
func ParsePreset(s string) (Preset, error) {
	for _, p := range Presets {
		if string(p) == s {
			return p, nil
		}
	}
	return "", &models.Error{
		Kind:    models.KindInvalidParameter,
		Message: fmt.Sprintf("unknown network preset %q (want random, uniform or adversarial)", s),
	}
}

// characteristicRange bounds both competence and maliciousness of a group.
type characteristicRange struct {
	lo, hi float64
}

var (
	goodRange    = characteristicRange{0.0, 0.2}
	neutralRange = characteristicRange{0.4, 0.6}
	badRange     = characteristicRange{0.8, 1.0}
)

// NewNetwork generates count peers following preset. Ids are drawn from
// rng so a seeded generator yields the same network every time.
func NewNetwork(preset Preset, count int, rng *Random) ([]*models.Peer, error) {
	if count < 2 {
		return nil, models.InsufficientPeersError("build a network", count)
	}
	if count > MaxPeers {
		return nil, &models.Error{
			Kind:     models.KindInvalidParameter,
			Message:  fmt.Sprintf("peer count must be at most %d, got %d", MaxPeers, count),
			Expected: MaxPeers,
			Actual:   count,
		}
	}

	ranges := make([]characteristicRange, count)
	switch preset {
	case PresetRandom, "":
		for i := range ranges {
			ranges[i] = characteristicRange{0, 1}
		}
	case PresetUniform:
		for i := range ranges {
			ranges[i] = characteristicRange{0.5, 0.5}
		}
	case PresetAdversarial:
		good := int(float64(count) * 0.3)
		bad := int(float64(count) * 0.3)
		for i := range ranges {
			switch {
			case i < good:
				ranges[i] = goodRange
			case i >= count-bad:
				ranges[i] = badRange
			default:
				ranges[i] = neutralRange
			}
		}
	default:
		if _, err := ParsePreset(string(preset)); err != nil {
			return nil, err
		}
	}

	peers := make([]*models.Peer, 0, count)
	for _, r := range ranges {
		competence := r.draw(rng)
		maliciousness := r.draw(rng)
		p, err := models.NewPeer(rng.NewID(), "", competence, maliciousness)
		if err != nil {
			return nil, fmt.Errorf("generating peer: %w", err)
		}
		peers = append(peers, p)
	}
	return peers, nil
}

func (r characteristicRange) draw(rng *Random) float64 {
	if r.lo == r.hi {
		return r.lo
	}
	return rng.Uniform(r.lo, r.hi)
}
