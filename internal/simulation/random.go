package simulation

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Random is an explicit, seedable source of randomness. Every stochastic
// step of a simulation draws from one of these; nothing uses global
// random state. Not safe for concurrent use.
type Random struct {
	src *rand.ChaCha8
	rng *rand.Rand
}

// NewRandom returns a generator whose stream is fully determined by seed.
func NewRandom(seed int64) *Random {
	return NewStreamRandom(seed, 0)
}

// NewStreamRandom returns generator number stream for seed. Distinct
// streams of one seed share no output; stream 0 is NewRandom(seed).
func NewStreamRandom(seed int64, stream uint64) *Random {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], uint64(seed))
	binary.LittleEndian.PutUint64(key[8:16], stream)
	src := rand.NewChaCha8(key)
	return &Random{src: src, rng: rand.New(src)}
}

// NewUnseededRandom returns a generator seeded from the runtime's entropy
// and the seed it picked.
func NewUnseededRandom() (*Random, int64) {
	seed := rand.Int64()
	return NewRandom(seed), seed
}

// Float64 returns a uniform value in [0, 1).
func (r *Random) Float64() float64 { return r.rng.Float64() }

// IntN returns a uniform value in [0, n).
func (r *Random) IntN(n int) int { return r.rng.IntN(n) }

// NormFloat64 returns a standard normal value.
func (r *Random) NormFloat64() float64 { return r.rng.NormFloat64() }

// Uniform returns a value in [lo, hi).
func (r *Random) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*r.rng.Float64()
}

// Read fills p from the generator's stream. It lets a Random stand in as
// the entropy source for uuid generation.
func (r *Random) Read(p []byte) (int, error) { return r.src.Read(p) }

// NewID draws a version 4 UUID from the generator.
func (r *Random) NewID() string {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		// ChaCha8.Read never fails.
		panic(err)
	}
	return id.String()
}
