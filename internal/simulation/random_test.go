package simulation

import "testing"

func TestRandom_SameSeedSameStream(t *testing.T) {
	a := NewRandom(42)
	b := NewRandom(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
	}
	if a.NewID() != b.NewID() {
		t.Error("ids drawn from equal streams differ")
	}
}

func TestRandom_DifferentSeeds(t *testing.T) {
	a := NewRandom(1)
	b := NewRandom(2)
	same := 0
	for i := 0; i < 20; i++ {
		if a.IntN(1000) == b.IntN(1000) {
			same++
		}
	}
	if same == 20 {
		t.Error("different seeds produced identical streams")
	}
}

func TestRandom_Uniform(t *testing.T) {
	r := NewRandom(7)
	for i := 0; i < 1000; i++ {
		v := r.Uniform(0.4, 0.6)
		if v < 0.4 || v >= 0.6 {
			t.Fatalf("Uniform(0.4, 0.6) = %v", v)
		}
	}
}

func TestRandom_NewIDIsUUID(t *testing.T) {
	id := NewRandom(3).NewID()
	if len(id) != 36 || id[14] != '4' {
		t.Errorf("NewID() = %q, want a version 4 UUID", id)
	}
}

func TestNewStreamRandom(t *testing.T) {
	base := NewRandom(42)
	zero := NewStreamRandom(42, 0)
	if base.NewID() != zero.NewID() {
		t.Error("stream 0 should equal NewRandom")
	}
	if NewRandom(42).NewID() == NewStreamRandom(42, 1).NewID() {
		t.Error("stream 1 replays stream 0")
	}
	if NewStreamRandom(42, 1).NewID() != NewStreamRandom(42, 1).NewID() {
		t.Error("equal streams differ")
	}
}
