package randutil

import (
	rand "math/rand/v2"
	"sync"
	"time"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// All call sites derive the two PCG seeds the same way so a seed reproduces
// the same shuffles everywhere.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Seed returns seed when non-nil, otherwise a time based seed.
func Seed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return time.Now().UnixNano()
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Source hands out independent generators derived from one root seed. Each
// table gets its own generator so tables never share RNG state.
type Source struct {
	mu   sync.Mutex
	root *rand.Rand
}

// NewSource creates a Source rooted at seed.
func NewSource(seed int64) *Source {
	return &Source{root: New(seed)}
}

// Derive returns a new generator seeded from the root stream.
func (s *Source) Derive() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return New(s.root.Int64())
}
