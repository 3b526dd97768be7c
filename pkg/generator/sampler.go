package generator

import (
	"math/rand/v2"
	"strconv"
	"sync"
)

// NumericUpperBound is the exclusive upper bound of numeric string values
const NumericUpperBound = 100000

// Sampler draws the primitive values used in generated documents. One
// Sampler is shared by every builder call of a run and is safe for
// concurrent use.
type Sampler struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	seed int64
}

// NewSampler creates a sampler seeded with seed. A zero seed picks a random
// one; Seed reports the value in use so a run can be reproduced.
func NewSampler(seed int64) *Sampler {
	for seed == 0 {
		seed = rand.Int64()
	}
	return &Sampler{
		rnd:  rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

// Seed returns the seed the sampler was built with
func (s *Sampler) Seed() int64 {
	return s.seed
}

// String returns a string of lowercase ASCII letters whose length is drawn
// uniformly from [minLen, maxLen]. Callers guarantee 0 < minLen <= maxLen.
func (s *Sampler) String(minLen, maxLen int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	length := minLen + s.rnd.IntN(maxLen-minLen+1)
	b := make([]byte, length)
	for i := range b {
		b[i] = 'a' + byte(s.rnd.IntN(26))
	}
	return string(b)
}

// NumericString returns the decimal form of an integer in [0, NumericUpperBound)
func (s *Sampler) NumericString() string {
	s.mu.Lock()
	n := s.rnd.IntN(NumericUpperBound)
	s.mu.Unlock()
	return strconv.Itoa(n)
}

// Boolean returns a fair coin flip
func (s *Sampler) Boolean() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(2) == 1
}
