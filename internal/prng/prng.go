// Package prng is the seeded random stream shared by the server and the browser
// client. Both sides regenerate round content from the broadcast seed, so the
// sequence must stay bit-identical to the client's sin-based generator. The sine
// is a port of the fdlibm routine browsers use rather than math.Sin.
package prng

import "math"

// Rand is not safe for concurrent use. Each game-mode instance owns its own.
type Rand struct {
	Seed int64
}

func New(seed int64) *Rand {
	return &Rand{Seed: seed}
}

// Next returns a float in [0,1) and advances the seed by one.
func (r *Rand) Next() float64 {
	x := float64(sin(float64(r.Seed)) * 10000)
	r.Seed++
	return x - math.Floor(x)
}

// Intn returns floor(Next() * n), clamped to [0,n).
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	j := int(math.Floor(r.Next() * float64(n)))
	if j >= n {
		j = n - 1
	}
	return j
}

// Shuffle performs a Fisher-Yates pass from the last index down to 1,
// drawing exactly n-1 values.
func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, r.Intn(i+1))
	}
}
