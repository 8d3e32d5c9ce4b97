package cosmos

// xorshift64* generator. Its state is part of significant state.
type rng struct {
	state uint64
}

func seedRNG(seed uint64) rng {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return rng{state: seed}
}

func (r *rng) next() uint64 {
	x := r.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	r.state = x
	return x * 0x2545F4914F6CDD1D
}

// unit returns a value in [0, 1) built from the top 53 bits.
func (r *rng) unit() float64 {
	return float64(r.next()>>11) / (1 << 53)
}
