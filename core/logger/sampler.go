package logger

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets num out of every den events through. A zero ratio lets
// everything through.
type sampler struct {
	ratio atomic.Uint64 // num<<32 | den
	seen  atomic.Uint64
}

func newSampler(num, den int) *sampler {
	s := &sampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the cycle.
func (s *sampler) Set(num, den int) {
	var n, d uint64
	if num > 0 && den > 0 {
		n, d = uint64(num), min(uint64(den), math.MaxUint32)
		n = min(n, d)
	}
	s.ratio.Store(n<<32 | d)
	s.seen.Store(0)
}

// Allow reports whether the next event passes.
func (s *sampler) Allow() bool {
	r := s.ratio.Load()
	num, den := r>>32, r&math.MaxUint32
	if num == 0 || den == 0 {
		return true
	}
	return (s.seen.Add(1)-1)%den < num
}

// parseRatio reads "n/d", or "d" meaning one in d. Anything unparsable or
// non-positive yields 0, 0.
func parseRatio(v string) (int, int) {
	numStr, denStr, found := strings.Cut(strings.TrimSpace(v), "/")
	if !found {
		numStr, denStr = "1", numStr
	}
	num, err := strconv.Atoi(strings.TrimSpace(numStr))
	if err != nil {
		return 0, 0
	}
	den, err := strconv.Atoi(strings.TrimSpace(denStr))
	if err != nil || num <= 0 || den <= 0 {
		return 0, 0
	}
	return num, den
}
