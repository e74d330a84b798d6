package pace

import (
	"fmt"
	"math/rand"
	"time"
)

// JitterRange is an inclusive [Min, Max] bound on the uniform random delay
// added before each scheduled invocation. Min may be zero (no-op jitter)
// but never negative, and Min must not exceed Max.
type JitterRange struct {
	Min time.Duration
	Max time.Duration
}

func NewJitterRange(min, max time.Duration) (JitterRange, error) {
	if min < 0 {
		return JitterRange{}, fmt.Errorf("pace: jitter min must be >= 0, got %v", min)
	}
	if min > max {
		return JitterRange{}, fmt.Errorf("pace: jitter min %v exceeds max %v", min, max)
	}
	return JitterRange{Min: min, Max: max}, nil
}

// draw picks a uniformly distributed duration in [Min, Max], both ends
// inclusive.
func (r JitterRange) draw(rng *rand.Rand) time.Duration {
	span := int64(r.Max - r.Min)
	if span <= 0 {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int63n(span+1))
}
