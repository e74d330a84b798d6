package pace

import (
	"math"
	"slices"
	"time"
)

// Collector accumulates duration samples and answers min/max/mean/median
// queries. Extrema are maintained incrementally on Insert; Average and
// Median are computed on demand. The zero value is not usable; construct
// with NewCollector.
//
// A Collector is not safe for concurrent use. The pacer feeds its internal
// collector from the run loop only, and callers read it after the run has
// exited.
type Collector struct {
	samples  []time.Duration
	smallest time.Duration
	largest  time.Duration
}

func NewCollector() *Collector {
	return &Collector{
		smallest: time.Duration(math.MaxInt64),
		largest:  time.Duration(math.MinInt64),
	}
}

// Insert appends a sample and updates the running extrema. Any value is
// accepted, including zero and negative durations; a negative duration is
// a caller bug, not something the collector validates.
func (c *Collector) Insert(d time.Duration) {
	c.samples = append(c.samples, d)
	if d < c.smallest {
		c.smallest = d
	}
	if d > c.largest {
		c.largest = d
	}
}

func (c *Collector) Count() int { return len(c.samples) }

// Smallest returns the minimum inserted sample, or ErrNoSamples if the
// collector is empty.
func (c *Collector) Smallest() (time.Duration, error) {
	if len(c.samples) == 0 {
		return 0, ErrNoSamples
	}
	return c.smallest, nil
}

// Largest returns the maximum inserted sample, or ErrNoSamples if the
// collector is empty.
func (c *Collector) Largest() (time.Duration, error) {
	if len(c.samples) == 0 {
		return 0, ErrNoSamples
	}
	return c.largest, nil
}

// Average returns the arithmetic mean of all samples. Integer division,
// truncated toward zero.
func (c *Collector) Average() (time.Duration, error) {
	if len(c.samples) == 0 {
		return 0, ErrNoSamples
	}
	var sum time.Duration
	for _, d := range c.samples {
		sum += d
	}
	return sum / time.Duration(len(c.samples)), nil
}

// Median sorts a copy of the samples ascending and returns the element at
// index count/2. For even counts that is the upper-middle element, not the
// average of the two middles. Insertion order visible to later Inserts is
// not disturbed.
func (c *Collector) Median() (time.Duration, error) {
	if len(c.samples) == 0 {
		return 0, ErrNoSamples
	}
	cp := slices.Clone(c.samples)
	slices.Sort(cp)
	return cp[len(cp)/2], nil
}

// Stats is a point-in-time summary of a Collector.
type Stats struct {
	Count    int
	Smallest time.Duration
	Largest  time.Duration
	Average  time.Duration
	Median   time.Duration
}

// Stats summarizes the collector, or returns ErrNoSamples when empty.
func (c *Collector) Stats() (Stats, error) {
	if len(c.samples) == 0 {
		return Stats{}, ErrNoSamples
	}
	avg, _ := c.Average()
	med, _ := c.Median()
	return Stats{
		Count:    len(c.samples),
		Smallest: c.smallest,
		Largest:  c.largest,
		Average:  avg,
		Median:   med,
	}, nil
}
