package pace

import (
	"math/rand"
	"testing"
	"time"
)

func TestNewJitterRangeValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		min, max time.Duration
		wantErr  bool
	}{
		{name: "valid", min: 100 * time.Microsecond, max: 500 * time.Microsecond},
		{name: "zero min", min: 0, max: time.Millisecond},
		{name: "degenerate", min: time.Millisecond, max: time.Millisecond},
		{name: "zero both", min: 0, max: 0},
		{name: "negative min", min: -time.Microsecond, max: time.Millisecond, wantErr: true},
		{name: "min above max", min: time.Millisecond, max: time.Microsecond, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJitterRange(tt.min, tt.max)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewJitterRange(%v, %v) error = %v, wantErr %v", tt.min, tt.max, err, tt.wantErr)
			}
		})
	}
}

func TestDrawWithinBounds(t *testing.T) {
	t.Parallel()
	jr, err := NewJitterRange(100*time.Microsecond, 500*time.Microsecond)
	if err != nil {
		t.Fatalf("NewJitterRange: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		d := jr.draw(rng)
		if d < jr.Min || d > jr.Max {
			t.Fatalf("draw %d = %v outside [%v, %v]", i, d, jr.Min, jr.Max)
		}
	}
}

func TestDrawInclusiveBounds(t *testing.T) {
	t.Parallel()
	// A tiny range must produce both endpoints within a reasonable number
	// of draws; proves the distribution is inclusive on both ends.
	jr, err := NewJitterRange(0, 3)
	if err != nil {
		t.Fatalf("NewJitterRange: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	var sawMin, sawMax bool
	for i := 0; i < 10000 && !(sawMin && sawMax); i++ {
		switch jr.draw(rng) {
		case jr.Min:
			sawMin = true
		case jr.Max:
			sawMax = true
		}
	}
	if !sawMin || !sawMax {
		t.Fatalf("10000 draws never produced both endpoints (min=%v max=%v)", sawMin, sawMax)
	}
}

func TestDrawDegenerateRange(t *testing.T) {
	t.Parallel()
	jr, err := NewJitterRange(time.Millisecond, time.Millisecond)
	if err != nil {
		t.Fatalf("NewJitterRange: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if d := jr.draw(rng); d != time.Millisecond {
			t.Fatalf("draw = %v, want %v", d, time.Millisecond)
		}
	}
}
