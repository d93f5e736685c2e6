package backoff

import (
	"testing"
	"time"
)

func TestExponentialDelay(t *testing.T) {
	s := Exponential{}

	tests := []struct {
		name    string
		attempt int
		base    time.Duration
		factor  float64
		want    time.Duration
	}{
		{"first attempt", 1, time.Second, 2.0, time.Second},
		{"second attempt", 2, time.Second, 2.0, 2 * time.Second},
		{"third attempt", 3, time.Second, 2.0, 4 * time.Second},
		{"factor one stays flat", 5, time.Second, 1.0, time.Second},
		{"fractional base", 2, 500 * time.Millisecond, 2.0, time.Second},
		{"attempt below one clamps", 0, time.Second, 2.0, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Delay(tt.attempt, tt.base, tt.factor, false)
			if got != tt.want {
				t.Errorf("Delay(%d, %v, %v) = %v, want %v", tt.attempt, tt.base, tt.factor, got, tt.want)
			}
		})
	}
}

func TestExponentialDelayJitterBounds(t *testing.T) {
	s := Exponential{}
	base := time.Second

	for i := 0; i < 100; i++ {
		delay := s.Delay(2, base, 2.0, true)
		lower := 2 * time.Second
		upper := lower + time.Duration(jitterFraction*float64(lower))
		if delay < lower || delay > upper {
			t.Fatalf("jittered delay %v outside [%v, %v]", delay, lower, upper)
		}
	}
}

func TestExponentialDelayLargeAttemptDoesNotOverflow(t *testing.T) {
	s := Exponential{}
	delay := s.Delay(1000, time.Second, 2.0, false)
	if delay < 0 {
		t.Errorf("delay overflowed to %v", delay)
	}
}

func TestPow(t *testing.T) {
	tests := []struct {
		base     float64
		exponent int
		want     float64
	}{
		{2.0, 0, 1.0},
		{2.0, 1, 2.0},
		{2.0, 3, 8.0},
		{1.5, 2, 2.25},
	}

	for _, tt := range tests {
		if got := Pow(tt.base, tt.exponent); got != tt.want {
			t.Errorf("Pow(%v, %d) = %v, want %v", tt.base, tt.exponent, got, tt.want)
		}
	}
}
