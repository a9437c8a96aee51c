package store

import (
	"testing"
	"time"
)

func TestNextBackoff(t *testing.T) {
	base := 30 * time.Second
	cap_ := time.Hour

	tests := []struct {
		name       string
		retryCount int
		want       time.Duration
	}{
		{"first retry equals base", 1, 30 * time.Second},
		{"second retry doubles", 2, 60 * time.Second},
		{"third retry quadruples", 3, 120 * time.Second},
		{"clamps below one treated as one", 0, 30 * time.Second},
		{"eventually caps", 20, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextBackoff(tt.retryCount, base, cap_)
			if got != tt.want {
				t.Errorf("NextBackoff(%d) = %v, want %v", tt.retryCount, got, tt.want)
			}
		})
	}
}

func TestNextBackoff_NeverExceedsCap(t *testing.T) {
	base := time.Second
	cap_ := 10 * time.Second
	for n := 1; n < 50; n++ {
		if got := NextBackoff(n, base, cap_); got > cap_ {
			t.Fatalf("NextBackoff(%d) = %v exceeds cap %v", n, got, cap_)
		}
	}
}
