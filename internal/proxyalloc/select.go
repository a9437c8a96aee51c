package proxyalloc

import (
	"time"

	"github.com/alpes214/crawler/internal/model"
)

// chooseBinding is the pure decision core of Acquire: among the
// health-filtered candidates Acquire's query has locked, pick the one with
// the oldest last_used_at (nil treated as oldest), tie-broken by smallest
// average latency. Acquire's query does no ordering of its own; it calls
// this function, so the selection rule is unit-testable without a database.
func chooseBinding(candidates []model.HostProxyBinding) *model.HostProxyBinding {
	if len(candidates) == 0 {
		return nil
	}
	best := &candidates[0]
	for i := 1; i < len(candidates); i++ {
		c := &candidates[i]
		if lastUsedBefore(c.LastUsedAt, best.LastUsedAt) {
			best = c
			continue
		}
		if sameInstant(c.LastUsedAt, best.LastUsedAt) && c.AvgLatencyMs < best.AvgLatencyMs {
			best = c
		}
	}
	return best
}

func lastUsedBefore(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
