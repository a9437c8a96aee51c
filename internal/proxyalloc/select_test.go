package proxyalloc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alpes214/crawler/internal/model"
)

func at(hh int) *time.Time {
	t := time.Date(2026, 1, 1, hh, 0, 0, 0, time.UTC)
	return &t
}

func TestChooseBinding_NullLastUsedIsOldest(t *testing.T) {
	// P1 last=10:00, P2 last=11:00, P3 null -> P3 wins.
	p1 := model.HostProxyBinding{ProxyID: 1, LastUsedAt: at(10)}
	p2 := model.HostProxyBinding{ProxyID: 2, LastUsedAt: at(11)}
	p3 := model.HostProxyBinding{ProxyID: 3, LastUsedAt: nil}

	got := chooseBinding([]model.HostProxyBinding{p1, p2, p3})
	require.NotNil(t, got)
	require.Equal(t, uint(3), got.ProxyID, "a never-used binding should be treated as oldest")
}

func TestChooseBinding_OldestWins(t *testing.T) {
	p1 := model.HostProxyBinding{ProxyID: 1, LastUsedAt: at(10)}
	p2 := model.HostProxyBinding{ProxyID: 2, LastUsedAt: at(11)}

	got := chooseBinding([]model.HostProxyBinding{p2, p1})
	require.NotNil(t, got)
	require.Equal(t, uint(1), got.ProxyID)
}

func TestChooseBinding_TieBreaksByLatency(t *testing.T) {
	sameTime := at(10)
	p1 := model.HostProxyBinding{ProxyID: 1, LastUsedAt: sameTime, AvgLatencyMs: 200}
	p2 := model.HostProxyBinding{ProxyID: 2, LastUsedAt: sameTime, AvgLatencyMs: 50}

	got := chooseBinding([]model.HostProxyBinding{p1, p2})
	require.NotNil(t, got)
	require.Equal(t, uint(2), got.ProxyID, "equal last_used_at should tie-break on lower latency")
}

func TestChooseBinding_Empty(t *testing.T) {
	require.Nil(t, chooseBinding(nil))
}

func TestEWMA(t *testing.T) {
	require.Equal(t, 100.0, ewma(0, 100), "first sample should seed the average")
	require.Equal(t, 150.0, ewma(100, 200))
}
