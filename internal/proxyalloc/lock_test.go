package proxyalloc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostLock_NilClientIsNoop(t *testing.T) {
	lock := NewHostLock(nil, 1)

	ok, err := lock.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "a nil-client lock should always report itself as acquired")

	require.NoError(t, lock.Unlock(context.Background()))
}

func TestNewHostLock_KeyIsPerHost(t *testing.T) {
	a := NewHostLock(nil, 1)
	b := NewHostLock(nil, 2)
	require.NotEqual(t, a.key, b.key)
}
