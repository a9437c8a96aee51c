package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alpes214/crawler/internal/config"
)

func TestTickFunc_PlainInterval(t *testing.T) {
	fn, err := TickFunc(config.DispatcherConfig{Interval: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, fn())
}

func TestTickFunc_DefaultsWhenIntervalUnset(t *testing.T) {
	fn, err := TickFunc(config.DispatcherConfig{})
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, fn())
}

func TestTickFunc_CronExpr(t *testing.T) {
	fn, err := TickFunc(config.DispatcherConfig{CronExpr: "*/10 * * * * *"})
	require.NoError(t, err)
	got := fn()
	require.Greater(t, got, time.Duration(0))
	require.LessOrEqual(t, got, 10*time.Second)
}

func TestTickFunc_InvalidCronExpr(t *testing.T) {
	_, err := TickFunc(config.DispatcherConfig{CronExpr: "not a cron expr"})
	require.Error(t, err)
}
