package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alpes214/crawler/internal/model"
)

func TestMinSpacing(t *testing.T) {
	tests := []struct {
		name string
		sec  int
		want int
	}{
		{"positive value passes through", 5, 5},
		{"zero defaults to one second", 0, 1},
		{"negative defaults to one second", -3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, minSpacing(tt.sec))
		})
	}
}

func TestCrawlWorker_RobotsDisallow(t *testing.T) {
	w := &CrawlWorker{Log: zap.NewNop()}

	t.Run("empty policy allows everything", func(t *testing.T) {
		host := &model.Host{UserAgent: "crawlerbot"}
		require.False(t, w.robotsDisallow(host, "https://example.com/private"))
	})

	t.Run("disallowed path is blocked", func(t *testing.T) {
		host := &model.Host{
			UserAgent:    "crawlerbot",
			RobotsPolicy: "User-agent: *\nDisallow: /private\n",
		}
		require.True(t, w.robotsDisallow(host, "https://example.com/private/x"))
	})

	t.Run("allowed path passes", func(t *testing.T) {
		host := &model.Host{
			UserAgent:    "crawlerbot",
			RobotsPolicy: "User-agent: *\nDisallow: /private\n",
		}
		require.False(t, w.robotsDisallow(host, "https://example.com/public"))
	})

	t.Run("malformed url fails open", func(t *testing.T) {
		host := &model.Host{
			UserAgent:    "crawlerbot",
			RobotsPolicy: "User-agent: *\nDisallow: /\n",
		}
		require.False(t, w.robotsDisallow(host, "://not-a-url"))
	})
}
