package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alpes214/crawler/internal/config"
)

func TestRouteCrawlJob_HighPriorityGoesToPriorityQueue(t *testing.T) {
	ttl := config.TTLConfig{Work: time.Hour, Priority: 5 * time.Minute}

	queue, retention := routeCrawlJob(1, ttl)
	require.Equal(t, QueuePriority, queue)
	require.Equal(t, ttl.Priority, retention)

	queue, retention = routeCrawlJob(2, ttl)
	require.Equal(t, QueuePriority, queue)
	require.Equal(t, ttl.Priority, retention)
}

func TestRouteCrawlJob_LowPriorityGoesToCrawlQueue(t *testing.T) {
	ttl := config.TTLConfig{Work: time.Hour, Priority: 5 * time.Minute}

	queue, retention := routeCrawlJob(3, ttl)
	require.Equal(t, QueueCrawl, queue)
	require.Equal(t, ttl.Work, retention)

	queue, retention = routeCrawlJob(10, ttl)
	require.Equal(t, QueueCrawl, queue)
	require.Equal(t, ttl.Work, retention)
}
