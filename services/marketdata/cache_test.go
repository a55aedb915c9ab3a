package marketdata

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsCacheGetMissAndHit(t *testing.T) {
	cache := newNewsCache(time.Minute)

	_, ok := cache.get("general_0")
	assert.False(t, ok)

	fetched, err := cache.fetchThrough("general_0", func() ([]NewsItem, error) {
		return []NewsItem{{ID: 1, Headline: "one"}}, nil
	})
	require.NoError(t, err)

	cached, ok := cache.get("general_0")
	require.True(t, ok)
	assert.Equal(t, fetched, cached)
}

func TestNewsCacheGetExpiredEntry(t *testing.T) {
	cache := newNewsCache(10 * time.Millisecond)

	_, err := cache.fetchThrough("general_0", func() ([]NewsItem, error) {
		return []NewsItem{{ID: 1}}, nil
	})
	require.NoError(t, err)

	time.Sleep(15 * time.Millisecond)

	_, ok := cache.get("general_0")
	assert.False(t, ok, "a stale entry must not be served")
}

func TestNewsCacheFetchErrorIsNotCached(t *testing.T) {
	cache := newNewsCache(time.Minute)

	_, err := cache.fetchThrough("general_0", func() ([]NewsItem, error) {
		return nil, errors.New("provider down")
	})
	require.Error(t, err)

	calls := 0
	items, err := cache.fetchThrough("general_0", func() ([]NewsItem, error) {
		calls++
		return []NewsItem{{ID: 2}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a failed fill must retry on the next call")
	assert.Len(t, items, 1)
}

func TestNewsCachePurgeDropsOnlyExpiredEntries(t *testing.T) {
	cache := newNewsCache(20 * time.Millisecond)

	_, err := cache.fetchThrough("stale", func() ([]NewsItem, error) {
		return []NewsItem{{ID: 1}}, nil
	})
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = cache.fetchThrough("fresh", func() ([]NewsItem, error) {
		return []NewsItem{{ID: 2}}, nil
	})
	require.NoError(t, err)

	cache.purgeExpired()

	_, ok := cache.get("stale")
	assert.False(t, ok)
	_, ok = cache.get("fresh")
	assert.True(t, ok)
}

func TestNewsCachePurgeConcurrentWithReads(t *testing.T) {
	// Readers refresh entries while the sweep runs; the race detector flags
	// any unsynchronized access to the entry timestamps.
	cache := newNewsCache(time.Millisecond)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				items, err := cache.fetchThrough(key, func() ([]NewsItem, error) {
					return []NewsItem{{ID: 1}}, nil
				})
				require.NoError(t, err)
				require.Len(t, items, 1)
			}
		}([]string{"general_0", "general_0", "crypto_0", "merger_0"}[w])
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				cache.purgeExpired()
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	close(stop)
	wg.Wait()
}
