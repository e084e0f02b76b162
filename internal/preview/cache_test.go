package preview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/handle-crawler/internal/types"
)

type countingProber struct {
	calls   atomic.Int64
	release chan struct{} // when set, probes block until closed
	err     error
}

func (p *countingProber) Classify(ctx context.Context, handle string) (types.ClassifiedHandle, error) {
	p.calls.Add(1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return types.ClassifiedHandle{ID: handle, Kind: types.KindUnknown}, ctx.Err()
		}
	}
	if p.err != nil {
		return types.ClassifiedHandle{ID: handle, Kind: types.KindUnknown}, p.err
	}
	return types.ClassifiedHandle{ID: handle, Kind: types.KindChat, URL: "https://t.me/" + handle}, nil
}

func TestCache_ProbesEachHandleOnce(t *testing.T) {
	prober := &countingProber{}
	cache := NewCache(prober)
	ctx := context.Background()

	first, err := cache.Classify(ctx, "club_chat")
	require.NoError(t, err)
	second, err := cache.Classify(ctx, "club_chat")
	require.NoError(t, err)
	_, err = cache.Classify(ctx, "other_chat")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), prober.calls.Load())
	assert.Equal(t, int64(1), cache.Hits())
	assert.Equal(t, 2, cache.Len())
}

func TestCache_HandlesAreCaseSensitive(t *testing.T) {
	prober := &countingProber{}
	cache := NewCache(prober)

	_, _ = cache.Classify(context.Background(), "GoNews")
	_, _ = cache.Classify(context.Background(), "gonews")

	assert.Equal(t, int64(2), prober.calls.Load())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	prober := &countingProber{err: errors.New("connection reset")}
	cache := NewCache(prober)
	ctx := context.Background()

	got, err := cache.Classify(ctx, "flaky")
	require.Error(t, err)
	assert.Equal(t, types.KindUnknown, got.Kind)

	_, err = cache.Classify(ctx, "flaky")
	require.Error(t, err)

	assert.Equal(t, int64(2), prober.calls.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestCache_ConcurrentLookupsShareOneProbe(t *testing.T) {
	prober := &countingProber{release: make(chan struct{})}
	cache := NewCache(prober)

	const callers = 5
	results := make([]types.ClassifiedHandle, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = cache.Classify(context.Background(), "club_chat")
		}()
	}

	require.Eventually(t, func() bool { return prober.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(prober.release)
	wg.Wait()

	assert.Equal(t, int64(1), prober.calls.Load())
	assert.Equal(t, int64(callers-1), cache.Hits())
	for _, r := range results {
		assert.Equal(t, types.KindChat, r.Kind)
	}
}

func TestCache_WaiterHonorsCancellation(t *testing.T) {
	prober := &countingProber{release: make(chan struct{})}
	defer close(prober.release)
	cache := NewCache(prober)

	go func() { _, _ = cache.Classify(context.Background(), "slow") }()
	require.Eventually(t, func() bool { return prober.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := cache.Classify(ctx, "slow")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.KindUnknown, got.Kind)
	assert.Equal(t, "slow", got.ID)
}
