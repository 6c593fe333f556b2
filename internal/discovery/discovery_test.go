package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveServer(t *testing.T, flavor string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Write([]byte(`{"flavor":"` + flavor + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func deadServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOverrideWinsWithoutProbing(t *testing.T) {
	var hits atomic.Int64
	cand := liveServer(t, "cuda", &hits)

	r := NewResolver(Config{
		Override:   "http://configured:59002",
		Candidates: []string{cand.URL},
		Fallback:   "http://localhost:59002",
	}, &http.Client{}, clockwork.NewRealClock())

	base, err := r.Base(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://configured:59002", base)
	assert.Equal(t, int64(0), hits.Load(), "override must skip probing")
}

func TestCandidatesProbedInOrder(t *testing.T) {
	var secondHits atomic.Int64
	down := deadServer(t)
	up := liveServer(t, "amd", &secondHits)

	r := NewResolver(Config{
		Candidates: []string{down.URL, up.URL},
		Fallback:   "http://localhost:59002",
	}, &http.Client{}, clockwork.NewRealClock())

	base, err := r.Base(context.Background())
	require.NoError(t, err)
	assert.Equal(t, up.URL, base)
	assert.Equal(t, "amd", r.Flavor())
}

func TestResultCachedAcrossCalls(t *testing.T) {
	var hits atomic.Int64
	up := liveServer(t, "cpu", &hits)

	r := NewResolver(Config{
		Candidates: []string{up.URL},
		Fallback:   "http://localhost:59002",
	}, &http.Client{}, clockwork.NewRealClock())

	for i := 0; i < 5; i++ {
		base, err := r.Base(context.Background())
		require.NoError(t, err)
		assert.Equal(t, up.URL, base)
	}
	assert.Equal(t, int64(1), hits.Load(), "cached base must not re-probe")
	assert.Equal(t, up.URL, r.Cached())
}

func TestConcurrentCallersShareOneResolution(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(30 * time.Millisecond) // let callers pile up
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	r := NewResolver(Config{
		Candidates: []string{srv.URL},
		Fallback:   "http://localhost:59002",
	}, &http.Client{}, clockwork.NewRealClock())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			base, err := r.Base(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, srv.URL, base)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), hits.Load(), "resolution must be single-flight")
}

func TestResetForcesRediscovery(t *testing.T) {
	var hits atomic.Int64
	up := liveServer(t, "", &hits)

	r := NewResolver(Config{
		Candidates: []string{up.URL},
		Fallback:   "http://localhost:59002",
	}, &http.Client{}, clockwork.NewRealClock())

	_, err := r.Base(context.Background())
	require.NoError(t, err)
	r.Reset()
	assert.Empty(t, r.Cached())

	_, err = r.Base(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestFallbackReturnedWhenNothingAnswers(t *testing.T) {
	r := NewResolver(Config{
		Candidates:   nil,
		Fallback:     "http://127.0.0.1:1", // nothing listens here
		ProbeTimeout: 100 * time.Millisecond,
		RetryMin:     time.Millisecond,
		RetryMax:     2 * time.Millisecond,
	}, &http.Client{}, clockwork.NewRealClock())

	base, err := r.Base(context.Background())
	require.NoError(t, err, "discovery never fails terminally")
	assert.Equal(t, "http://127.0.0.1:1", base)
}

func TestUnreachableCandidateSkipped(t *testing.T) {
	up := liveServer(t, "", nil)

	r := NewResolver(Config{
		Candidates:   []string{"http://127.0.0.1:1", up.URL},
		Fallback:     "http://localhost:59002",
		ProbeTimeout: 200 * time.Millisecond,
	}, &http.Client{}, clockwork.NewRealClock())

	base, err := r.Base(context.Background())
	require.NoError(t, err)
	assert.Equal(t, up.URL, base)
}

func TestContextCancellationSurfaces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(Config{
		Candidates: []string{"http://127.0.0.1:1"},
		Fallback:   "http://127.0.0.1:1",
	}, &http.Client{}, clockwork.NewRealClock())

	_, err := r.Base(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
