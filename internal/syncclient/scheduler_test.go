package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsCycles(t *testing.T) {
	var pulls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pulls.Add(1)
		writePullResponse(w, nil, time.Now().UTC())
	}))
	defer srv.Close()

	client := New(newFakeStore(), srv.URL, staticToken("session-token"), nil)
	scheduler := NewScheduler(client, 20*time.Millisecond)

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	require.Eventually(t, func() bool {
		return pulls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_StopWaitsAndIsIdempotent(t *testing.T) {
	var pulls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pulls.Add(1)
		writePullResponse(w, nil, time.Now().UTC())
	}))
	defer srv.Close()

	client := New(newFakeStore(), srv.URL, staticToken("session-token"), nil)
	scheduler := NewScheduler(client, 20*time.Millisecond)

	scheduler.Start(context.Background())
	require.Eventually(t, func() bool {
		return pulls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	scheduler.Stop()
	stopped := pulls.Load()

	// No ticks fire after Stop returns.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, stopped, pulls.Load())

	// Stopping again is a no-op.
	scheduler.Stop()
}

func TestScheduler_StartWhileRunningIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePullResponse(w, nil, time.Now().UTC())
	}))
	defer srv.Close()

	client := New(newFakeStore(), srv.URL, staticToken("session-token"), nil)
	scheduler := NewScheduler(client, time.Hour)

	ctx := context.Background()
	scheduler.Start(ctx)
	first := scheduler.stop
	scheduler.Start(ctx)
	assert.True(t, first == scheduler.stop, "second Start must not replace the running loop")

	scheduler.Stop()
}

func TestScheduler_StopNeverStarted(t *testing.T) {
	scheduler := NewScheduler(nil, time.Hour)
	scheduler.Stop()
}

func TestScheduler_ContextCancelStopsLoop(t *testing.T) {
	var pulls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pulls.Add(1)
		writePullResponse(w, nil, time.Now().UTC())
	}))
	defer srv.Close()

	client := New(newFakeStore(), srv.URL, staticToken("session-token"), nil)
	scheduler := NewScheduler(client, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)
	cancel()

	select {
	case <-scheduler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on context cancellation")
	}
}
