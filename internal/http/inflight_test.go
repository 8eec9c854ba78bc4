package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestInFlightTracker_Count(t *testing.T) {
	tracker := &InFlightTracker{}
	steps := []struct {
		op   func()
		want int64
	}{
		{tracker.Increment, 1},
		{tracker.Increment, 2},
		{tracker.Decrement, 1},
		{tracker.Decrement, 0},
	}
	for i, s := range steps {
		s.op()
		if got := tracker.Count(); got != s.want {
			t.Errorf("step %d: Count() = %d, want %d", i, got, s.want)
		}
	}
}

func TestInFlightTracker_Concurrent(t *testing.T) {
	tracker := &InFlightTracker{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment()
			tracker.Decrement()
		}()
	}
	wg.Wait()
	if got := tracker.Count(); got != 0 {
		t.Errorf("Count() after balanced concurrent calls = %d, want 0", got)
	}
}

func TestInFlightTracker_WaitForZero_ContextCanceled(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.WaitForZero(ctx, 5*time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForZero() error = %v, want context.Canceled", err)
	}
}

// TestInFlightTracker_WaitsForRequestThroughMiddleware holds a request open inside the
// metrics middleware and checks WaitForZero returns only after it completes.
func TestInFlightTracker_WaitsForRequestThroughMiddleware(t *testing.T) {
	tracker := &InFlightTracker{}
	release := make(chan struct{})
	started := make(chan struct{})

	router := mux.NewRouter()
	router.Use(MetricsMiddleware(tracker))
	router.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})

	go router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
	<-started

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- tracker.WaitForZero(ctx, 5*time.Millisecond)
	}()

	select {
	case err := <-done:
		t.Fatalf("WaitForZero returned %v while request in flight", err)
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForZero() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForZero did not return after request completed")
	}
}
