package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type mockWeatherFetcher struct {
	mu     sync.Mutex
	warmed []string
	err    error
}

func (m *mockWeatherFetcher) WarmCurrent(ctx context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmed = append(m.warmed, location)
	return m.err
}

func TestCacheWarmer_Warm_Success(t *testing.T) {
	fetcher := &mockWeatherFetcher{}
	warmer := NewCacheWarmer(fetcher, nil)

	if err := warmer.Warm(context.Background(), []string{"seattle", "boston"}); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if len(fetcher.warmed) != 2 {
		t.Errorf("fetcher called %d times, want 2", len(fetcher.warmed))
	}
}

func TestCacheWarmer_Warm_EmptyLocations(t *testing.T) {
	warmer := NewCacheWarmer(&mockWeatherFetcher{}, nil)
	ctx := context.Background()

	if err := warmer.Warm(ctx, nil); err != nil {
		t.Fatalf("Warm() with nil locations error = %v, want nil", err)
	}
	if err := warmer.Warm(ctx, []string{}); err != nil {
		t.Fatalf("Warm() with empty locations error = %v, want nil", err)
	}
}

func TestCacheWarmer_Warm_FetcherError(t *testing.T) {
	apiDown := errors.New("api down")
	warmer := NewCacheWarmer(&mockWeatherFetcher{err: apiDown}, nil)

	err := warmer.Warm(context.Background(), []string{"seattle"})
	if err == nil {
		t.Fatal("Warm() error = nil, want non-nil")
	}
	if !errors.Is(err, apiDown) {
		t.Errorf("Warm() error = %v, want wrapping %v", err, apiDown)
	}
	if !strings.Contains(err.Error(), "warm seattle") {
		t.Errorf("Warm() error = %q, want location in message", err.Error())
	}
}
