package service

import "sync"

// stampedeTracker counts in-flight upstream fetches per fingerprint. It only observes: callers
// are never blocked or merged, so a count above 1 means duplicate upstream work.
type stampedeTracker struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{inFlight: make(map[string]int)}
}

// RecordMiss registers a fetch for key and returns how many are now in flight for it.
// Pair every call with RecordHit once the fetch resolves.
func (st *stampedeTracker) RecordMiss(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.inFlight[key]++
	return st.inFlight[key]
}

// RecordHit marks one fetch for key as resolved.
func (st *stampedeTracker) RecordHit(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch n := st.inFlight[key]; {
	case n > 1:
		st.inFlight[key] = n - 1
	case n == 1:
		delete(st.inFlight, key)
	}
}

// active returns the number of fetches in flight for key.
func (st *stampedeTracker) active(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.inFlight[key]
}
