package metrics

import "testing"

func TestMirrorAccumulatesAndDrains(t *testing.T) {
	Init()

	IncUpstream("binance", OutcomeSuccess)
	IncUpstream("binance", OutcomeSuccess)
	IncUpstream("okx", OutcomeError)
	IncCache("whales", CacheHit)

	drained := drainMirror()
	if drained == nil {
		t.Fatal("expected drained counters")
	}
	if got := drained[mirrorKey{name: "UpstreamRequests", dimension: "binance_success"}]; got != 2 {
		t.Errorf("binance success count = %v, want 2", got)
	}
	if got := drained[mirrorKey{name: "CacheEvents", dimension: "whales_hit"}]; got != 1 {
		t.Errorf("cache hit count = %v, want 1", got)
	}

	if again := drainMirror(); again != nil {
		t.Errorf("second drain must be empty, got %v", again)
	}
}

func TestIncBeforeInitIsSafe(t *testing.T) {
	// Counters are nil until Init; increments must not panic.
	IncUpstream("bybit", OutcomeSuccess)
	IncCache("markets", CacheMiss)
}
