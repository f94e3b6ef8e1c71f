// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLiveReadsTotalCounter(t *testing.T) {
	initial := testutil.ToFloat64(LiveReadsTotal)
	LiveReadsTotal.Inc()
	final := testutil.ToFloat64(LiveReadsTotal)

	if final <= initial {
		t.Errorf("LiveReadsTotal should have increased, got %v -> %v", initial, final)
	}
}

func TestLiveReadErrorsCounter(t *testing.T) {
	initial := testutil.ToFloat64(LiveReadErrors)
	LiveReadErrors.Inc()
	final := testutil.ToFloat64(LiveReadErrors)

	if final <= initial {
		t.Errorf("LiveReadErrors should have increased, got %v -> %v", initial, final)
	}
}

func TestCacheHitsPerScope(t *testing.T) {
	initial := testutil.ToFloat64(CacheHits.WithLabelValues("device"))
	CacheHits.WithLabelValues("device").Inc()
	final := testutil.ToFloat64(CacheHits.WithLabelValues("device"))

	if final <= initial {
		t.Errorf("CacheHits[device] should have increased, got %v -> %v", initial, final)
	}

	// scopes are independent series
	userValue := testutil.ToFloat64(CacheHits.WithLabelValues("user"))
	CacheHits.WithLabelValues("user").Inc()
	if got := testutil.ToFloat64(CacheHits.WithLabelValues("user")); got != userValue+1 {
		t.Errorf("CacheHits[user] = %v, want %v", got, userValue+1)
	}
}

func TestCacheEntriesGauge(t *testing.T) {
	CacheEntries.Set(0)
	CacheEntries.Set(7)

	if value := testutil.ToFloat64(CacheEntries); value != 7 {
		t.Errorf("CacheEntries = %v, want 7", value)
	}
}

func TestCurrentPowerGauge(t *testing.T) {
	CurrentPower.WithLabelValues("1", "Freezer").Set(0)
	CurrentPower.WithLabelValues("1", "Freezer").Set(42.5)

	if value := testutil.ToFloat64(CurrentPower.WithLabelValues("1", "Freezer")); value != 42.5 {
		t.Errorf("CurrentPower = %v, want 42.5", value)
	}
}

func TestSnapshotsIngestedCounter(t *testing.T) {
	initial := testutil.ToFloat64(SnapshotsIngested)
	SnapshotsIngested.Inc()
	final := testutil.ToFloat64(SnapshotsIngested)

	if final <= initial {
		t.Errorf("SnapshotsIngested should have increased, got %v -> %v", initial, final)
	}
}
