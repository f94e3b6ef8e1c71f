// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package energy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/votrix/tapo-energy-gateway/devices"
	apperrors "github.com/votrix/tapo-energy-gateway/pkg/errors"
)

type fakeReader struct {
	snap  *Snapshot
	err   error
	calls int
}

func (f *fakeReader) Read(_ context.Context, _ string, _ Credentials) (*Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

type fakeCache struct {
	entries map[string]any
	sets    map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string]any),
		sets:    make(map[string]time.Duration),
	}
}

func (f *fakeCache) Set(key string, value any, ttl time.Duration) {
	f.entries[key] = value
	f.sets[key] = ttl
}

func (f *fakeCache) Get(key string) (any, bool) {
	v, ok := f.entries[key]
	return v, ok
}

func testDirectory() *devices.MemoryDirectory {
	return devices.NewMemoryDirectory(
		&devices.Device{ID: 1, OwnerID: 10, Title: "Freezer", IP: "192.168.1.50"},
		&devices.Device{ID: 2, OwnerID: 20, Title: "Sala", IP: "192.168.1.51"},
		&devices.Device{ID: 3, OwnerID: 10, Title: "Sem IP"},
	)
}

func testSnapshot(power float64) *Snapshot {
	return &Snapshot{PowerW: &power}
}

var testCreds = Credentials{Username: "user@example.com", Password: "secret"}

func TestResolve_LiveReadSuccess(t *testing.T) {
	reader := &fakeReader{snap: testSnapshot(42.0)}
	cache := newFakeCache()
	r := NewResolver(testDirectory(), reader, cache, testCreds, 30*time.Second, false)

	res, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 1, true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DeviceID != 1 || res.Title != "Freezer" {
		t.Errorf("Resolve() = %+v, want device 1 Freezer", res)
	}
	if res.PowerW == nil || *res.PowerW != 42.0 {
		t.Errorf("Resolve() PowerW = %v, want 42.0", res.PowerW)
	}

	// an authenticated live read caches under the private user key
	if _, ok := cache.entries["user:10:1"]; !ok {
		t.Error("expected snapshot cached under user:10:1")
	}
	if ttl := cache.sets["user:10:1"]; ttl != 30*time.Second {
		t.Errorf("cache TTL = %v, want 30s", ttl)
	}
}

func TestResolve_AnonymousLiveReadUsesDeviceKey(t *testing.T) {
	reader := &fakeReader{snap: testSnapshot(10.0)}
	cache := newFakeCache()
	r := NewResolver(testDirectory(), reader, cache, testCreds, 30*time.Second, false)

	_, err := r.Resolve(context.Background(), Requester{}, 1, true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, ok := cache.entries["device:1"]; !ok {
		t.Error("expected snapshot cached under device:1")
	}
}

func TestResolve_NoSelectorPicksFirstOwned(t *testing.T) {
	reader := &fakeReader{snap: testSnapshot(5.0)}
	r := NewResolver(testDirectory(), reader, newFakeCache(), testCreds, 30*time.Second, false)

	res, err := r.Resolve(context.Background(), Requester{UserID: 20, Authenticated: true}, 0, true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DeviceID != 2 {
		t.Errorf("Resolve() DeviceID = %d, want 2 (first owned by user 20)", res.DeviceID)
	}
}

func TestResolve_ReadFailureFallsBackToCache(t *testing.T) {
	reader := &fakeReader{err: apperrors.NewConnectError("192.168.1.50", errors.New("timeout"))}
	cache := newFakeCache()
	cache.entries["device:1"] = testSnapshot(99.0)
	r := NewResolver(testDirectory(), reader, cache, testCreds, 30*time.Second, false)

	res, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 1, true)
	if err != nil {
		t.Fatalf("Resolve() error = %v, want cached fallback", err)
	}
	if res.PowerW == nil || *res.PowerW != 99.0 {
		t.Errorf("Resolve() PowerW = %v, want cached 99.0", res.PowerW)
	}
	if reader.calls != 1 {
		t.Errorf("reader calls = %d, want 1", reader.calls)
	}
}

func TestResolve_ReadFailureEmptyCacheSurfacesReadError(t *testing.T) {
	reader := &fakeReader{err: apperrors.NewConnectError("192.168.1.50", errors.New("timeout"))}
	r := NewResolver(testDirectory(), reader, newFakeCache(), testCreds, 30*time.Second, false)

	_, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 1, true)
	if !apperrors.IsReadError(err) {
		t.Errorf("Resolve() error = %v, want ReadError", err)
	}
}

func TestResolve_LiveDisabledEmptyCache(t *testing.T) {
	reader := &fakeReader{snap: testSnapshot(1.0)}
	r := NewResolver(testDirectory(), reader, newFakeCache(), testCreds, 30*time.Second, false)

	_, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 1, false)
	if !errors.Is(err, apperrors.ErrNoRecentSnapshot) {
		t.Errorf("Resolve() error = %v, want ErrNoRecentSnapshot", err)
	}
	if reader.calls != 0 {
		t.Errorf("reader calls = %d, want 0 when live reads are disabled", reader.calls)
	}
}

func TestResolve_LiveDisabledServesCache(t *testing.T) {
	cache := newFakeCache()
	cache.entries["device:1"] = testSnapshot(7.0)
	r := NewResolver(testDirectory(), &fakeReader{}, cache, testCreds, 30*time.Second, false)

	res, err := r.Resolve(context.Background(), Requester{}, 1, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.PowerW == nil || *res.PowerW != 7.0 {
		t.Errorf("Resolve() PowerW = %v, want 7.0", res.PowerW)
	}
}

func TestResolve_UnknownDeviceIsTerminal(t *testing.T) {
	r := NewResolver(testDirectory(), &fakeReader{}, newFakeCache(), testCreds, 30*time.Second, false)

	_, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 404, true)
	if !errors.Is(err, apperrors.ErrDeviceUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestResolve_DeviceWithoutIPIsTerminal(t *testing.T) {
	r := NewResolver(testDirectory(), &fakeReader{}, newFakeCache(), testCreds, 30*time.Second, false)

	_, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 3, true)
	if !errors.Is(err, apperrors.ErrDeviceUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestResolve_OwnershipScopesSelection(t *testing.T) {
	r := NewResolver(testDirectory(), &fakeReader{}, newFakeCache(), testCreds, 30*time.Second, false)

	// device 2 belongs to user 20, not user 10
	_, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 2, true)
	if !errors.Is(err, apperrors.ErrDeviceUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrDeviceUnavailable for foreign device", err)
	}
}

func TestResolve_MissingCredentialsIsTerminal(t *testing.T) {
	r := NewResolver(testDirectory(), &fakeReader{}, newFakeCache(), Credentials{}, 30*time.Second, false)

	_, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 1, true)
	if !errors.Is(err, apperrors.ErrCredentialsMissing) {
		t.Errorf("Resolve() error = %v, want ErrCredentialsMissing", err)
	}
}

func TestResolve_DeviceKeyOutranksUserKey(t *testing.T) {
	cache := newFakeCache()
	cache.entries["device:1"] = testSnapshot(1.0)
	cache.entries["user:10:1"] = testSnapshot(2.0)
	r := NewResolver(testDirectory(), &fakeReader{}, cache, testCreds, 30*time.Second, false)

	res, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 1, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.PowerW == nil || *res.PowerW != 1.0 {
		t.Errorf("Resolve() PowerW = %v, want 1.0 from the device key", res.PowerW)
	}
}

func TestResolve_UserKeyFallback(t *testing.T) {
	cache := newFakeCache()
	cache.entries["user:10:1"] = testSnapshot(3.0)
	r := NewResolver(testDirectory(), &fakeReader{}, cache, testCreds, 30*time.Second, false)

	res, err := r.Resolve(context.Background(), Requester{UserID: 10, Authenticated: true}, 1, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.PowerW == nil || *res.PowerW != 3.0 {
		t.Errorf("Resolve() PowerW = %v, want 3.0 from the user key", res.PowerW)
	}
}

func TestResolve_IngestedMapNormalizedOnRead(t *testing.T) {
	cache := newFakeCache()
	cache.entries["device:1"] = map[string]any{
		"current_power": 2500.0,
		"device_on":     true,
	}
	r := NewResolver(testDirectory(), &fakeReader{}, cache, testCreds, 30*time.Second, false)

	res, err := r.Resolve(context.Background(), Requester{}, 1, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.PowerW == nil || *res.PowerW != 2.5 {
		t.Errorf("Resolve() PowerW = %v, want normalized 2.5", res.PowerW)
	}
	if res.On == nil || !*res.On {
		t.Errorf("Resolve() On = %v, want true", res.On)
	}
}

func TestResolve_StrictOwnershipDeniesAnonymous(t *testing.T) {
	cache := newFakeCache()
	cache.entries["device:1"] = testSnapshot(1.0)
	r := NewResolver(testDirectory(), &fakeReader{}, cache, testCreds, 30*time.Second, true)

	_, err := r.Resolve(context.Background(), Requester{}, 1, true)
	if !errors.Is(err, apperrors.ErrDeviceUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrDeviceUnavailable under strict ownership", err)
	}

	// cached data must not leak either when live reads are off
	_, err = r.Resolve(context.Background(), Requester{}, 1, false)
	if !errors.Is(err, apperrors.ErrNoRecentSnapshot) {
		t.Errorf("Resolve() error = %v, want ErrNoRecentSnapshot under strict ownership", err)
	}
}
