// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package energy

import (
	"context"
	"strconv"
	"time"

	"github.com/votrix/tapo-energy-gateway/devices"
	apperrors "github.com/votrix/tapo-energy-gateway/pkg/errors"
	"github.com/votrix/tapo-energy-gateway/pkg/logger"
	"github.com/votrix/tapo-energy-gateway/pkg/metrics"
)

// Credentials are the shared device service credentials. They are owned by
// configuration, not by the reader: the resolver decides per call whether a
// live read may happen at all.
type Credentials struct {
	Username string
	Password string
}

// Reader performs a single live query against a physical device. A call is
// a fresh session: no retry, no pooling. Any failure aborts the whole read.
type Reader interface {
	Read(ctx context.Context, ip string, creds Credentials) (*Snapshot, error)
}

// Cache is the time-bounded snapshot store the resolver reads through.
// Values are structurally opaque: live reads store a *Snapshot, the
// ingestion endpoint stores the raw JSON object it received.
type Cache interface {
	Set(key string, value any, ttl time.Duration)
	Get(key string) (any, bool)
}

// Requester identifies who is asking for a snapshot. The zero value is an
// anonymous requester.
type Requester struct {
	UserID        int64
	Authenticated bool
}

// Resolver answers snapshot requests by attempting a live read when allowed
// and degrading through the cache tiers otherwise. A live-read failure is
// swallowed and only surfaced when every cache tier also misses.
type Resolver struct {
	directory       devices.Directory
	reader          Reader
	cache           Cache
	creds           Credentials
	liveTTL         time.Duration
	strictOwnership bool
}

// NewResolver creates a resolver. liveTTL bounds how long a snapshot written
// by a live read stays servable from cache. With strictOwnership set,
// anonymous requesters cannot resolve any device.
func NewResolver(directory devices.Directory, reader Reader, cache Cache, creds Credentials, liveTTL time.Duration, strictOwnership bool) *Resolver {
	return &Resolver{
		directory:       directory,
		reader:          reader,
		cache:           cache,
		creds:           creds,
		liveTTL:         liveTTL,
		strictOwnership: strictOwnership,
	}
}

// Resolve returns the freshest snapshot it can for the requester. deviceID
// selects a specific device; zero means the requester's first device
// (authenticated) or the first device in the system (anonymous). allowLive
// is decided once at the boundary by the deployment-mode flag.
//
// Error semantics follow the request taxonomy: ErrDeviceUnavailable and
// ErrCredentialsMissing are terminal, a ReadError is reported only if the
// cache fallback also missed, and ErrNoRecentSnapshot is the final miss.
func (r *Resolver) Resolve(ctx context.Context, req Requester, deviceID int64, allowLive bool) (*Result, error) {
	var readErr error

	if allowLive {
		dev, ok := r.selectDevice(req, deviceID)
		if !ok || dev.IP == "" {
			return nil, apperrors.ErrDeviceUnavailable
		}
		if r.creds.Username == "" || r.creds.Password == "" {
			return nil, apperrors.ErrCredentialsMissing
		}

		start := time.Now()
		snap, err := r.reader.Read(ctx, dev.IP, r.creds)
		metrics.LiveReadDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.LiveReadErrors.Inc()
			logger.Warn().Err(err).
				Int64("device_id", dev.ID).
				Str("ip", dev.IP).
				Msg("Live read failed, falling back to cache")
			readErr = apperrors.NewReadError(dev.IP, err)
		} else {
			metrics.LiveReadsTotal.Inc()
			key := DeviceKey(formatID(dev.ID))
			if req.Authenticated {
				key = UserKey(req.UserID, formatID(dev.ID))
			}
			r.cache.Set(key, snap, r.liveTTL)
			if snap.PowerW != nil {
				metrics.CurrentPower.WithLabelValues(formatID(dev.ID), dev.Title).Set(*snap.PowerW)
			}
			return resultFor(dev, *snap), nil
		}
	}

	if res, ok := r.lookupCached(req, deviceID); ok {
		return res, nil
	}

	metrics.CacheMisses.Inc()
	if readErr != nil {
		return nil, readErr
	}
	return nil, apperrors.ErrNoRecentSnapshot
}

// selectDevice resolves the device a live read should target. A selector is
// scoped to the requester's ownership when authenticated and unscoped
// otherwise; without a selector the requester's first device (or the first
// device in the system) is used.
func (r *Resolver) selectDevice(req Requester, deviceID int64) (*devices.Device, bool) {
	if r.strictOwnership && !req.Authenticated {
		return nil, false
	}
	if deviceID != 0 {
		if req.Authenticated {
			return r.directory.ByIDAndOwner(deviceID, req.UserID)
		}
		return r.directory.ByID(deviceID)
	}
	if req.Authenticated {
		return r.directory.FirstOwnedBy(req.UserID)
	}
	return r.directory.First()
}

// lookupCached walks the cache tiers: the public per-device key for a direct
// selector first, then the resolved device's public key, then the
// requester's private key. The public key wins ties because it carries the
// most recently ingested truth regardless of who last read the device live.
func (r *Resolver) lookupCached(req Requester, deviceID int64) (*Result, bool) {
	if r.strictOwnership && !req.Authenticated {
		return nil, false
	}

	if deviceID != 0 {
		if v, ok := r.cache.Get(DeviceKey(formatID(deviceID))); ok {
			metrics.CacheHits.WithLabelValues("device").Inc()
			dev, _ := r.selectDevice(req, deviceID)
			return cachedResult(v, dev, deviceID), true
		}
	}

	dev, ok := r.selectDevice(req, deviceID)
	if !ok {
		return nil, false
	}

	if deviceID == 0 {
		// the selector path above already probed this key
		if v, ok := r.cache.Get(DeviceKey(formatID(dev.ID))); ok {
			metrics.CacheHits.WithLabelValues("device").Inc()
			return cachedResult(v, dev, dev.ID), true
		}
	}

	if req.Authenticated {
		if v, ok := r.cache.Get(UserKey(req.UserID, formatID(dev.ID))); ok {
			metrics.CacheHits.WithLabelValues("user").Inc()
			return cachedResult(v, dev, dev.ID), true
		}
	}

	return nil, false
}

// cachedResult shapes a cache value into a Result. Ingested values arrive as
// raw JSON objects and go through the normalizer; live-read values are
// already canonical snapshots.
func cachedResult(v any, dev *devices.Device, deviceID int64) *Result {
	var snap Snapshot
	switch s := v.(type) {
	case *Snapshot:
		snap = *s
	case Snapshot:
		snap = s
	case map[string]any:
		snap = Normalize(RawReading(s))
	}

	if dev != nil {
		return resultFor(dev, snap)
	}
	return &Result{DeviceID: deviceID, Snapshot: snap}
}

func resultFor(dev *devices.Device, snap Snapshot) *Result {
	return &Result{
		DeviceID: dev.ID,
		Title:    dev.Title,
		IP:       dev.IP,
		Snapshot: snap,
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
