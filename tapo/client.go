// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package tapo implements the live device reader for Tapo P110 smart plugs
// over the local HTTP protocol.
package tapo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/votrix/tapo-energy-gateway/energy"
	apperrors "github.com/votrix/tapo-energy-gateway/pkg/errors"
	"github.com/votrix/tapo-energy-gateway/pkg/logger"
)

const (
	defaultReadTimeout = 5 * time.Second
	breakerResetAfter  = 30 * time.Second
	breakerTripAfter   = 3

	// device protocol error codes
	errCodeOK                 = 0
	errCodeInvalidCredentials = -1501
)

// Client performs live reads against P110 plugs. Each Read is a fresh
// session: login followed by the two queries a complete snapshot needs. No
// retries; a circuit breaker per device address sheds load from plugs that
// keep failing, and a tripped breaker surfaces like any other connect
// failure so the resolver's cache fallback still applies.
type Client struct {
	http     *resty.Client
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a device reader with the given per-read timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	return &Client{
		http:     resty.New().SetTimeout(timeout),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Read queries the plug at ip for its current energy usage and device info
// and returns the normalized snapshot. Both queries must succeed; any
// network or protocol failure aborts the whole read.
func (c *Client) Read(ctx context.Context, ip string, creds energy.Credentials) (*energy.Snapshot, error) {
	out, err := c.breaker(ip).Execute(func() (any, error) {
		return c.read(ctx, ip, creds)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewConnectError(ip, err)
		}
		return nil, err
	}
	return out.(*energy.Snapshot), nil
}

func (c *Client) read(ctx context.Context, ip string, creds energy.Credentials) (*energy.Snapshot, error) {
	token, err := c.login(ctx, ip, creds)
	if err != nil {
		return nil, err
	}

	energyRaw, err := c.query(ctx, ip, token, "get_energy_usage")
	if err != nil {
		return nil, err
	}
	infoRaw, err := c.query(ctx, ip, token, "get_device_info")
	if err != nil {
		return nil, err
	}

	snap := energy.Normalize(energyRaw, infoRaw)

	logger.Debug().
		Str("ip", ip).
		Interface("energy_raw", energyRaw).
		Interface("info_raw", infoRaw).
		Msg("Device read complete")

	return &snap, nil
}

type deviceRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

type deviceResponse struct {
	ErrorCode int            `json:"error_code"`
	Result    map[string]any `json:"result"`
}

// login opens a session on the plug and returns the session token.
func (c *Client) login(ctx context.Context, ip string, creds energy.Credentials) (string, error) {
	var out deviceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(deviceRequest{
			Method: "login_device",
			Params: map[string]any{
				"username": creds.Username,
				"password": creds.Password,
			},
		}).
		SetResult(&out).
		Post(appURL(ip))
	if err != nil {
		return "", apperrors.NewConnectError(ip, err)
	}
	if resp.IsError() {
		return "", apperrors.NewProtocolError("login_device", fmt.Errorf("http status %d", resp.StatusCode()))
	}
	if out.ErrorCode == errCodeInvalidCredentials {
		return "", apperrors.NewAuthError(ip, fmt.Errorf("device error_code %d", out.ErrorCode))
	}
	if out.ErrorCode != errCodeOK {
		return "", apperrors.NewProtocolError("login_device", fmt.Errorf("device error_code %d", out.ErrorCode))
	}

	token, ok := out.Result["token"].(string)
	if !ok || token == "" {
		return "", apperrors.NewProtocolError("login_device", errors.New("no session token in response"))
	}
	return token, nil
}

// query performs one method call on an established session and returns the
// raw result payload untouched; shaping is the normalizer's job.
func (c *Client) query(ctx context.Context, ip, token, method string) (energy.RawReading, error) {
	var out deviceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token", token).
		SetBody(deviceRequest{Method: method}).
		SetResult(&out).
		Post(appURL(ip))
	if err != nil {
		return nil, apperrors.NewConnectError(ip, err)
	}
	if resp.IsError() {
		return nil, apperrors.NewProtocolError(method, fmt.Errorf("http status %d", resp.StatusCode()))
	}
	if out.ErrorCode != errCodeOK {
		return nil, apperrors.NewProtocolError(method, fmt.Errorf("device error_code %d", out.ErrorCode))
	}
	if out.Result == nil {
		return nil, apperrors.NewProtocolError(method, errors.New("empty result"))
	}
	return energy.RawReading(out.Result), nil
}

// breaker returns the circuit breaker for a device address, creating it on
// first use.
func (c *Client) breaker(ip string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[ip]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "p110:" + ip,
		MaxRequests: 1,
		Timeout:     breakerResetAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Device circuit breaker state change")
		},
	})
	c.breakers[ip] = cb
	return cb
}

func appURL(ip string) string {
	return "http://" + ip + "/app"
}
