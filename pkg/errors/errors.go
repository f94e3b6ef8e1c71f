// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package errors provides structured error types for the energy gateway.
//
// The failure taxonomy mirrors how a snapshot request degrades: device
// session errors (connect, auth, protocol) abort a single live read, a
// ReadError marks the live attempt as failed but recoverable through the
// snapshot cache, and the sentinel errors below are terminal for a request.
package errors

import (
	"errors"
	"fmt"
)

// ConnectError represents a transport-level failure reaching a device.
type ConnectError struct {
	Addr string // Device address (IP or host:port)
	Err  error  // Underlying error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("connect %s failed", e.Addr)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// NewConnectError creates a new connect error.
func NewConnectError(addr string, err error) *ConnectError {
	return &ConnectError{Addr: addr, Err: err}
}

// IsConnectError checks if an error is a ConnectError.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

// AuthError represents a device rejecting the supplied service credentials.
type AuthError struct {
	Addr string // Device address
	Err  error  // Underlying error or device error code
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device auth %s: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("device auth %s failed", e.Addr)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new auth error.
func NewAuthError(addr string, err error) *AuthError {
	return &AuthError{Addr: addr, Err: err}
}

// IsAuthError checks if an error is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ProtocolError represents an unexpected or malformed device response.
type ProtocolError struct {
	Op  string // Device method being performed (e.g., "get_energy_usage")
	Err error  // Underlying error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("protocol %s failed", e.Op)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new protocol error.
func NewProtocolError(op string, err error) *ProtocolError {
	return &ProtocolError{Op: op, Err: err}
}

// IsProtocolError checks if an error is a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// ReadError marks a failed live read. It is recoverable: the resolver falls
// back to the snapshot cache and only surfaces this error when every cache
// tier also misses.
type ReadError struct {
	Addr string // Device address that was read
	Err  error  // Underlying reader error (connect, auth or protocol)
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("live read %s: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("live read %s failed", e.Addr)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// NewReadError creates a new read error.
func NewReadError(addr string, err error) *ReadError {
	return &ReadError{Addr: addr, Err: err}
}

// IsReadError checks if an error is a ReadError.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field string // Configuration field that caused the error
	Value string // Invalid value (optional, may be redacted for sensitive fields)
	Err   error  // Underlying error or description
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config error in field %q (value=%q): %v", e.Field, e.Value, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error in field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error in field %q", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(field string, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Err: err}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Sentinel errors for terminal request conditions
var (
	// ErrDeviceUnavailable indicates no device row could be resolved for the
	// requester, or the resolved device has no IP address
	ErrDeviceUnavailable = errors.New("device not found or has no IP address")

	// ErrCredentialsMissing indicates the shared device service credentials
	// are not configured on the server
	ErrCredentialsMissing = errors.New("device service credentials not configured")

	// ErrNoRecentSnapshot indicates every cache tier missed after a request
	// exhausted its fallback chain
	ErrNoRecentSnapshot = errors.New("no recent snapshot in cache")
)
