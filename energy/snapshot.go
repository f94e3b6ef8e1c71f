// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package energy holds the canonical energy snapshot model and the resolver
// that decides between live device reads and cached snapshots.
package energy

import (
	"fmt"
	"strconv"
)

// Snapshot is the canonical normalized energy/state reading for one device
// at one instant. Numeric fields are always in canonical units (watts, kWh)
// regardless of what the device reported. Nil means the source never
// reported the quantity; it is never collapsed to zero.
type Snapshot struct {
	PowerW      *float64 `json:"instantaneous_power_w,omitempty"`
	TodayKWh    *float64 `json:"energy_today_kwh,omitempty"`
	MonthKWh    *float64 `json:"energy_month_kwh,omitempty"`
	On          *bool    `json:"is_on,omitempty"`
	DeviceName  string   `json:"device_name,omitempty"`
	DeviceModel string   `json:"device_model,omitempty"`
}

// Result is a snapshot enriched with the device metadata the caller asked
// about. Title and IP stay empty when the cache answered for a device the
// directory could not resolve.
type Result struct {
	DeviceID int64  `json:"device_id"`
	Title    string `json:"title,omitempty"`
	IP       string `json:"ip,omitempty"`
	Snapshot
}

// DeviceKey builds the public, device-scoped cache key. It is written by the
// ingestion endpoint and by live reads on behalf of anonymous requesters.
func DeviceKey(deviceID string) string {
	return "device:" + deviceID
}

// UserKey builds the private cache key for a live read performed on behalf
// of an authenticated requester.
func UserKey(userID int64, deviceID string) string {
	return "user:" + strconv.FormatInt(userID, 10) + ":" + deviceID
}

// StatusLine renders a result as the single human-readable line handed to
// the chat collaborator. Missing numeric fields render as zero; that
// zero-fill is display-only and never written back to a snapshot.
func StatusLine(res *Result, reason string) string {
	if res == nil {
		if reason != "" {
			return fmt.Sprintf("STATUS: indisponível (%s)", reason)
		}
		return "STATUS: indisponível"
	}

	name := res.Title
	if name == "" {
		name = res.DeviceName
	}
	if name == "" {
		name = "dispositivo"
	}

	var power, today, month float64
	if res.PowerW != nil {
		power = *res.PowerW
	}
	if res.TodayKWh != nil {
		today = *res.TodayKWh
	}
	if res.MonthKWh != nil {
		month = *res.MonthKWh
	}
	on := res.On != nil && *res.On

	return fmt.Sprintf("STATUS[%s]: %.1f W agora | Hoje: %.3f kWh | Mês: %.3f kWh | Ligado: %t",
		name, power, today, month, on)
}
