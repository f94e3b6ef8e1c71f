// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package energy

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawReading is an opaque vendor payload: field name to reported value. It
// is only ever interpreted by the normalizer below; raw copies are retained
// purely for diagnostic passthrough.
type RawReading map[string]any

// Alias priority lists per logical quantity. Order is significant: the first
// alias present with a non-null value wins, which keeps normalization
// deterministic when a device reports several of them at once.
var (
	powerAliases = []string{"current_power", "current_power_w", "power", "power_w", "active_power", "power_mw"}
	todayAliases = []string{"today_energy", "energy_today", "today_kwh", "today_wh"}
	monthAliases = []string{"month_energy", "energy_month", "month_kwh", "month_wh"}
	onAliases    = []string{"device_on", "is_on", "on", "device_on_state"}
	nameAliases  = []string{"nickname", "alias", "device_name"}
	modelAliases = []string{"model", "device_model"}
)

// Normalize shapes one or more raw vendor payloads into a canonical
// snapshot. For each logical quantity the readings are scanned in order and
// within each reading the alias priority list decides; a quantity missing
// from every reading stays nil.
func Normalize(raws ...RawReading) Snapshot {
	var snap Snapshot

	if v, ok := firstPresent(raws, powerAliases); ok {
		if f, ok := coerceFloat(v); ok {
			w := milliwattsToWatts(f)
			snap.PowerW = &w
		}
	}
	if v, ok := firstPresent(raws, todayAliases); ok {
		if f, ok := coerceFloat(v); ok {
			kwh := wattHoursToKilowattHours(f)
			snap.TodayKWh = &kwh
		}
	}
	if v, ok := firstPresent(raws, monthAliases); ok {
		if f, ok := coerceFloat(v); ok {
			kwh := wattHoursToKilowattHours(f)
			snap.MonthKWh = &kwh
		}
	}
	if v, ok := firstPresent(raws, onAliases); ok {
		if b, ok := coerceBool(v); ok {
			snap.On = &b
		}
	}
	if v, ok := firstPresent(raws, nameAliases); ok {
		if s, ok := v.(string); ok && s != "" {
			snap.DeviceName = s
		}
	}
	if v, ok := firstPresent(raws, modelAliases); ok {
		if s, ok := v.(string); ok && s != "" {
			snap.DeviceModel = s
		}
	}

	return snap
}

// milliwattsToWatts converts a reported power value to watts. Values above
// 1000 are assumed to be milliwatts. This is a magnitude heuristic, not a
// unit tag: P110 firmware reports current_power in mW while other fields
// arrive in W already.
func milliwattsToWatts(x float64) float64 {
	if x > 1000 {
		return x / 1000.0
	}
	return x
}

// wattHoursToKilowattHours converts a reported energy value to kWh. Values
// above 10 are assumed to be watt-hours. Same heuristic caveat as the power
// conversion.
func wattHoursToKilowattHours(x float64) float64 {
	if x > 10 {
		return x / 1000.0
	}
	return x
}

// firstPresent scans readings in order, applying the alias priority list
// within each one, and returns the first non-null value found.
func firstPresent(raws []RawReading, aliases []string) (any, bool) {
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		for _, alias := range aliases {
			if v, ok := raw[alias]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

func coerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case int:
		return x != 0, true
	case int64:
		return x != 0, true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b, true
		}
		return x != "", true
	default:
		return false, false
	}
}
