// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package energy

import "testing"

func TestCacheKeys(t *testing.T) {
	if got := DeviceKey("42"); got != "device:42" {
		t.Errorf("DeviceKey(42) = %q, want device:42", got)
	}
	if got := DeviceKey("default"); got != "device:default" {
		t.Errorf("DeviceKey(default) = %q, want device:default", got)
	}
	if got := UserKey(7, "42"); got != "user:7:42" {
		t.Errorf("UserKey(7, 42) = %q, want user:7:42", got)
	}
}

func TestStatusLine(t *testing.T) {
	power := 1534.5
	today := 0.34
	month := 12.5
	on := true

	tests := []struct {
		name   string
		res    *Result
		reason string
		want   string
	}{
		{
			name: "complete snapshot",
			res: &Result{
				DeviceID: 1,
				Title:    "Freezer",
				Snapshot: Snapshot{PowerW: &power, TodayKWh: &today, MonthKWh: &month, On: &on},
			},
			want: "STATUS[Freezer]: 1534.5 W agora | Hoje: 0.340 kWh | Mês: 12.500 kWh | Ligado: true",
		},
		{
			name: "missing fields render as zero",
			res: &Result{
				DeviceID: 1,
				Title:    "Freezer",
			},
			want: "STATUS[Freezer]: 0.0 W agora | Hoje: 0.000 kWh | Mês: 0.000 kWh | Ligado: false",
		},
		{
			name: "device name fallback",
			res: &Result{
				DeviceID: 1,
				Snapshot: Snapshot{DeviceName: "Sala"},
			},
			want: "STATUS[Sala]: 0.0 W agora | Hoje: 0.000 kWh | Mês: 0.000 kWh | Ligado: false",
		},
		{
			name: "anonymous device placeholder",
			res:  &Result{DeviceID: 1},
			want: "STATUS[dispositivo]: 0.0 W agora | Hoje: 0.000 kWh | Mês: 0.000 kWh | Ligado: false",
		},
		{
			name:   "unavailable with reason",
			res:    nil,
			reason: "sem dados recentes",
			want:   "STATUS: indisponível (sem dados recentes)",
		},
		{
			name: "unavailable without reason",
			res:  nil,
			want: "STATUS: indisponível",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusLine(tt.res, tt.reason); got != tt.want {
				t.Errorf("StatusLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusLine_ZeroFillDoesNotMutate(t *testing.T) {
	res := &Result{DeviceID: 1, Title: "Freezer"}
	_ = StatusLine(res, "")

	if res.PowerW != nil || res.TodayKWh != nil || res.MonthKWh != nil || res.On != nil {
		t.Error("StatusLine() must not write zero values back into the snapshot")
	}
}
