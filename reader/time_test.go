package reader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		value  interface{}
		want   time.Time
		wantOK bool
	}{
		{"rfc3339", "2024-01-15T10:30:00Z", want, true},
		{"rfc3339 offset", "2024-01-15T12:30:00+02:00", want, true},
		{"space separated", "2024-01-15 10:30:00", want, true},
		{"fractional", "2024-01-15T10:30:00.5", want.Add(500 * time.Millisecond), true},
		{"apache", "15/Jan/2024:10:30:00 +0000", want, true},
		{"date only", "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"epoch seconds", int64(want.Unix()), want, true},
		{"epoch string", "1705314600", want, true},
		{"epoch millis", float64(want.UnixMilli()), want, true},
		{"time value", want.In(time.FixedZone("x", 3600)), want, true},
		{"garbage", "yesterday", time.Time{}, false},
		{"bool", true, time.Time{}, false},
		{"negative", int64(-5), time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTime(tt.value)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
				require.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	records := []map[string]interface{}{
		{"timestamp": "2024-01-15T10:30:00Z"},
		{"@timestamp": int64(0), "time": "not a time"},
		{"msg": "no time"},
		{"_time": "2024-01-15T11:00:00Z", "timestamp": "2020-01-01T00:00:00Z"},
	}
	normalizeTime(records, "")

	require.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), records[0]["_time"])
	require.Equal(t, time.Unix(0, 0).UTC(), records[1]["_time"])
	_, ok := records[2]["_time"]
	require.False(t, ok)
	require.Equal(t, time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC), records[3]["_time"])
}
