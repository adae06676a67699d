package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// sessions has one complete login..logout session (s1) and one that
// never logs out (s2), given out of time order
func sessions() []LogRecord {
	return []LogRecord{
		{"_time": baseTime.Add(3 * time.Hour), "session": "s2", "_raw": "view"},
		{"_time": baseTime, "session": "s1", "_raw": "login"},
		{"_time": baseTime.Add(30 * time.Second), "session": "s2", "_raw": "login"},
		{"_time": baseTime.Add(time.Minute), "session": "s1", "_raw": "view"},
		{"_time": baseTime.Add(2 * time.Minute), "session": "s1", "_raw": "logout"},
		{"_raw": "orphan"},
	}
}

func TestTransaction(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		eventcounts []interface{}
	}{
		{"group only", "transaction session", []interface{}{int64(3), int64(2)}},
		{"maxpause", "transaction session maxpause=1h", []interface{}{int64(3), int64(1), int64(1)}},
		{"maxspan", "transaction session maxspan=90s", []interface{}{int64(2), int64(1), int64(1), int64(1)}},
		{"maxevents", "transaction session maxevents=2", []interface{}{int64(2), int64(2), int64(1)}},
		{"start and end", `transaction session startswith="login" endswith="logout"`, []interface{}{int64(3), int64(2)}},
		{"eval boundary", `transaction session endswith=eval(_raw = "logout")`, []interface{}{int64(3), int64(2)}},
		{"start only", `transaction session startswith="view"`, []interface{}{int64(1), int64(1), int64(2), int64(1)}},
		{"evict incomplete", `transaction session startswith="login" endswith="logout" keepevicted=false`, []interface{}{int64(3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(t, sessions(), tt.query)
			require.Equal(t, tt.eventcounts, column(result.Data, "eventcount"))
		})
	}
}

func TestTransaction_Record(t *testing.T) {
	result := run(t, sessions(), "transaction session")
	require.Len(t, result.Data, 2)

	s1 := result.Data[0]
	require.Equal(t, "s1", s1["session"])
	require.Equal(t, "login\nview\nlogout", s1["_raw"])
	require.Equal(t, float64(120), s1["duration"])
	require.True(t, baseTime.Equal(s1["_time"].(time.Time)))
	require.NotContains(t, s1, "closed_txn")

	s2 := result.Data[1]
	require.Equal(t, "login\nview", s2["_raw"])
	require.Equal(t, float64(10770), s2["duration"])
}

func TestTransaction_KeepEvicted(t *testing.T) {
	result := run(t, sessions(), `transaction session startswith="login" endswith="logout" keepevicted=true`)
	require.Len(t, result.Data, 2)
	require.Equal(t, []interface{}{"s1", "s2"}, column(result.Data, "session"))
	require.Equal(t, []interface{}{int64(1), int64(0)}, column(result.Data, "closed_txn"))
}

func TestTransaction_TrailingSegmentAfterEnd(t *testing.T) {
	var records []LogRecord
	for i, raw := range []string{"login", "click", "logout", "login", "click"} {
		records = append(records, LogRecord{"_time": baseTime.Add(time.Duration(i) * time.Minute), "session": "s1", "_raw": raw})
	}

	result := run(t, records, `transaction session endswith="logout"`)
	require.Equal(t, []interface{}{int64(3), int64(2)}, column(result.Data, "eventcount"))
	require.Equal(t, "login\nclick", result.Data[1]["_raw"])
	require.NotContains(t, result.Data[1], "closed_txn")
}

func TestTransaction_NoFields(t *testing.T) {
	result := run(t, sessions(), "transaction maxpause=10m")
	require.Equal(t, []interface{}{int64(4), int64(2)}, column(result.Data, "eventcount"))
	require.Equal(t, "view\norphan", result.Data[1]["_raw"])
	require.Equal(t, float64(0), result.Data[1]["duration"])
}
