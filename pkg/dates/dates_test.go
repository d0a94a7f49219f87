package dates

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDay_BucketsByLocation(t *testing.T) {
	ts := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-01", Format(Day(ts, time.UTC)))

	tokyo := time.FixedZone("JST", 9*3600)
	assert.Equal(t, "2026-03-02", Format(Day(ts, tokyo)))
}

func TestParseDayOrTimestamp_SameDay(t *testing.T) {
	morning, err := ParseDayOrTimestamp("2026-03-01T09:00", time.UTC)
	require.NoError(t, err)
	evening, err := ParseDayOrTimestamp("2026-03-01T21:00:00Z", time.UTC)
	require.NoError(t, err)
	plain, err := ParseDayOrTimestamp("2026-03-01", time.UTC)
	require.NoError(t, err)

	assert.True(t, morning.Equal(evening))
	assert.True(t, morning.Equal(plain))
	assert.Equal(t, time.UTC, plain.Location())
}

func TestParseDayOrTimestamp_OffsetShiftsDay(t *testing.T) {
	day, err := ParseDayOrTimestamp("2026-03-01T22:00:00-05:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", Format(day))
}

func TestParseDay_Invalid(t *testing.T) {
	for _, in := range []string{"", "03/01/2026", "2026-13-01", "tomorrow"} {
		_, err := ParseDay(in)
		assert.Error(t, err, in)
	}
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2026-02-10"}`), &v))
	assert.Equal(t, "2026-02-10", Format(v.D.Time))

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2026-02-10"}`, string(out))
}
