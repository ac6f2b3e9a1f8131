package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowIsCurrent(t *testing.T) {
	before := time.Now().UnixMilli()
	got := Now()
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}

func TestRoundTrip(t *testing.T) {
	original := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	ms := ToUnixMs(original)
	back := FromUnixMs(ms)

	assert.True(t, original.Equal(back))
}

func TestZeroValues(t *testing.T) {
	assert.Equal(t, int64(0), ToUnixMs(time.Time{}))
	assert.True(t, FromUnixMs(0).IsZero())
	assert.Equal(t, "", Format(0))
}

func TestFormat(t *testing.T) {
	ms := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()
	assert.Equal(t, "2024-01-02T03:04:05Z", Format(ms))
}

func TestBetween(t *testing.T) {
	tests := []struct {
		name string
		from int64
		to   int64
		want time.Duration
	}{
		{"normal interval", 1000, 1500, 500 * time.Millisecond},
		{"same instant", 1000, 1000, 0},
		{"negative interval", 1500, 1000, 0},
		{"unset from", 0, 1000, 0},
		{"unset to", 1000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Between(tt.from, tt.to))
		})
	}
}
