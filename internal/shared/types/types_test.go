package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgeAt(t *testing.T) {
	at := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{"birthday today", time.Date(2017, 6, 15, 0, 0, 0, 0, time.UTC), 9},
		{"birthday tomorrow", time.Date(2017, 6, 16, 0, 0, 0, 0, time.UTC), 8},
		{"birthday last month", time.Date(2017, 5, 30, 0, 0, 0, 0, time.UTC), 9},
		{"newborn", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeAt(tt.birth, at))
		})
	}
}

func TestParseID(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseID("not-a-uuid")
	assert.Error(t, err)
}

func TestIDScan(t *testing.T) {
	var id ID
	require.NoError(t, id.Scan("8c7d6a55-0f7e-4a53-8a2a-7f0e2d1c9b11"))
	assert.Equal(t, ID("8c7d6a55-0f7e-4a53-8a2a-7f0e2d1c9b11"), id)

	require.NoError(t, id.Scan(nil))
	assert.True(t, id.IsZero())

	assert.Error(t, id.Scan(42))
}

func TestDateUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"plain date", `"2017-03-01"`, time.Date(2017, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"timestamp", `"2017-03-01T10:30:00Z"`, time.Date(2017, 3, 1, 10, 30, 0, 0, time.UTC), false},
		{"null", `null`, time.Time{}, false},
		{"empty", `""`, time.Time{}, false},
		{"garbage", `"01/03/2017"`, time.Time{}, true},
		{"number", `20170301`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(d.Time), "got %v", d.Time)
		})
	}
}
