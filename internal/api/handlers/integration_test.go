package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRangeHeader(t *testing.T) {
	const size = 1000

	tests := []struct {
		name    string
		header  string
		start   int64
		end     int64
		partial bool
		wantErr bool
	}{
		{"no header", "", 0, 999, false, false},
		{"full explicit", "bytes=0-999", 0, 999, true, false},
		{"first byte only", "bytes=0-0", 0, 0, true, false},
		{"open ended", "bytes=500-", 500, 999, true, false},
		{"bounded", "bytes=100-199", 100, 199, true, false},
		{"end beyond size clamps", "bytes=900-2000", 900, 999, true, false},
		{"suffix", "bytes=-100", 900, 999, true, false},
		{"suffix larger than file", "bytes=-5000", 0, 999, true, false},
		{"start past end of file", "bytes=1000-", 0, 0, false, true},
		{"inverted", "bytes=200-100", 0, 0, false, true},
		{"multi range unsupported", "bytes=0-1,5-6", 0, 0, false, true},
		{"not bytes unit", "items=0-10", 0, 0, false, true},
		{"garbage", "bytes=abc", 0, 0, false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end, partial, err := parseRangeHeader(tc.header, size)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
			assert.Equal(t, tc.partial, partial)
		})
	}
}

func TestNewAccessToken(t *testing.T) {
	a, err := newAccessToken()
	require.NoError(t, err)
	b, err := newAccessToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	// 32 random bytes, base64url without padding.
	assert.Len(t, a, 43)
	assert.NotContains(t, a, "=")
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}
