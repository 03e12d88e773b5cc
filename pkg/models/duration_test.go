package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	for _, tc := range []struct {
		input time.Duration
		want  string
	}{
		{time.Second, "PT1S"},
		{90 * time.Second, "PT1M30S"},
		{8 * time.Hour, "PT8H"},
		{3661 * time.Second, "PT1H1M1S"},
		{86400 * time.Second, "PT24H"},
		{time.Hour + time.Second, "PT1H1S"},
		{time.Second + 500*time.Millisecond, "PT1S"},
	} {
		got, err := FormatDuration(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}
}

func TestFormatDurationRejectsZero(t *testing.T) {
	for _, input := range []time.Duration{0, -time.Hour, 500 * time.Millisecond} {
		_, err := FormatDuration(input)
		assert.ErrorIs(t, err, ErrZeroDuration, input)
	}
}
