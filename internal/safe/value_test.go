package safe

import (
	"math"
	"testing"
)

func TestUint64ToInt64(t *testing.T) {
	tests := []struct {
		name            string
		input           uint64
		expectedValue   int64
		expectedClamped bool
	}{
		{
			name:            "zero value",
			input:           0,
			expectedValue:   0,
			expectedClamped: false,
		},
		{
			name:            "small positive value",
			input:           12345,
			expectedValue:   12345,
			expectedClamped: false,
		},
		{
			name:            "max int64 value",
			input:           math.MaxInt64,
			expectedValue:   math.MaxInt64,
			expectedClamped: false,
		},
		{
			name:            "max int64 plus one (overflow)",
			input:           math.MaxInt64 + 1,
			expectedValue:   math.MaxInt64,
			expectedClamped: true,
		},
		{
			name:            "max uint64 value (overflow)",
			input:           math.MaxUint64,
			expectedValue:   math.MaxInt64,
			expectedClamped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, clamped := Uint64ToInt64(tt.input)
			if value != tt.expectedValue {
				t.Errorf("value = %d, want %d", value, tt.expectedValue)
			}
			if clamped != tt.expectedClamped {
				t.Errorf("clamped = %v, want %v", clamped, tt.expectedClamped)
			}
		})
	}
}

func TestInt64ToUint64(t *testing.T) {
	tests := []struct {
		name            string
		input           int64
		expectedValue   uint64
		expectedClamped bool
	}{
		{
			name:            "zero value",
			input:           0,
			expectedValue:   0,
			expectedClamped: false,
		},
		{
			name:            "positive value",
			input:           42,
			expectedValue:   42,
			expectedClamped: false,
		},
		{
			name:            "max int64 value",
			input:           math.MaxInt64,
			expectedValue:   math.MaxInt64,
			expectedClamped: false,
		},
		{
			name:            "negative value (clamped)",
			input:           -1,
			expectedValue:   0,
			expectedClamped: true,
		},
		{
			name:            "min int64 value (clamped)",
			input:           math.MinInt64,
			expectedValue:   0,
			expectedClamped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, clamped := Int64ToUint64(tt.input)
			if value != tt.expectedValue {
				t.Errorf("value = %d, want %d", value, tt.expectedValue)
			}
			if clamped != tt.expectedClamped {
				t.Errorf("clamped = %v, want %v", clamped, tt.expectedClamped)
			}
		})
	}
}
