package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		name     string
		perMin   float64
		expected string
	}{
		{"zero", 0, "0.0/min"},
		{"normal", 45.7, "45.7/min"},
		{"large", 1234.56, "1234.6/min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatRate(tt.perMin))
		})
	}
}

func TestFormatLatencyMS(t *testing.T) {
	tests := []struct {
		name     string
		ms       float64
		expected string
	}{
		{"sub_millisecond", 0.5, "0.5ms"},
		{"milliseconds", 12.34, "12.3ms"},
		{"just_under_a_second", 999.4, "999.4ms"},
		{"one_second", 1000, "1.00s"},
		{"seconds", 2500, "2.50s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatLatencyMS(tt.ms))
		})
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		name     string
		ratio    float64
		expected string
	}{
		{"zero", 0, "0.0%"},
		{"fraction", 0.153, "15.3%"},
		{"full", 1, "100.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatPercent(tt.ratio))
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		n        uint64
		expected string
	}{
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KB"},
		{"megabytes", 5 * 1024 * 1024, "5.0 MB"},
		{"gigabytes", 3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.n))
		})
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		name     string
		n        uint64
		expected string
	}{
		{"small", 42, "42"},
		{"below_threshold", 9999, "9999"},
		{"thousands", 25_500, "25.5K"},
		{"millions", 1_500_000, "1.5M"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatCount(tt.n))
		})
	}
}
