package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDuration(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  string
	}{
		{"exactly 30 days", "2025-01-01T00:00:00Z", "2025-01-31T00:00:00Z", "30 days"},
		{"exactly 31 days", "2025-01-01T00:00:00Z", "2025-02-01T00:00:00Z", "1 month"},
		{"exactly 365 days", "2025-01-01T00:00:00Z", "2026-01-01T00:00:00Z", "1 year"},
		{"one day is still plural", "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z", "1 days"},
		{"same instant", "2025-01-01T00:00:00Z", "2025-01-01T00:00:00Z", "0 days"},
		{"partial day floors", "2025-01-01T00:00:00Z", "2025-01-31T23:59:59Z", "30 days"},
		{"quarter", "2025-01-01T00:00:00Z", "2025-04-01T00:00:00Z", "3 months"},
		{"364 days", "2025-01-01T00:00:00Z", "2025-12-31T00:00:00Z", "12 months"},
		{"two years", "2025-01-01T00:00:00Z", "2027-01-01T00:00:00Z", "2 years"},
		{"fractional seconds", "2025-01-01T00:00:00.000Z", "2025-01-31T00:00:00.000Z", "30 days"},
		{"offset timestamps", "2025-01-01T07:00:00+07:00", "2025-01-31T00:00:00Z", "30 days"},
		{"date only", "2025-01-01", "2025-03-02", "2 months"},
		{"missing start", "", "2025-01-31T00:00:00Z", UnknownDuration},
		{"missing end", "2025-01-01T00:00:00Z", "", UnknownDuration},
		{"malformed", "yesterday", "2025-01-31T00:00:00Z", UnknownDuration},
		{"reversed", "2025-01-31T00:00:00Z", "2025-01-01T00:00:00Z", UnknownDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateDuration(tt.start, tt.end))
		})
	}
}
