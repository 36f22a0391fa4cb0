package mapper

import (
	"testing"
	"time"

	"subscription-mailer-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMapper_ToLogListResponses(t *testing.T) {
	entries := []logger.LogEntry{
		{Id: "a", Timestamp: "2025-11-24T10:00:00.000+0700", Level: "INFO", Module: "Tracker", Message: "ok"},
		{Id: "b", Timestamp: "2025-11-24T10:00:00Z", Level: "WARN", Module: "Mailer", Message: "retry"},
		{Id: "c", Timestamp: "garbage", Level: "ERROR"},
	}

	res := NewLogMapper().ToLogListResponses(entries)
	require.Len(t, res, 3)
	assert.True(t, res[0].CreatedAt.Equal(time.Date(2025, 11, 24, 3, 0, 0, 0, time.UTC)))
	assert.True(t, res[1].CreatedAt.Equal(time.Date(2025, 11, 24, 10, 0, 0, 0, time.UTC)))
	assert.True(t, res[2].CreatedAt.IsZero())
	assert.Equal(t, "Tracker", res[0].Module)
}
