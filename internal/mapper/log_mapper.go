package mapper

import (
	"time"

	"subscription-mailer-be/internal/dto"
	"subscription-mailer-be/internal/pkg/logger"
)

// zap's ISO8601 encoder
const zapTimeLayout = "2006-01-02T15:04:05.000Z0700"

type LogMapper struct{}

func NewLogMapper() *LogMapper {
	return &LogMapper{}
}

func (m *LogMapper) ToLogListResponses(entries []logger.LogEntry) []*dto.LogListResponse {
	res := make([]*dto.LogListResponse, 0, len(entries))
	for _, l := range entries {
		ts, err := time.Parse(zapTimeLayout, l.Timestamp)
		if err != nil {
			ts, _ = time.Parse(time.RFC3339, l.Timestamp)
		}
		res = append(res, &dto.LogListResponse{
			Id:        l.Id,
			Level:     l.Level,
			Module:    l.Module,
			Message:   l.Message,
			CreatedAt: ts,
			Details:   l.Details,
		})
	}
	return res
}
