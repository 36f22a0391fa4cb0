// FILE: internal/dto/log_dto.go
package dto

import "time"

type LogListResponse struct {
	Id        string                 `json:"id"` // MD5 of the raw line
	Level     string                 `json:"level"`
	Module    string                 `json:"module"`
	Message   string                 `json:"message"`
	CreatedAt time.Time              `json:"created_at"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
