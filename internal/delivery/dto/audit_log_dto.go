package dto

import (
	"time"

	"github.com/google/uuid"

	"clinic-appointment-system/internal/domain/entity"
)

type ListAuditLogsRequest struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
	Page   int    `json:"page" validate:"min=0"`
	Limit  int    `json:"limit" validate:"min=0,max=100"`
}

type AuditLogResponse struct {
	ID        int64       `json:"id"`
	UserID    *uuid.UUID  `json:"user_id,omitempty"`
	UserName  string      `json:"user_name,omitempty"`
	Action    string      `json:"action"`
	Metadata  entity.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
