package entity

import "github.com/google/uuid"

// AuditLogFilter narrows the admin audit trail listing.
type AuditLogFilter struct {
	UserID *uuid.UUID
	Action string // empty = all actions
	Page   int
	Limit  int
}
