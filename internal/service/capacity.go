package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CapacityReserver hands out per-day booking capacity for a doctor.
type CapacityReserver interface {
	Reserve(ctx context.Context, doctorID uuid.UUID, day time.Time, limit int) error
	Release(ctx context.Context, doctorID uuid.UUID, day time.Time) error
}

var _ CapacityReserver = (*DailyCapService)(nil)
