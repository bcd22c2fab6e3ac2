package dto

import (
	"time"

	"github.com/google/uuid"
)

type WorkingHourPayload struct {
	Weekday   int    `json:"weekday" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

type ExceptionDatePayload struct {
	Date        string `json:"date" validate:"required"`
	Reason      string `json:"reason" validate:"max=255"`
	IsAvailable bool   `json:"is_available"`
}

// UpdateAvailabilityRequest is a partial update: nil slices and nil
// scalars leave the stored value untouched, an empty non-nil slice
// clears the stored set.
type UpdateAvailabilityRequest struct {
	WorkingHours      *[]WorkingHourPayload   `json:"working_hours"`
	ExceptionDates    *[]ExceptionDatePayload `json:"exception_dates"`
	DailyPatientLimit *int                    `json:"daily_patient_limit" validate:"omitempty,min=1,max=200"`
	IsAvailable       *bool                   `json:"is_available"`
}

type DoctorResponse struct {
	UserID            uuid.UUID              `json:"user_id"`
	Name              string                 `json:"name"`
	Email             string                 `json:"email"`
	Specialization    string                 `json:"specialization"`
	Biography         string                 `json:"biography,omitempty"`
	DailyPatientLimit int                    `json:"daily_patient_limit"`
	IsAvailable       bool                   `json:"is_available"`
	WorkingHours      []WorkingHourPayload   `json:"working_hours"`
	ExceptionDates    []ExceptionDatePayload `json:"exception_dates"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}
