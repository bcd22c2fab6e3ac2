package repository

import (
	"time"

	"clinic-appointment-system/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentRepository interface {
	// Create inserts the appointment. The partial unique index on
	// (doctor_id, start_time) filtered to status=scheduled is the
	// authoritative double-booking guard; callers inspect the returned
	// error for a unique violation.
	Create(db *gorm.DB, appointment *entity.Appointment) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error)
	// FindActiveForDoctor returns the doctor's scheduled appointments with
	// start_time in the half-open range [from, to), ordered chronologically.
	FindActiveForDoctor(db *gorm.DB, doctorID uuid.UUID, from, to time.Time) ([]entity.Appointment, error)
	// CountScheduledOnDay counts scheduled appointments on the calendar day
	// containing day. exclude, when non-nil, is skipped (reschedule case).
	CountScheduledOnDay(db *gorm.DB, doctorID uuid.UUID, day time.Time, exclude *uuid.UUID) (int64, error)
	FindAll(db *gorm.DB, filter *entity.AppointmentFilter) ([]entity.Appointment, int64, error)
	// UpdateStartTime moves an appointment ONLY while it is still
	// scheduled, returning affected rows so a concurrent cancel or
	// completion surfaces as 0 rows; the unique index also
	// guards this write.
	UpdateStartTime(db *gorm.DB, id uuid.UUID, startTime time.Time) (int64, error)
	// UpdateStatus performs a conditional transition and returns affected
	// rows: 1 = transitioned, 0 = the appointment was not in the expected
	// prior status.
	UpdateStatus(db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus) (int64, error)
	// MarkCompleted promotes a past-due scheduled appointment to completed.
	// Returns affected rows; 0 means another reader already promoted it or
	// the appointment is not past due.
	MarkCompleted(db *gorm.DB, id uuid.UUID, now time.Time) (int64, error)
}
