package entity

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// PatientSnapshot is the patient display info embedded into an appointment
// at creation time. It is a point-in-time copy and is never re-synced.
type PatientSnapshot struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// DoctorSnapshot is the doctor display info embedded into an appointment
// at creation time.
type DoctorSnapshot struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	Phone          string `json:"phone"`
}

// MedicalSummary is the patient's medical info captured for the visit.
type MedicalSummary struct {
	BloodType         string   `json:"blood_type"`
	Allergies         []string `json:"allergies"`
	Medications       []string `json:"medications"`
	MedicalConditions []string `json:"medical_conditions"`
	ReasonForVisit    string   `json:"reason_for_visit"`
}

// Appointment represents a booked 30-minute visit. Only status=scheduled
// occupies the doctor's timeline; a partial unique index on
// (doctor_id, start_time) filtered to scheduled enforces that two concurrent
// bookings of the same slot cannot both land.
type Appointment struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DoctorID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"doctor_id"`
	PatientID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"patient_id"`
	StartTime   time.Time         `gorm:"not null;index" json:"start_time"`
	Status      AppointmentStatus `gorm:"type:appointment_status;not null;default:'scheduled';index" json:"status"`
	Notes       string            `gorm:"type:text" json:"notes,omitempty"`
	PatientInfo PatientSnapshot   `gorm:"type:jsonb;serializer:json" json:"patient_info"`
	DoctorInfo  DoctorSnapshot    `gorm:"type:jsonb;serializer:json" json:"doctor_info"`
	MedicalData MedicalSummary    `gorm:"type:jsonb;serializer:json" json:"medical_data"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// IsScheduled checks if the appointment still occupies the timeline
func (a *Appointment) IsScheduled() bool {
	return a.Status == AppointmentStatusScheduled
}

// CanTransitionTo reports whether the status change is allowed.
// Transitions are one-way: scheduled -> {completed, cancelled, no_show}.
// A same-status update is a no-op and allowed.
func (a *Appointment) CanTransitionTo(next AppointmentStatus) bool {
	if a.Status == next {
		return true
	}
	return a.Status == AppointmentStatusScheduled && ValidStatus(next)
}

// EffectiveStatus resolves the status an appointment should be read as at
// the given moment: a scheduled appointment whose start time has passed is
// treated as completed. Callers on the read path persist the promotion.
func (a *Appointment) EffectiveStatus(now time.Time) AppointmentStatus {
	if a.Status == AppointmentStatusScheduled && a.StartTime.Before(now) {
		return AppointmentStatusCompleted
	}
	return a.Status
}
