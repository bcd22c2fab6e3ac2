package dto

import (
	"time"

	"github.com/google/uuid"
)

type BookAppointmentRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id" validate:"required"`
	PatientID uuid.UUID `json:"patient_id"`
	StartTime string    `json:"start_time" validate:"required"`
	Notes     string    `json:"notes" validate:"max=1000"`
}

type RescheduleAppointmentRequest struct {
	StartTime string `json:"start_time" validate:"required"`
}

// UpdateAppointmentRequest is the PATCH payload: exactly one of the two
// fields drives the update.
type UpdateAppointmentRequest struct {
	StartTime string `json:"start_time"`
	Status    string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled no_show"`
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled completed cancelled no_show"`
}

type ListAppointmentsRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Status    string `json:"status"`
	From      string `json:"from"`
	To        string `json:"to"`
	Page      int    `json:"page" validate:"min=0"`
	Limit     int    `json:"limit" validate:"min=0,max=100"`
}

type PatientInfoResponse struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type DoctorInfoResponse struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	Phone          string `json:"phone"`
}

type MedicalSummaryResponse struct {
	BloodType         string   `json:"blood_type"`
	Allergies         []string `json:"allergies"`
	Medications       []string `json:"medications"`
	MedicalConditions []string `json:"medical_conditions"`
	ReasonForVisit    string   `json:"reason_for_visit"`
}

type AppointmentResponse struct {
	ID             uuid.UUID              `json:"id"`
	DoctorID       uuid.UUID              `json:"doctor_id"`
	PatientID      uuid.UUID              `json:"patient_id"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        time.Time              `json:"end_time"`
	Status         string                 `json:"status"`
	Notes          string                 `json:"notes,omitempty"`
	PatientInfo    PatientInfoResponse    `json:"patient_info"`
	DoctorInfo     DoctorInfoResponse     `json:"doctor_info"`
	MedicalSummary MedicalSummaryResponse `json:"medical_summary"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}
