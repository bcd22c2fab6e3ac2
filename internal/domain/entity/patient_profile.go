package entity

import (
	"time"

	"github.com/google/uuid"
)

// PatientProfile represents patient-specific profile data. The medical
// fields are the source of the MedicalSummary snapshot embedded into an
// appointment at booking time.
type PatientProfile struct {
	UserID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"user_id"`
	DateOfBirth       time.Time   `gorm:"type:date" json:"date_of_birth"`
	Gender            string      `gorm:"type:char(1)" json:"gender,omitempty"`
	Address           string      `gorm:"type:text" json:"address,omitempty"`
	BloodType         string      `gorm:"type:varchar(5)" json:"blood_type,omitempty"`
	Allergies         StringSlice `gorm:"type:jsonb" json:"allergies,omitempty"`
	Medications       StringSlice `gorm:"type:jsonb" json:"medications,omitempty"`
	ChronicConditions StringSlice `gorm:"type:jsonb" json:"chronic_conditions,omitempty"`

	// Relationships
	User         User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Appointments []Appointment `gorm:"foreignKey:PatientID" json:"appointments,omitempty"`
}

func (PatientProfile) TableName() string {
	return "patient_profiles"
}

// Gender constants
const (
	GenderMale   = "M"
	GenderFemale = "F"
)
