package entity

import "github.com/google/uuid"

// DefaultDailyPatientLimit is applied when a doctor profile is created
// without an explicit cap.
const DefaultDailyPatientLimit = 20

// DoctorProfile represents doctor-specific profile data together with the
// availability settings consumed by slot generation.
type DoctorProfile struct {
	UserID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Specialization    string    `gorm:"type:varchar(100);not null;index" json:"specialization"`
	Biography         string    `gorm:"type:text" json:"biography,omitempty"`
	DailyPatientLimit int       `gorm:"not null;default:20" json:"daily_patient_limit"`
	IsAvailable       bool      `gorm:"not null;default:true;index" json:"is_available"`

	// Relationships
	User           User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	WorkingHours   []WorkingHour   `gorm:"foreignKey:DoctorID" json:"working_hours,omitempty"`
	ExceptionDates []ExceptionDate `gorm:"foreignKey:DoctorID" json:"exception_dates,omitempty"`
}

func (DoctorProfile) TableName() string {
	return "doctor_profiles"
}

// WorkingHourFor returns the working window for the given weekday,
// or nil when the doctor does not work that day.
func (p *DoctorProfile) WorkingHourFor(weekday int) *WorkingHour {
	for i := range p.WorkingHours {
		if p.WorkingHours[i].Weekday == weekday {
			return &p.WorkingHours[i]
		}
	}
	return nil
}

// ExceptionFor returns the exception record for the given date (YYYY-MM-DD),
// or nil when no override exists.
func (p *DoctorProfile) ExceptionFor(date string) *ExceptionDate {
	for i := range p.ExceptionDates {
		if p.ExceptionDates[i].Date.Format("2006-01-02") == date {
			return &p.ExceptionDates[i]
		}
	}
	return nil
}
