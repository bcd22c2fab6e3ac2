package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExceptionDate overrides a doctor's weekly pattern for one specific date,
// most commonly marking a working day as off. An exception with
// IsAvailable=true on a day without working hours does not add hours; slot
// generation never invents a time window for it.
type ExceptionDate struct {
	ID          int       `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_exception_dates_doctor_date" json:"doctor_id"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:uq_exception_dates_doctor_date" json:"date"`
	Reason      string    `gorm:"type:varchar(200)" json:"reason,omitempty"`
	IsAvailable bool      `gorm:"not null;default:false" json:"is_available"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ExceptionDate) TableName() string {
	return "exception_dates"
}
