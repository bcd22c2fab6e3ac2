package entity

import (
	"time"

	"github.com/google/uuid"
)

// WorkingHour is a doctor's default working window for one weekday.
// Weekday follows time.Weekday numbering (Sunday = 0). A weekday without a
// row means the doctor does not work that day.
type WorkingHour struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_working_hours_doctor_weekday" json:"doctor_id"`
	Weekday   int       `gorm:"type:smallint;not null;uniqueIndex:uq_working_hours_doctor_weekday" json:"weekday"`
	StartTime string    `gorm:"type:time;not null" json:"start_time"` // "HH:MM", 24h
	EndTime   string    `gorm:"type:time;not null" json:"end_time"`   // "HH:MM", must be after StartTime
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WorkingHour) TableName() string {
	return "working_hours"
}
