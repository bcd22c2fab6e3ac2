package repository

import (
	"clinic-appointment-system/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DoctorProfileRepository interface {
	Create(db *gorm.DB, profile *entity.DoctorProfile) error
	// FindByUserID loads the profile with working hours and exception dates
	// preloaded; returns nil, nil when the doctor does not exist.
	FindByUserID(db *gorm.DB, userID uuid.UUID) (*entity.DoctorProfile, error)
	FindAll(db *gorm.DB) ([]entity.DoctorProfile, error)
	// UpdateAvailability merges only the supplied availability fields,
	// leaving unrelated doctor fields untouched.
	UpdateAvailability(db *gorm.DB, userID uuid.UUID, patch *entity.AvailabilityPatch) error
	Delete(db *gorm.DB, userID uuid.UUID) (int64, error)
}
