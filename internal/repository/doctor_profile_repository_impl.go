package repository

import (
	"errors"

	"clinic-appointment-system/internal/domain/entity"
	domainRepo "clinic-appointment-system/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type doctorProfileRepository struct{}

func NewDoctorProfileRepository() domainRepo.DoctorProfileRepository {
	return &doctorProfileRepository{}
}

func (r *doctorProfileRepository) Create(db *gorm.DB, profile *entity.DoctorProfile) error {
	return db.Create(profile).Error
}

func (r *doctorProfileRepository) FindByUserID(db *gorm.DB, doctorID uuid.UUID) (*entity.DoctorProfile, error) {
	var profile entity.DoctorProfile
	err := db.Preload("User").
		Preload("WorkingHours").
		Preload("ExceptionDates").
		Where("user_id = ?", doctorID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *doctorProfileRepository) FindAll(db *gorm.DB) ([]entity.DoctorProfile, error) {
	var profiles []entity.DoctorProfile
	err := db.Preload("User").Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateAvailability merges only the supplied availability fields. Working
// hour and exception sets are replaced wholesale when present in the patch;
// scalar fields update in place. Unrelated doctor fields are never touched.
func (r *doctorProfileRepository) UpdateAvailability(db *gorm.DB, doctorID uuid.UUID, patch *entity.AvailabilityPatch) error {
	if patch == nil || patch.Empty() {
		return nil
	}

	updates := map[string]interface{}{}
	if patch.DailyPatientLimit != nil {
		updates["daily_patient_limit"] = *patch.DailyPatientLimit
	}
	if patch.IsAvailable != nil {
		updates["is_available"] = *patch.IsAvailable
	}
	if len(updates) > 0 {
		if err := db.Model(&entity.DoctorProfile{}).Where("user_id = ?", doctorID).Updates(updates).Error; err != nil {
			return err
		}
	}

	if patch.WorkingHours != nil {
		if err := db.Where("doctor_id = ?", doctorID).Delete(&entity.WorkingHour{}).Error; err != nil {
			return err
		}
		for i := range *patch.WorkingHours {
			(*patch.WorkingHours)[i].ID = 0
			(*patch.WorkingHours)[i].DoctorID = doctorID
		}
		if len(*patch.WorkingHours) > 0 {
			if err := db.Create(patch.WorkingHours).Error; err != nil {
				return err
			}
		}
	}

	if patch.ExceptionDates != nil {
		if err := db.Where("doctor_id = ?", doctorID).Delete(&entity.ExceptionDate{}).Error; err != nil {
			return err
		}
		for i := range *patch.ExceptionDates {
			(*patch.ExceptionDates)[i].ID = 0
			(*patch.ExceptionDates)[i].DoctorID = doctorID
		}
		if len(*patch.ExceptionDates) > 0 {
			if err := db.Create(patch.ExceptionDates).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *doctorProfileRepository) Delete(db *gorm.DB, doctorID uuid.UUID) (int64, error) {
	result := db.Where("user_id = ?", doctorID).Delete(&entity.DoctorProfile{})
	return result.RowsAffected, result.Error
}
