package repository

import (
	"errors"
	"time"

	"clinic-appointment-system/internal/domain/entity"
	domainRepo "clinic-appointment-system/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type appointmentRepository struct{}

func NewAppointmentRepository() domainRepo.AppointmentRepository {
	return &appointmentRepository{}
}

func (r *appointmentRepository) Create(db *gorm.DB, appointment *entity.Appointment) error {
	return db.Create(appointment).Error
}

func (r *appointmentRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := db.Where("id = ?", id).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

func (r *appointmentRepository) FindActiveForDoctor(db *gorm.DB, doctorID uuid.UUID, from, to time.Time) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := db.
		Where("doctor_id = ? AND status = ? AND start_time >= ? AND start_time < ?",
			doctorID, entity.AppointmentStatusScheduled, from, to).
		Order("start_time ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) CountScheduledOnDay(db *gorm.DB, doctorID uuid.UUID, day time.Time, exclude *uuid.UUID) (int64, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := db.Model(&entity.Appointment{}).
		Where("doctor_id = ? AND status = ? AND start_time >= ? AND start_time < ?",
			doctorID, entity.AppointmentStatusScheduled, dayStart, dayEnd)
	if exclude != nil {
		query = query.Where("id != ?", *exclude)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *appointmentRepository) FindAll(db *gorm.DB, filter *entity.AppointmentFilter) ([]entity.Appointment, int64, error) {
	query := db.Model(&entity.Appointment{})

	if filter != nil {
		if filter.DoctorID != nil {
			query = query.Where("doctor_id = ?", *filter.DoctorID)
		}
		if filter.PatientID != nil {
			query = query.Where("patient_id = ?", *filter.PatientID)
		}
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.From != nil {
			query = query.Where("start_time >= ?", *filter.From)
		}
		if filter.To != nil {
			query = query.Where("start_time < ?", *filter.To)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter != nil && filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.Limit).Limit(filter.Limit)
	}

	var appointments []entity.Appointment
	err := query.Order("start_time DESC").Find(&appointments).Error
	if err != nil {
		return nil, 0, err
	}
	return appointments, total, nil
}

// UpdateStartTime moves the appointment only while it is still scheduled,
// so a cancel landing between the usecase's read and this write cannot be
// overwritten; 0 rows means the appointment left the scheduled state.
func (r *appointmentRepository) UpdateStartTime(db *gorm.DB, id uuid.UUID, startTime time.Time) (int64, error) {
	result := db.Model(&entity.Appointment{}).
		Where("id = ? AND status = ?", id, entity.AppointmentStatusScheduled).
		Updates(map[string]interface{}{
			"start_time": startTime,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// UpdateStatus transitions status atomically ONLY from the expected prior
// status. Returns affected rows: 1 = transitioned, 0 = lost a race or the
// transition was invalid against the stored row.
func (r *appointmentRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus) (int64, error) {
	result := db.Model(&entity.Appointment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// MarkCompleted persists the lazy read-side promotion of a past-due
// scheduled appointment. The start_time guard keeps a stale caller from
// completing a future appointment.
func (r *appointmentRepository) MarkCompleted(db *gorm.DB, id uuid.UUID, now time.Time) (int64, error) {
	result := db.Model(&entity.Appointment{}).
		Where("id = ? AND status = ? AND start_time < ?", id, entity.AppointmentStatusScheduled, now).
		Updates(map[string]interface{}{
			"status":     entity.AppointmentStatusCompleted,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}
