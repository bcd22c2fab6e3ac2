package usecase

import (
	"context"
	"errors"
	"time"

	"clinic-appointment-system/internal/converter"
	"clinic-appointment-system/internal/delivery/dto"
	"clinic-appointment-system/internal/domain/entity"
	"clinic-appointment-system/internal/domain/repository"
	"clinic-appointment-system/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrInvalidWorkingHours  = errors.New("working hour start must be before end, format HH:MM")
	ErrInvalidExceptionDate = errors.New("invalid exception date, use YYYY-MM-DD")
	ErrEmptyPatch           = errors.New("no availability fields to update")
)

type DoctorProfileUsecase interface {
	GetDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.DoctorResponse, error)
	ListDoctors(ctx context.Context) ([]dto.DoctorResponse, error)
	UpdateAvailability(ctx context.Context, doctorID uuid.UUID, req *dto.UpdateAvailabilityRequest) (*dto.DoctorResponse, error)
	DeleteDoctor(ctx context.Context, doctorID uuid.UUID) error
}

type doctorProfileUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	doctorRepo   repository.DoctorProfileRepository
	auditService service.AuditService
}

func NewDoctorProfileUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	doctorRepo repository.DoctorProfileRepository,
	auditService service.AuditService,
) DoctorProfileUsecase {
	return &doctorProfileUsecase{
		db:           db,
		log:          log,
		doctorRepo:   doctorRepo,
		auditService: auditService,
	}
}

func (u *doctorProfileUsecase) GetDoctor(ctx context.Context, doctorID uuid.UUID) (*dto.DoctorResponse, error) {
	doctor, err := u.doctorRepo.FindByUserID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}
	return converter.DoctorToResponse(doctor), nil
}

func (u *doctorProfileUsecase) ListDoctors(ctx context.Context) ([]dto.DoctorResponse, error) {
	doctors, err := u.doctorRepo.FindAll(u.db.WithContext(ctx))
	if err != nil {
		u.log.Warnf("Failed to list doctors: %+v", err)
		return nil, err
	}
	return converter.DoctorsToResponses(doctors), nil
}

// UpdateAvailability applies a partial update of the doctor's schedule
// settings. Supplied working hour and exception sets replace the stored
// sets wholesale; omitted fields stay untouched.
func (u *doctorProfileUsecase) UpdateAvailability(ctx context.Context, doctorID uuid.UUID, req *dto.UpdateAvailabilityRequest) (*dto.DoctorResponse, error) {
	userID, roleID, err := requesterFromContext(ctx)
	if err != nil {
		return nil, err
	}
	// Admins manage any doctor, doctors only themselves.
	if roleID != entity.RoleIDAdmin && userID != doctorID {
		return nil, ErrNotAllowed
	}

	doctor, err := u.doctorRepo.FindByUserID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	patch, err := buildAvailabilityPatch(doctorID, req)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := u.doctorRepo.UpdateAvailability(tx, doctorID, patch); err != nil {
		u.log.Errorf("Failed to update availability for doctor %s: %+v", doctorID, err)
		return nil, err
	}

	u.auditService.LogEvent(ctx, tx, &userID, entity.AuditActionAvailabilityUpdate, "doctor_profile", doctorID.String(), entity.JSON{
		"working_hours_changed":   patch.WorkingHours != nil,
		"exception_dates_changed": patch.ExceptionDates != nil,
		"limit_changed":           patch.DailyPatientLimit != nil,
		"is_available_changed":    patch.IsAvailable != nil,
	})

	if err := tx.Commit().Error; err != nil {
		u.log.Errorf("Failed to commit availability update: %+v", err)
		return nil, err
	}

	updated, err := u.doctorRepo.FindByUserID(u.db.WithContext(ctx), doctorID)
	if err != nil || updated == nil {
		u.log.Warnf("Failed to reload doctor %s after update: %+v", doctorID, err)
		return converter.DoctorToResponse(doctor), nil
	}

	u.log.Infof("Availability updated: doctor=%s", doctorID)
	return converter.DoctorToResponse(updated), nil
}

// DeleteDoctor removes the doctor's profile, weekly hours and exceptions.
// Appointments stay behind untouched; their embedded snapshots keep the
// history readable after the profile is gone.
func (u *doctorProfileUsecase) DeleteDoctor(ctx context.Context, doctorID uuid.UUID) error {
	userID, _, err := requesterFromContext(ctx)
	if err != nil {
		return err
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	rows, err := u.doctorRepo.Delete(tx, doctorID)
	if err != nil {
		u.log.Errorf("Failed to delete doctor %s: %+v", doctorID, err)
		return err
	}
	if rows == 0 {
		return ErrDoctorNotFound
	}

	u.auditService.LogEvent(ctx, tx, &userID, entity.AuditActionDoctorDelete, "doctor_profile", doctorID.String(), nil)

	if err := tx.Commit().Error; err != nil {
		u.log.Errorf("Failed to commit doctor deletion: %+v", err)
		return err
	}

	u.log.Infof("Doctor deleted: id=%s", doctorID)
	return nil
}

func buildAvailabilityPatch(doctorID uuid.UUID, req *dto.UpdateAvailabilityRequest) (*entity.AvailabilityPatch, error) {
	patch := &entity.AvailabilityPatch{
		DailyPatientLimit: req.DailyPatientLimit,
		IsAvailable:       req.IsAvailable,
	}

	if req.WorkingHours != nil {
		hours := make([]entity.WorkingHour, 0, len(*req.WorkingHours))
		seen := map[int]bool{}
		for _, wh := range *req.WorkingHours {
			if wh.Weekday < 0 || wh.Weekday > 6 || seen[wh.Weekday] {
				return nil, ErrInvalidWorkingHours
			}
			if !validClockWindow(wh.StartTime, wh.EndTime) {
				return nil, ErrInvalidWorkingHours
			}
			seen[wh.Weekday] = true
			hours = append(hours, entity.WorkingHour{
				DoctorID:  doctorID,
				Weekday:   wh.Weekday,
				StartTime: wh.StartTime,
				EndTime:   wh.EndTime,
			})
		}
		patch.WorkingHours = &hours
	}

	if req.ExceptionDates != nil {
		exceptions := make([]entity.ExceptionDate, 0, len(*req.ExceptionDates))
		seen := map[string]bool{}
		for _, exc := range *req.ExceptionDates {
			date, err := time.Parse("2006-01-02", exc.Date)
			if err != nil || seen[exc.Date] {
				return nil, ErrInvalidExceptionDate
			}
			seen[exc.Date] = true
			exceptions = append(exceptions, entity.ExceptionDate{
				DoctorID:    doctorID,
				Date:        date,
				Reason:      exc.Reason,
				IsAvailable: exc.IsAvailable,
			})
		}
		patch.ExceptionDates = &exceptions
	}

	return patch, nil
}

func validClockWindow(start, end string) bool {
	s, err := time.Parse("15:04", start)
	if err != nil {
		return false
	}
	e, err := time.Parse("15:04", end)
	if err != nil {
		return false
	}
	return s.Before(e)
}
