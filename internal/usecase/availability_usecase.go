package usecase

import (
	"context"
	"errors"
	"time"

	"clinic-appointment-system/internal/converter"
	"clinic-appointment-system/internal/delivery/dto"
	"clinic-appointment-system/internal/domain/repository"
	"clinic-appointment-system/internal/scheduling"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxAvailabilityRangeDays bounds how far one availability query may span.
const maxAvailabilityRangeDays = 90

var ErrInvalidDateRange = errors.New("invalid date range, use YYYY-MM-DD with from <= to")

type AvailabilityUsecase interface {
	// GetAvailability returns the doctor's free 30-minute slots between the
	// two dates, both inclusive. Empty from defaults to today, empty to
	// defaults to six days after from.
	GetAvailability(ctx context.Context, doctorID uuid.UUID, from, to string) (*dto.AvailabilityResponse, error)
}

type availabilityUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	doctorRepo      repository.DoctorProfileRepository
	appointmentRepo repository.AppointmentRepository
}

func NewAvailabilityUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	doctorRepo repository.DoctorProfileRepository,
	appointmentRepo repository.AppointmentRepository,
) AvailabilityUsecase {
	return &availabilityUsecase{
		db:              db,
		log:             log,
		doctorRepo:      doctorRepo,
		appointmentRepo: appointmentRepo,
	}
}

func (u *availabilityUsecase) GetAvailability(ctx context.Context, doctorID uuid.UUID, from, to string) (*dto.AvailabilityResponse, error) {
	fromDay, toDay, err := resolveDateRange(from, to)
	if err != nil {
		return nil, err
	}

	doctor, err := u.doctorRepo.FindByUserID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	// Load every scheduled appointment on the calendar days the range
	// touches so cap counting on boundary days sees the full picture.
	rangeEnd := toDay.AddDate(0, 0, 1)
	booked, err := u.appointmentRepo.FindActiveForDoctor(u.db.WithContext(ctx), doctorID, fromDay, rangeEnd)
	if err != nil {
		u.log.Warnf("Failed to load appointments for doctor %s: %+v", doctorID, err)
		return nil, err
	}

	slots := scheduling.GenerateSlots(scheduling.GenerateInput{
		Doctor: doctor,
		From:   fromDay,
		To:     rangeEnd,
		Now:    time.Now(),
		Booked: booked,
	})

	return &dto.AvailabilityResponse{
		DoctorID: doctorID.String(),
		From:     fromDay.Format("2006-01-02"),
		To:       toDay.Format("2006-01-02"),
		Slots:    converter.SlotsToResponses(slots),
	}, nil
}

// resolveDateRange parses the inclusive from/to date pair and applies the
// defaults: from = today, to = from + 6 days.
func resolveDateRange(from, to string) (time.Time, time.Time, error) {
	now := time.Now()
	fromDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if from != "" {
		parsed, err := time.ParseInLocation("2006-01-02", from, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidDateRange
		}
		fromDay = parsed
	}

	toDay := fromDay.AddDate(0, 0, 6)
	if to != "" {
		parsed, err := time.ParseInLocation("2006-01-02", to, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidDateRange
		}
		toDay = parsed
	}

	if toDay.Before(fromDay) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	if toDay.Sub(fromDay) > maxAvailabilityRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return fromDay, toDay, nil
}
