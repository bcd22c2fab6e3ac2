package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic-appointment-system/internal/converter"
	"clinic-appointment-system/internal/delivery/dto"
	"clinic-appointment-system/internal/delivery/http/middleware"
	"clinic-appointment-system/internal/domain/entity"
	"clinic-appointment-system/internal/domain/repository"
	"clinic-appointment-system/internal/scheduling"
	"clinic-appointment-system/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrPatientNotFound         = errors.New("patient not found")
	ErrMissingPatient          = errors.New("patient id is required")
	ErrInvalidStartTime        = errors.New("invalid start time, use RFC 3339")
	ErrPastStartTime           = errors.New("cannot book an appointment in the past")
	ErrSlotTaken               = errors.New("this time slot is already booked")
	ErrDoctorNotAccepting      = errors.New("doctor is not accepting appointments")
	ErrNotAllowed              = errors.New("you do not have permission to manage this appointment")
	ErrInvalidStatus           = errors.New("invalid appointment status")
	ErrInvalidFilter           = errors.New("invalid list filter")
	ErrInvalidStatusTransition = errors.New("appointment status can only change while scheduled")
	ErrAppointmentNotActive    = errors.New("appointment is no longer scheduled")
)

type AppointmentUsecase interface {
	Book(ctx context.Context, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error)
	Reschedule(ctx context.Context, appointmentID uuid.UUID, req *dto.RescheduleAppointmentRequest) (*dto.AppointmentResponse, error)
	Cancel(ctx context.Context, appointmentID uuid.UUID) error
	UpdateStatus(ctx context.Context, appointmentID uuid.UUID, req *dto.UpdateAppointmentStatusRequest) (*dto.AppointmentResponse, error)
	Get(ctx context.Context, appointmentID uuid.UUID) (*dto.AppointmentResponse, error)
	List(ctx context.Context, req *dto.ListAppointmentsRequest) ([]dto.AppointmentResponse, int64, error)
}

type appointmentUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	appointmentRepo repository.AppointmentRepository
	doctorRepo      repository.DoctorProfileRepository
	patientRepo     repository.PatientProfileRepository
	capService      service.CapacityReserver
	auditService    service.AuditService
}

func NewAppointmentUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorProfileRepository,
	patientRepo repository.PatientProfileRepository,
	capService service.CapacityReserver,
	auditService service.AuditService,
) AppointmentUsecase {
	return &appointmentUsecase{
		db:              db,
		log:             log,
		appointmentRepo: appointmentRepo,
		doctorRepo:      doctorRepo,
		patientRepo:     patientRepo,
		capService:      capService,
		auditService:    auditService,
	}
}

// Book creates a scheduled appointment.
//
// Flow:
// 1. Resolve the patient: patients always book for themselves
// 2. Validate doctor, patient and the requested start time
// 3. Advisory conflict + daily cap check against current DB state
// 4. Reserve one unit of the doctor's daily capacity in Redis
// 5. Insert; the partial unique index is the authoritative slot guard
// 6. If the insert fails -> compensate: release the Redis reservation
func (u *appointmentUsecase) Book(ctx context.Context, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error) {
	userID, roleID, err := requesterFromContext(ctx)
	if err != nil {
		return nil, err
	}

	patientID := req.PatientID
	if roleID == entity.RoleIDPatient {
		patientID = userID
	}
	if patientID == uuid.Nil {
		return nil, ErrMissingPatient
	}

	startTime, err := parseStartTime(req.StartTime)
	if err != nil {
		return nil, err
	}
	if !startTime.After(time.Now()) {
		return nil, ErrPastStartTime
	}

	doctor, err := u.doctorRepo.FindByUserID(u.db.WithContext(ctx), req.DoctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", req.DoctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}
	if !doctor.IsAvailable {
		return nil, ErrDoctorNotAccepting
	}

	patient, err := u.patientRepo.FindByUserID(u.db.WithContext(ctx), patientID)
	if err != nil {
		u.log.Warnf("Failed to find patient %s: %+v", patientID, err)
		return nil, err
	}
	if patient == nil {
		return nil, ErrPatientNotFound
	}

	// Advisory checks. These give clean errors on the common path; the
	// real race protection is the unique index and the Redis cap counter.
	if err := u.checkSlotFree(ctx, req.DoctorID, startTime, nil); err != nil {
		return nil, err
	}
	if err := u.checkDailyCap(ctx, doctor, startTime, nil); err != nil {
		return nil, err
	}

	if err := u.capService.Reserve(ctx, req.DoctorID, startTime, doctor.DailyPatientLimit); err != nil {
		if errors.Is(err, service.ErrDailyCapReached) {
			return nil, service.ErrDailyCapReached
		}
		u.log.Warnf("Failed Redis capacity reservation for doctor %s: %+v", req.DoctorID, err)
		return nil, err
	}

	appointment := &entity.Appointment{
		DoctorID:  req.DoctorID,
		PatientID: patientID,
		StartTime: startTime,
		Status:    entity.AppointmentStatusScheduled,
		Notes:     req.Notes,
		PatientInfo: entity.PatientSnapshot{
			Name:  patient.User.FullName,
			Phone: patient.User.Phone,
			Email: patient.User.Email,
		},
		DoctorInfo: entity.DoctorSnapshot{
			Name:           doctor.User.FullName,
			Specialization: doctor.Specialization,
			Phone:          doctor.User.Phone,
		},
		MedicalData: entity.MedicalSummary{
			BloodType:         patient.BloodType,
			Allergies:         patient.Allergies,
			Medications:       patient.Medications,
			MedicalConditions: patient.ChronicConditions,
			ReasonForVisit:    req.Notes,
		},
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := u.appointmentRepo.Create(tx, appointment); err != nil {
		u.releaseCapacity(req.DoctorID, startTime)
		if isDuplicateKeyError(err, "uq_appointments_doctor_start_scheduled") {
			return nil, ErrSlotTaken
		}
		u.log.Errorf("Failed to insert appointment: %+v", err)
		return nil, err
	}

	u.auditService.LogEvent(ctx, tx, &userID, entity.AuditActionAppointmentBook, "appointment", appointment.ID.String(), entity.JSON{
		"doctor_id":  req.DoctorID.String(),
		"patient_id": patientID.String(),
		"start_time": startTime.Format(time.RFC3339),
	})

	if err := tx.Commit().Error; err != nil {
		u.releaseCapacity(req.DoctorID, startTime)
		u.log.Errorf("Failed to commit appointment booking: %+v", err)
		return nil, err
	}

	u.log.Infof("Appointment booked: id=%s, doctor=%s, start=%s", appointment.ID, req.DoctorID, startTime.Format(time.RFC3339))
	return converter.AppointmentToResponse(appointment), nil
}

// Reschedule moves a scheduled appointment to a new start time. The new
// slot is validated the same way a fresh booking is, except the
// appointment itself is excluded from conflict and cap counting.
func (u *appointmentUsecase) Reschedule(ctx context.Context, appointmentID uuid.UUID, req *dto.RescheduleAppointmentRequest) (*dto.AppointmentResponse, error) {
	userID, roleID, err := requesterFromContext(ctx)
	if err != nil {
		return nil, err
	}

	appointment, err := u.appointmentRepo.FindByID(u.db.WithContext(ctx), appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	if !canManageAppointment(appointment, userID, roleID) {
		return nil, ErrNotAllowed
	}

	u.resolveEffectiveStatus(ctx, appointment)

	if !appointment.IsScheduled() {
		return nil, ErrAppointmentNotActive
	}

	startTime, err := parseStartTime(req.StartTime)
	if err != nil {
		return nil, err
	}
	if !startTime.After(time.Now()) {
		return nil, ErrPastStartTime
	}

	doctor, err := u.doctorRepo.FindByUserID(u.db.WithContext(ctx), appointment.DoctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", appointment.DoctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	if err := u.checkSlotFree(ctx, appointment.DoctorID, startTime, &appointment.ID); err != nil {
		return nil, err
	}
	if err := u.checkDailyCap(ctx, doctor, startTime, &appointment.ID); err != nil {
		return nil, err
	}

	oldStart := appointment.StartTime
	dayChanged := !sameDay(oldStart, startTime)

	if dayChanged {
		if err := u.capService.Reserve(ctx, appointment.DoctorID, startTime, doctor.DailyPatientLimit); err != nil {
			if errors.Is(err, service.ErrDailyCapReached) {
				return nil, service.ErrDailyCapReached
			}
			u.log.Warnf("Failed Redis capacity reservation for doctor %s: %+v", appointment.DoctorID, err)
			return nil, err
		}
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	rows, err := u.appointmentRepo.UpdateStartTime(tx, appointmentID, startTime)
	if err != nil {
		if dayChanged {
			u.releaseCapacity(appointment.DoctorID, startTime)
		}
		if isDuplicateKeyError(err, "uq_appointments_doctor_start_scheduled") {
			return nil, ErrSlotTaken
		}
		u.log.Errorf("Failed to reschedule appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	// 0 rows: a cancel or completion won the race after our read.
	if rows == 0 {
		if dayChanged {
			u.releaseCapacity(appointment.DoctorID, startTime)
		}
		return nil, ErrAppointmentNotActive
	}

	u.auditService.LogEvent(ctx, tx, &userID, entity.AuditActionAppointmentReschedule, "appointment", appointmentID.String(), entity.JSON{
		"from": oldStart.Format(time.RFC3339),
		"to":   startTime.Format(time.RFC3339),
	})

	if err := tx.Commit().Error; err != nil {
		if dayChanged {
			u.releaseCapacity(appointment.DoctorID, startTime)
		}
		u.log.Errorf("Failed to commit reschedule: %+v", err)
		return nil, err
	}

	if dayChanged {
		u.releaseCapacity(appointment.DoctorID, oldStart)
	}

	appointment.StartTime = startTime
	u.log.Infof("Appointment rescheduled: id=%s, from=%s, to=%s", appointmentID, oldStart.Format(time.RFC3339), startTime.Format(time.RFC3339))
	return converter.AppointmentToResponse(appointment), nil
}

// Cancel marks a scheduled appointment cancelled. The record is never
// deleted; the slot and the day's capacity open up again. Cancelling an
// already cancelled appointment is a no-op.
func (u *appointmentUsecase) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	userID, roleID, err := requesterFromContext(ctx)
	if err != nil {
		return err
	}

	appointment, err := u.appointmentRepo.FindByID(u.db.WithContext(ctx), appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return err
	}
	if appointment == nil {
		return ErrAppointmentNotFound
	}
	if !canManageAppointment(appointment, userID, roleID) {
		return ErrNotAllowed
	}

	// A past-due scheduled appointment completes lazily here too; it can
	// no longer be cancelled.
	u.resolveEffectiveStatus(ctx, appointment)

	if appointment.Status == entity.AppointmentStatusCancelled {
		return nil
	}
	if !appointment.IsScheduled() {
		return ErrInvalidStatusTransition
	}

	rows, err := u.appointmentRepo.UpdateStatus(u.db.WithContext(ctx), appointmentID,
		entity.AppointmentStatusScheduled, entity.AppointmentStatusCancelled)
	if err != nil {
		u.log.Warnf("Failed to cancel appointment %s: %+v", appointmentID, err)
		return err
	}
	if rows == 0 {
		// Lost a race with another status change.
		return ErrInvalidStatusTransition
	}

	if appointment.StartTime.After(time.Now()) {
		u.releaseCapacity(appointment.DoctorID, appointment.StartTime)
	}

	u.auditService.LogEvent(ctx, u.db.WithContext(ctx), &userID, entity.AuditActionAppointmentCancel, "appointment", appointmentID.String(), entity.JSON{
		"start_time": appointment.StartTime.Format(time.RFC3339),
	})

	u.log.Infof("Appointment cancelled: id=%s, doctor=%s", appointmentID, appointment.DoctorID)
	return nil
}

// UpdateStatus applies a one-way status transition. Cancellation is open
// to everyone who can manage the appointment; other transitions are
// restricted to admins and the assigned doctor. A same-status update is
// an idempotent no-op.
func (u *appointmentUsecase) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, req *dto.UpdateAppointmentStatusRequest) (*dto.AppointmentResponse, error) {
	userID, roleID, err := requesterFromContext(ctx)
	if err != nil {
		return nil, err
	}

	next := entity.AppointmentStatus(req.Status)
	if !entity.ValidStatus(next) {
		return nil, ErrInvalidStatus
	}

	appointment, err := u.appointmentRepo.FindByID(u.db.WithContext(ctx), appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}

	if next == entity.AppointmentStatusCancelled {
		if !canManageAppointment(appointment, userID, roleID) {
			return nil, ErrNotAllowed
		}
	} else if roleID != entity.RoleIDAdmin && !(roleID == entity.RoleIDDoctor && appointment.DoctorID == userID) {
		return nil, ErrNotAllowed
	}

	if appointment.Status == next {
		return converter.AppointmentToResponse(appointment), nil
	}
	if !appointment.CanTransitionTo(next) {
		return nil, ErrInvalidStatusTransition
	}

	rows, err := u.appointmentRepo.UpdateStatus(u.db.WithContext(ctx), appointmentID,
		entity.AppointmentStatusScheduled, next)
	if err != nil {
		u.log.Warnf("Failed to update appointment %s status: %+v", appointmentID, err)
		return nil, err
	}
	if rows == 0 {
		return nil, ErrInvalidStatusTransition
	}

	if next != entity.AppointmentStatusScheduled && appointment.StartTime.After(time.Now()) {
		u.releaseCapacity(appointment.DoctorID, appointment.StartTime)
	}

	u.auditService.LogEvent(ctx, u.db.WithContext(ctx), &userID, entity.AuditActionAppointmentStatus, "appointment", appointmentID.String(), entity.JSON{
		"from": string(appointment.Status),
		"to":   string(next),
	})

	appointment.Status = next
	u.log.Infof("Appointment status updated: id=%s, status=%s", appointmentID, next)
	return converter.AppointmentToResponse(appointment), nil
}

// Get returns one appointment, visible to admins, the patient who owns it
// and the assigned doctor.
func (u *appointmentUsecase) Get(ctx context.Context, appointmentID uuid.UUID) (*dto.AppointmentResponse, error) {
	userID, roleID, err := requesterFromContext(ctx)
	if err != nil {
		return nil, err
	}

	appointment, err := u.appointmentRepo.FindByID(u.db.WithContext(ctx), appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	if !canManageAppointment(appointment, userID, roleID) {
		return nil, ErrNotAllowed
	}

	u.resolveEffectiveStatus(ctx, appointment)
	return converter.AppointmentToResponse(appointment), nil
}

// List returns appointments scoped by role: patients see their own,
// doctors see their own calendar, admins see everything the filter allows.
func (u *appointmentUsecase) List(ctx context.Context, req *dto.ListAppointmentsRequest) ([]dto.AppointmentResponse, int64, error) {
	userID, roleID, err := requesterFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	filter := &entity.AppointmentFilter{
		Page:  req.Page,
		Limit: req.Limit,
	}

	switch roleID {
	case entity.RoleIDPatient:
		filter.PatientID = &userID
	case entity.RoleIDDoctor:
		filter.DoctorID = &userID
	default:
		if req.DoctorID != "" {
			id, err := uuid.Parse(req.DoctorID)
			if err != nil {
				return nil, 0, ErrInvalidFilter
			}
			filter.DoctorID = &id
		}
		if req.PatientID != "" {
			id, err := uuid.Parse(req.PatientID)
			if err != nil {
				return nil, 0, ErrInvalidFilter
			}
			filter.PatientID = &id
		}
	}

	if req.Status != "" {
		status := entity.AppointmentStatus(req.Status)
		if !entity.ValidStatus(status) {
			return nil, 0, ErrInvalidStatus
		}
		filter.Status = status
	}
	if req.From != "" {
		from, err := parseWhen(req.From)
		if err != nil {
			return nil, 0, ErrInvalidFilter
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := parseWhen(req.To)
		if err != nil {
			return nil, 0, ErrInvalidFilter
		}
		filter.To = &to
	}

	appointments, total, err := u.appointmentRepo.FindAll(u.db.WithContext(ctx), filter)
	if err != nil {
		u.log.Warnf("Failed to list appointments: %+v", err)
		return nil, 0, err
	}

	for i := range appointments {
		u.resolveEffectiveStatus(ctx, &appointments[i])
	}

	return converter.AppointmentsToResponses(appointments), total, nil
}

// resolveEffectiveStatus lazily promotes a past-due scheduled appointment
// to completed and persists the promotion. Persistence failure downgrades
// to a warning; the caller still sees the effective status.
func (u *appointmentUsecase) resolveEffectiveStatus(ctx context.Context, appointment *entity.Appointment) {
	now := time.Now()
	effective := appointment.EffectiveStatus(now)
	if effective == appointment.Status {
		return
	}

	if _, err := u.appointmentRepo.MarkCompleted(u.db.WithContext(ctx), appointment.ID, now); err != nil {
		u.log.Warnf("Failed to persist completion of appointment %s (non-fatal): %+v", appointment.ID, err)
	}
	appointment.Status = effective
}

// checkSlotFree is the advisory overlap check: any scheduled appointment
// within one slot length of start collides with it.
func (u *appointmentUsecase) checkSlotFree(ctx context.Context, doctorID uuid.UUID, start time.Time, exclude *uuid.UUID) error {
	nearby, err := u.appointmentRepo.FindActiveForDoctor(u.db.WithContext(ctx), doctorID,
		start.Add(-scheduling.SlotDuration), start.Add(scheduling.SlotDuration))
	if err != nil {
		u.log.Warnf("Failed to load appointments around %s for doctor %s: %+v", start.Format(time.RFC3339), doctorID, err)
		return err
	}
	if scheduling.ConflictsWithAny(start, nearby, exclude) {
		return ErrSlotTaken
	}
	return nil
}

func (u *appointmentUsecase) checkDailyCap(ctx context.Context, doctor *entity.DoctorProfile, start time.Time, exclude *uuid.UUID) error {
	count, err := u.appointmentRepo.CountScheduledOnDay(u.db.WithContext(ctx), doctor.UserID, start, exclude)
	if err != nil {
		u.log.Warnf("Failed to count appointments for doctor %s: %+v", doctor.UserID, err)
		return err
	}
	if count >= int64(doctor.DailyPatientLimit) {
		return service.ErrDailyCapReached
	}
	return nil
}

// releaseCapacity returns one unit of daily capacity to Redis. Runs on a
// detached context so compensation survives a cancelled request. Failures
// are logged only; the next startup sync repairs the counter.
func (u *appointmentUsecase) releaseCapacity(doctorID uuid.UUID, day time.Time) {
	syncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.capService.Release(syncCtx, doctorID, day); err != nil {
		u.log.Warnf("Failed to release Redis capacity for doctor %s on %s (non-fatal): %+v", doctorID, day.Format("2006-01-02"), err)
	}
}

func requesterFromContext(ctx context.Context) (uuid.UUID, int, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, 0, errors.New("user not found in context")
	}
	roleID, ok := middleware.GetRoleIDFromContext(ctx)
	if !ok {
		return uuid.Nil, 0, errors.New("role not found in context")
	}
	return userID, roleID, nil
}

// canManageAppointment implements the shared visibility rule: admins,
// the owning patient and the assigned doctor.
func canManageAppointment(a *entity.Appointment, userID uuid.UUID, roleID int) bool {
	if roleID == entity.RoleIDAdmin {
		return true
	}
	return a.PatientID == userID || a.DoctorID == userID
}

func parseStartTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, ErrInvalidStartTime
	}
	return t.Truncate(time.Minute), nil
}

// parseWhen accepts RFC 3339 timestamps and bare dates for list filters.
func parseWhen(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation
// containing the specified constraint name
func isDuplicateKeyError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// PostgreSQL error code 23505 = unique_violation
		if pgErr.Code == "23505" && strings.Contains(strings.ToLower(pgErr.ConstraintName), strings.ToLower(constraintName)) {
			return true
		}
	}
	return false
}
