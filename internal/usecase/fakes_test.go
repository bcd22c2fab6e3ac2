package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"clinic-appointment-system/internal/domain/entity"
	"clinic-appointment-system/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB returns a gorm handle backed by sqlmock. The fake repositories
// never touch the connection; only transaction begin/commit reach it.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 16; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// fakeAppointmentRepo mirrors the partial unique index in memory: two
// scheduled appointments can never share doctor and start time.
type fakeAppointmentRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*entity.Appointment

	// beforeUpdateStartTime, when set, runs before the reschedule write
	// takes the lock, letting tests interleave a competing transition.
	beforeUpdateStartTime func()
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appts: map[uuid.UUID]*entity.Appointment{}}
}

func uniqueViolation() error {
	return &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "uq_appointments_doctor_start_scheduled",
	}
}

func (f *fakeAppointmentRepo) slotHeld(doctorID uuid.UUID, start time.Time, exclude uuid.UUID) bool {
	for _, a := range f.appts {
		if a.ID == exclude {
			continue
		}
		if a.IsScheduled() && a.DoctorID == doctorID && a.StartTime.Equal(start) {
			return true
		}
	}
	return false
}

func (f *fakeAppointmentRepo) Create(db *gorm.DB, appointment *entity.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slotHeld(appointment.DoctorID, appointment.StartTime, uuid.Nil) {
		return uniqueViolation()
	}
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt
	stored := *appointment
	f.appts[appointment.ID] = &stored
	return nil
}

func (f *fakeAppointmentRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.appts[id]
	if !ok {
		return nil, nil
	}
	cloned := *stored
	return &cloned, nil
}

func (f *fakeAppointmentRepo) FindActiveForDoctor(db *gorm.DB, doctorID uuid.UUID, from, to time.Time) ([]entity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Appointment
	for _, a := range f.appts {
		if a.IsScheduled() && a.DoctorID == doctorID &&
			!a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) CountScheduledOnDay(db *gorm.DB, doctorID uuid.UUID, day time.Time, exclude *uuid.UUID) (int64, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, a := range f.appts {
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if a.IsScheduled() && a.DoctorID == doctorID &&
			!a.StartTime.Before(dayStart) && a.StartTime.Before(dayEnd) {
			count++
		}
	}
	return count, nil
}

func (f *fakeAppointmentRepo) FindAll(db *gorm.DB, filter *entity.AppointmentFilter) ([]entity.Appointment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Appointment
	for _, a := range f.appts {
		if filter.DoctorID != nil && a.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.PatientID != nil && a.PatientID != *filter.PatientID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.From != nil && a.StartTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !a.StartTime.Before(*filter.To) {
			continue
		}
		out = append(out, *a)
	}
	return out, int64(len(out)), nil
}

func (f *fakeAppointmentRepo) UpdateStartTime(db *gorm.DB, id uuid.UUID, startTime time.Time) (int64, error) {
	if f.beforeUpdateStartTime != nil {
		f.beforeUpdateStartTime()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.appts[id]
	if !ok || !stored.IsScheduled() {
		return 0, nil
	}
	if f.slotHeld(stored.DoctorID, startTime, id) {
		return 0, uniqueViolation()
	}
	stored.StartTime = startTime
	stored.UpdatedAt = time.Now()
	return 1, nil
}

func (f *fakeAppointmentRepo) UpdateStatus(db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.appts[id]
	if !ok || stored.Status != from {
		return 0, nil
	}
	stored.Status = to
	stored.UpdatedAt = time.Now()
	return 1, nil
}

func (f *fakeAppointmentRepo) MarkCompleted(db *gorm.DB, id uuid.UUID, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.appts[id]
	if !ok || !stored.IsScheduled() || !stored.StartTime.Before(now) {
		return 0, nil
	}
	stored.Status = entity.AppointmentStatusCompleted
	stored.UpdatedAt = now
	return 1, nil
}

type fakeDoctorRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*entity.DoctorProfile
}

func newFakeDoctorRepo() *fakeDoctorRepo {
	return &fakeDoctorRepo{doctors: map[uuid.UUID]*entity.DoctorProfile{}}
}

func (f *fakeDoctorRepo) Create(db *gorm.DB, profile *entity.DoctorProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *profile
	f.doctors[profile.UserID] = &stored
	return nil
}

func (f *fakeDoctorRepo) FindByUserID(db *gorm.DB, userID uuid.UUID) (*entity.DoctorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.doctors[userID]
	if !ok {
		return nil, nil
	}
	cloned := *stored
	return &cloned, nil
}

func (f *fakeDoctorRepo) FindAll(db *gorm.DB) ([]entity.DoctorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.DoctorProfile
	for _, d := range f.doctors {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDoctorRepo) UpdateAvailability(db *gorm.DB, userID uuid.UUID, patch *entity.AvailabilityPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.doctors[userID]
	if !ok {
		return nil
	}
	if patch.WorkingHours != nil {
		stored.WorkingHours = *patch.WorkingHours
	}
	if patch.ExceptionDates != nil {
		stored.ExceptionDates = *patch.ExceptionDates
	}
	if patch.DailyPatientLimit != nil {
		stored.DailyPatientLimit = *patch.DailyPatientLimit
	}
	if patch.IsAvailable != nil {
		stored.IsAvailable = *patch.IsAvailable
	}
	return nil
}

func (f *fakeDoctorRepo) Delete(db *gorm.DB, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.doctors[userID]; !ok {
		return 0, nil
	}
	delete(f.doctors, userID)
	return 1, nil
}

type fakePatientRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*entity.PatientProfile
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: map[uuid.UUID]*entity.PatientProfile{}}
}

func (f *fakePatientRepo) Create(db *gorm.DB, profile *entity.PatientProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *profile
	f.patients[profile.UserID] = &stored
	return nil
}

func (f *fakePatientRepo) FindByUserID(db *gorm.DB, userID uuid.UUID) (*entity.PatientProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.patients[userID]
	if !ok {
		return nil, nil
	}
	cloned := *stored
	return &cloned, nil
}

// fakeCapReserver enforces a per doctor-day limit the way the Redis
// counter does.
type fakeCapReserver struct {
	mu       sync.Mutex
	reserved map[string]int
	failWith error
}

func newFakeCapReserver() *fakeCapReserver {
	return &fakeCapReserver{reserved: map[string]int{}}
}

func capDay(doctorID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s:%s", doctorID, day.Format("2006-01-02"))
}

func (f *fakeCapReserver) Reserve(ctx context.Context, doctorID uuid.UUID, day time.Time, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	key := capDay(doctorID, day)
	if f.reserved[key] >= limit {
		return service.ErrDailyCapReached
	}
	f.reserved[key]++
	return nil
}

func (f *fakeCapReserver) Release(ctx context.Context, doctorID uuid.UUID, day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := capDay(doctorID, day)
	if f.reserved[key] > 0 {
		f.reserved[key]--
	}
	return nil
}

func (f *fakeCapReserver) count(doctorID uuid.UUID, day time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserved[capDay(doctorID, day)]
}

type auditEvent struct {
	UserID uuid.UUID
	Action string
	Entity string
	ID     string
}

type fakeAuditService struct {
	mu     sync.Mutex
	events []auditEvent
}

func (f *fakeAuditService) LogEvent(ctx context.Context, tx *gorm.DB, userID *uuid.UUID, action, entityName, entityID string, metadata entity.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event := auditEvent{Action: action, Entity: entityName, ID: entityID}
	if userID != nil {
		event.UserID = *userID
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditService) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}
