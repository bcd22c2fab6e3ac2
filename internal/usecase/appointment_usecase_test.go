package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"clinic-appointment-system/internal/delivery/dto"
	"clinic-appointment-system/internal/delivery/http/middleware"
	"clinic-appointment-system/internal/domain/entity"
	"clinic-appointment-system/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appointmentFixture struct {
	usecase      AppointmentUsecase
	appointments *fakeAppointmentRepo
	doctors      *fakeDoctorRepo
	patients     *fakePatientRepo
	cap          *fakeCapReserver
	audit        *fakeAuditService

	doctorID  uuid.UUID
	patientID uuid.UUID
	adminID   uuid.UUID
}

func newAppointmentFixture(t *testing.T) *appointmentFixture {
	t.Helper()

	f := &appointmentFixture{
		appointments: newFakeAppointmentRepo(),
		doctors:      newFakeDoctorRepo(),
		patients:     newFakePatientRepo(),
		cap:          newFakeCapReserver(),
		audit:        &fakeAuditService{},
		doctorID:     uuid.New(),
		patientID:    uuid.New(),
		adminID:      uuid.New(),
	}

	f.doctors.doctors[f.doctorID] = &entity.DoctorProfile{
		UserID:            f.doctorID,
		Specialization:    "Cardiology",
		DailyPatientLimit: entity.DefaultDailyPatientLimit,
		IsAvailable:       true,
		User:              entity.User{ID: f.doctorID, FullName: "Dr. House", Phone: "+111"},
	}
	f.patients.patients[f.patientID] = &entity.PatientProfile{
		UserID:    f.patientID,
		BloodType: "A+",
		Allergies: entity.StringSlice{"penicillin"},
		User:      entity.User{ID: f.patientID, FullName: "John Doe", Phone: "+222", Email: "john@example.com"},
	}

	f.usecase = NewAppointmentUsecase(newTestDB(t), testLogger(),
		f.appointments, f.doctors, f.patients, f.cap, f.audit)
	return f
}

func (f *appointmentFixture) asPatient() context.Context {
	return middleware.ContextWithUser(context.Background(), f.patientID, "john@example.com", entity.RoleIDPatient)
}

func (f *appointmentFixture) asDoctor() context.Context {
	return middleware.ContextWithUser(context.Background(), f.doctorID, "dr@example.com", entity.RoleIDDoctor)
}

func (f *appointmentFixture) asAdmin() context.Context {
	return middleware.ContextWithUser(context.Background(), f.adminID, "admin@example.com", entity.RoleIDAdmin)
}

func tomorrowAt(hour int) time.Time {
	now := time.Now().AddDate(0, 0, 1)
	return time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
}

func (f *appointmentFixture) book(t *testing.T, start time.Time) *dto.AppointmentResponse {
	t.Helper()
	resp, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: start.Format(time.RFC3339),
		Notes:     "checkup",
	})
	require.NoError(t, err)
	return resp
}

func TestBook_Success(t *testing.T) {
	f := newAppointmentFixture(t)
	start := tomorrowAt(9)

	resp := f.book(t, start)

	assert.Equal(t, f.doctorID, resp.DoctorID)
	assert.Equal(t, f.patientID, resp.PatientID)
	assert.Equal(t, string(entity.AppointmentStatusScheduled), resp.Status)
	assert.True(t, resp.StartTime.Equal(start))
	assert.True(t, resp.EndTime.Equal(start.Add(30*time.Minute)))

	// Snapshots are denormalized at creation time.
	assert.Equal(t, "John Doe", resp.PatientInfo.Name)
	assert.Equal(t, "Dr. House", resp.DoctorInfo.Name)
	assert.Equal(t, "Cardiology", resp.DoctorInfo.Specialization)
	assert.Equal(t, "A+", resp.MedicalSummary.BloodType)
	assert.Equal(t, []string{"penicillin"}, resp.MedicalSummary.Allergies)

	assert.Equal(t, 1, f.cap.count(f.doctorID, start))
	assert.Equal(t, []string{entity.AuditActionAppointmentBook}, f.audit.actions())
}

func TestBook_PatientAlwaysBooksForSelf(t *testing.T) {
	f := newAppointmentFixture(t)

	resp, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		PatientID: uuid.New(), // ignored for patient role
		StartTime: tomorrowAt(9).Format(time.RFC3339),
	})

	require.NoError(t, err)
	assert.Equal(t, f.patientID, resp.PatientID)
}

func TestBook_AdminMustNamePatient(t *testing.T) {
	f := newAppointmentFixture(t)

	_, err := f.usecase.Book(f.asAdmin(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: tomorrowAt(9).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrMissingPatient)
}

func TestBook_PastStartTime(t *testing.T) {
	f := newAppointmentFixture(t)

	_, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: time.Now().Add(-time.Hour).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrPastStartTime)
}

func TestBook_MalformedStartTime(t *testing.T) {
	f := newAppointmentFixture(t)

	_, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: "next tuesday",
	})

	assert.ErrorIs(t, err, ErrInvalidStartTime)
}

func TestBook_UnknownDoctor(t *testing.T) {
	f := newAppointmentFixture(t)

	_, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  uuid.New(),
		StartTime: tomorrowAt(9).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestBook_DoctorNotAccepting(t *testing.T) {
	f := newAppointmentFixture(t)
	f.doctors.doctors[f.doctorID].IsAvailable = false

	_, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: tomorrowAt(9).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrDoctorNotAccepting)
}

func TestBook_SlotTaken(t *testing.T) {
	f := newAppointmentFixture(t)
	start := tomorrowAt(9)
	f.book(t, start)

	_, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: start.Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestBook_OverlappingSlotTaken(t *testing.T) {
	f := newAppointmentFixture(t)
	f.book(t, tomorrowAt(9))

	// 09:15 overlaps the 09:00-09:30 window.
	_, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: tomorrowAt(9).Add(15 * time.Minute).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestBook_BackToBackSlotsAllowed(t *testing.T) {
	f := newAppointmentFixture(t)
	f.book(t, tomorrowAt(9))

	// 09:30 touches 09:00-09:30 but does not overlap.
	resp, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: tomorrowAt(9).Add(30 * time.Minute).Format(time.RFC3339),
	})

	require.NoError(t, err)
	assert.Equal(t, string(entity.AppointmentStatusScheduled), resp.Status)
}

func TestBook_DailyCapBoundary(t *testing.T) {
	f := newAppointmentFixture(t)
	f.doctors.doctors[f.doctorID].DailyPatientLimit = 2

	f.book(t, tomorrowAt(9))
	f.book(t, tomorrowAt(10)) // second booking fills the cap

	_, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: tomorrowAt(11).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, service.ErrDailyCapReached)

	// The next day has its own cap.
	resp, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: tomorrowAt(11).AddDate(0, 0, 1).Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	f := newAppointmentFixture(t)
	start := tomorrowAt(9)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
				DoctorID:  f.doctorID,
				StartTime: start.Format(time.RFC3339),
			})
		}(i)
	}
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case err == ErrSlotTaken:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	// The loser's capacity reservation was compensated.
	assert.Equal(t, 1, f.cap.count(f.doctorID, start))
}

func TestReschedule_Success(t *testing.T) {
	f := newAppointmentFixture(t)
	start := tomorrowAt(9)
	booked := f.book(t, start)
	newStart := tomorrowAt(14)

	resp, err := f.usecase.Reschedule(f.asPatient(), booked.ID, &dto.RescheduleAppointmentRequest{
		StartTime: newStart.Format(time.RFC3339),
	})

	require.NoError(t, err)
	assert.True(t, resp.StartTime.Equal(newStart))

	stored, _ := f.appointments.FindByID(nil, booked.ID)
	assert.True(t, stored.StartTime.Equal(newStart))
	assert.Contains(t, f.audit.actions(), entity.AuditActionAppointmentReschedule)
}

func TestReschedule_SelfExclusion(t *testing.T) {
	f := newAppointmentFixture(t)
	start := tomorrowAt(9)
	booked := f.book(t, start)

	// Moving 15 minutes overlaps the appointment's own old window; only
	// other appointments may block the move.
	resp, err := f.usecase.Reschedule(f.asPatient(), booked.ID, &dto.RescheduleAppointmentRequest{
		StartTime: start.Add(15 * time.Minute).Format(time.RFC3339),
	})

	require.NoError(t, err)
	assert.True(t, resp.StartTime.Equal(start.Add(15*time.Minute)))
}

func TestReschedule_TargetSlotTaken(t *testing.T) {
	f := newAppointmentFixture(t)
	f.book(t, tomorrowAt(9))
	second := f.book(t, tomorrowAt(10))

	_, err := f.usecase.Reschedule(f.asPatient(), second.ID, &dto.RescheduleAppointmentRequest{
		StartTime: tomorrowAt(9).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestReschedule_MovesCapacityAcrossDays(t *testing.T) {
	f := newAppointmentFixture(t)
	start := tomorrowAt(9)
	booked := f.book(t, start)
	newStart := start.AddDate(0, 0, 1)

	_, err := f.usecase.Reschedule(f.asPatient(), booked.ID, &dto.RescheduleAppointmentRequest{
		StartTime: newStart.Format(time.RFC3339),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, f.cap.count(f.doctorID, start))
	assert.Equal(t, 1, f.cap.count(f.doctorID, newStart))
}

func TestReschedule_StrangerForbidden(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))

	stranger := middleware.ContextWithUser(context.Background(), uuid.New(), "x@example.com", entity.RoleIDPatient)
	_, err := f.usecase.Reschedule(stranger, booked.ID, &dto.RescheduleAppointmentRequest{
		StartTime: tomorrowAt(14).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestReschedule_CancelRacingTheWrite(t *testing.T) {
	f := newAppointmentFixture(t)
	start := tomorrowAt(9)
	booked := f.book(t, start)

	// Cancel lands after the reschedule's read but before its write; the
	// status-guarded update must refuse to move the cancelled row.
	f.appointments.beforeUpdateStartTime = func() {
		f.appointments.beforeUpdateStartTime = nil
		require.NoError(t, f.usecase.Cancel(f.asPatient(), booked.ID))
	}

	_, err := f.usecase.Reschedule(f.asPatient(), booked.ID, &dto.RescheduleAppointmentRequest{
		StartTime: tomorrowAt(14).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrAppointmentNotActive)

	stored, _ := f.appointments.FindByID(nil, booked.ID)
	assert.Equal(t, entity.AppointmentStatusCancelled, stored.Status)
	assert.True(t, stored.StartTime.Equal(start))
}

func TestReschedule_PastDueCompletesInsteadOfMoving(t *testing.T) {
	f := newAppointmentFixture(t)
	appointment := &entity.Appointment{
		DoctorID:  f.doctorID,
		PatientID: f.patientID,
		StartTime: time.Now().Add(-2 * time.Hour),
		Status:    entity.AppointmentStatusScheduled,
	}
	require.NoError(t, f.appointments.Create(nil, appointment))

	_, err := f.usecase.Reschedule(f.asPatient(), appointment.ID, &dto.RescheduleAppointmentRequest{
		StartTime: tomorrowAt(9).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrAppointmentNotActive)
	stored, _ := f.appointments.FindByID(nil, appointment.ID)
	assert.Equal(t, entity.AppointmentStatusCompleted, stored.Status)
}

func TestReschedule_CancelledAppointment(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))
	require.NoError(t, f.usecase.Cancel(f.asPatient(), booked.ID))

	_, err := f.usecase.Reschedule(f.asPatient(), booked.ID, &dto.RescheduleAppointmentRequest{
		StartTime: tomorrowAt(14).Format(time.RFC3339),
	})

	assert.ErrorIs(t, err, ErrAppointmentNotActive)
}

func TestCancel_Success(t *testing.T) {
	f := newAppointmentFixture(t)
	start := tomorrowAt(9)
	booked := f.book(t, start)

	require.NoError(t, f.usecase.Cancel(f.asPatient(), booked.ID))

	stored, _ := f.appointments.FindByID(nil, booked.ID)
	assert.Equal(t, entity.AppointmentStatusCancelled, stored.Status)
	// Future-day capacity is returned.
	assert.Equal(t, 0, f.cap.count(f.doctorID, start))
	assert.Contains(t, f.audit.actions(), entity.AuditActionAppointmentCancel)
}

func TestCancel_FreesSlotForRebooking(t *testing.T) {
	f := newAppointmentFixture(t)
	start := tomorrowAt(9)
	booked := f.book(t, start)
	require.NoError(t, f.usecase.Cancel(f.asPatient(), booked.ID))

	resp, err := f.usecase.Book(f.asPatient(), &dto.BookAppointmentRequest{
		DoctorID:  f.doctorID,
		StartTime: start.Format(time.RFC3339),
	})

	require.NoError(t, err)
	assert.NotEqual(t, booked.ID, resp.ID)
}

func TestCancel_Idempotent(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))

	require.NoError(t, f.usecase.Cancel(f.asPatient(), booked.ID))
	assert.NoError(t, f.usecase.Cancel(f.asPatient(), booked.ID))
}

func TestCancel_PastDueCompletesInsteadOfCancelling(t *testing.T) {
	f := newAppointmentFixture(t)
	appointment := &entity.Appointment{
		DoctorID:  f.doctorID,
		PatientID: f.patientID,
		StartTime: time.Now().Add(-2 * time.Hour),
		Status:    entity.AppointmentStatusScheduled,
	}
	require.NoError(t, f.appointments.Create(nil, appointment))

	err := f.usecase.Cancel(f.asPatient(), appointment.ID)

	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	stored, _ := f.appointments.FindByID(nil, appointment.ID)
	assert.Equal(t, entity.AppointmentStatusCompleted, stored.Status)
}

func TestCancel_CompletedAppointment(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))
	_, err := f.appointments.UpdateStatus(nil, booked.ID,
		entity.AppointmentStatusScheduled, entity.AppointmentStatusCompleted)
	require.NoError(t, err)

	err = f.usecase.Cancel(f.asPatient(), booked.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestUpdateStatus_DoctorMarksNoShow(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))

	resp, err := f.usecase.UpdateStatus(f.asDoctor(), booked.ID, &dto.UpdateAppointmentStatusRequest{
		Status: string(entity.AppointmentStatusNoShow),
	})

	require.NoError(t, err)
	assert.Equal(t, string(entity.AppointmentStatusNoShow), resp.Status)
	assert.Contains(t, f.audit.actions(), entity.AuditActionAppointmentStatus)
}

func TestUpdateStatus_PatientCannotComplete(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))

	_, err := f.usecase.UpdateStatus(f.asPatient(), booked.ID, &dto.UpdateAppointmentStatusRequest{
		Status: string(entity.AppointmentStatusCompleted),
	})

	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestUpdateStatus_NoBackwardTransition(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))
	_, err := f.appointments.UpdateStatus(nil, booked.ID,
		entity.AppointmentStatusScheduled, entity.AppointmentStatusCompleted)
	require.NoError(t, err)

	_, err = f.usecase.UpdateStatus(f.asDoctor(), booked.ID, &dto.UpdateAppointmentStatusRequest{
		Status: string(entity.AppointmentStatusScheduled),
	})

	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestUpdateStatus_SameStatusIsNoOp(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))

	resp, err := f.usecase.UpdateStatus(f.asDoctor(), booked.ID, &dto.UpdateAppointmentStatusRequest{
		Status: string(entity.AppointmentStatusScheduled),
	})

	require.NoError(t, err)
	assert.Equal(t, string(entity.AppointmentStatusScheduled), resp.Status)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))

	_, err := f.usecase.UpdateStatus(f.asDoctor(), booked.ID, &dto.UpdateAppointmentStatusRequest{
		Status: "pending",
	})

	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestGet_LazyCompletionPersisted(t *testing.T) {
	f := newAppointmentFixture(t)

	// Seed a past-due scheduled appointment directly.
	appointment := &entity.Appointment{
		DoctorID:  f.doctorID,
		PatientID: f.patientID,
		StartTime: time.Now().Add(-2 * time.Hour),
		Status:    entity.AppointmentStatusScheduled,
	}
	require.NoError(t, f.appointments.Create(nil, appointment))

	resp, err := f.usecase.Get(f.asPatient(), appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.AppointmentStatusCompleted), resp.Status)

	// The promotion is persisted, not just reported.
	stored, _ := f.appointments.FindByID(nil, appointment.ID)
	assert.Equal(t, entity.AppointmentStatusCompleted, stored.Status)
}

func TestGet_StrangerForbidden(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))

	stranger := middleware.ContextWithUser(context.Background(), uuid.New(), "x@example.com", entity.RoleIDPatient)
	_, err := f.usecase.Get(stranger, booked.ID)

	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestGet_AdminAndDoctorAllowed(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))

	_, err := f.usecase.Get(f.asAdmin(), booked.ID)
	assert.NoError(t, err)

	_, err = f.usecase.Get(f.asDoctor(), booked.ID)
	assert.NoError(t, err)
}

func TestList_PatientScopedToOwn(t *testing.T) {
	f := newAppointmentFixture(t)
	f.book(t, tomorrowAt(9))

	// Another patient's appointment with the same doctor.
	otherPatient := uuid.New()
	require.NoError(t, f.appointments.Create(nil, &entity.Appointment{
		DoctorID:  f.doctorID,
		PatientID: otherPatient,
		StartTime: tomorrowAt(10),
		Status:    entity.AppointmentStatusScheduled,
	}))

	list, total, err := f.usecase.List(f.asPatient(), &dto.ListAppointmentsRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, f.patientID, list[0].PatientID)

	// The doctor sees both.
	_, total, err = f.usecase.List(f.asDoctor(), &dto.ListAppointmentsRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestList_StatusFilter(t *testing.T) {
	f := newAppointmentFixture(t)
	booked := f.book(t, tomorrowAt(9))
	f.book(t, tomorrowAt(10))
	require.NoError(t, f.usecase.Cancel(f.asPatient(), booked.ID))

	list, _, err := f.usecase.List(f.asAdmin(), &dto.ListAppointmentsRequest{
		Status: string(entity.AppointmentStatusCancelled),
	})

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, booked.ID, list[0].ID)
}
