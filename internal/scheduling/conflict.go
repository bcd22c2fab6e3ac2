package scheduling

import (
	"time"

	"github.com/google/uuid"

	"clinic-appointment-system/internal/domain/entity"
)

// Overlaps reports whether two 30-minute appointment windows starting at a
// and b intersect. Windows are half-open [start, start+30m), so exact
// boundary touching is not an overlap.
func Overlaps(a, b time.Time) bool {
	return a.Before(b.Add(SlotDuration)) && b.Before(a.Add(SlotDuration))
}

// ConflictsWithAny reports whether a candidate window starting at start
// overlaps any scheduled appointment in appts. When exclude is non-nil the
// appointment with that ID is skipped, which is how a reschedule target is
// compared against all appointments other than itself.
func ConflictsWithAny(start time.Time, appts []entity.Appointment, exclude *uuid.UUID) bool {
	for i := range appts {
		if !appts[i].IsScheduled() {
			continue
		}
		if exclude != nil && appts[i].ID == *exclude {
			continue
		}
		if Overlaps(start, appts[i].StartTime) {
			return true
		}
	}
	return false
}

// CountScheduledOnDay counts scheduled appointments on the calendar day
// containing t, skipping the excluded appointment if given.
func CountScheduledOnDay(appts []entity.Appointment, t time.Time, exclude *uuid.UUID) int {
	day := truncateToDay(t)
	next := day.AddDate(0, 0, 1)
	count := 0
	for i := range appts {
		if !appts[i].IsScheduled() {
			continue
		}
		if exclude != nil && appts[i].ID == *exclude {
			continue
		}
		if !appts[i].StartTime.Before(day) && appts[i].StartTime.Before(next) {
			count++
		}
	}
	return count
}
