// Package scheduling holds the pure slot generation and overlap math for
// the booking engine. Everything here operates on already-loaded data; the
// usecase layer is responsible for fetching doctors and appointments and
// for enforcing conflicts at write time.
package scheduling

import (
	"fmt"
	"time"

	"clinic-appointment-system/internal/domain/entity"
)

// SlotDuration is the fixed system-wide appointment length.
const SlotDuration = 30 * time.Minute

// Slot is a candidate appointment window.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// GenerateInput bundles the data slot generation operates on. Booked must
// contain the doctor's scheduled appointments covering every calendar day
// that intersects [From, To), not just the exact range, so that daily cap
// counting sees bookings outside the requested window on boundary days.
type GenerateInput struct {
	Doctor *entity.DoctorProfile
	From   time.Time
	To     time.Time
	Now    time.Time
	Booked []entity.Appointment
}

// GenerateSlots walks the doctor's working hours over the half-open range
// [From, To) and returns the free candidate slots in chronological order.
//
// Rules, in day order:
//   - a doctor with IsAvailable=false yields nothing;
//   - a weekday without working hours is skipped; an exception with
//     IsAvailable=false skips the day regardless of the weekly pattern; an
//     exception with IsAvailable=true on a non-working day yields nothing
//     because the exception carries no time window;
//   - a day whose working window has fully elapsed relative to Now is
//     skipped;
//   - the window is walked in fixed 30-minute steps, dropping any trailing
//     partial step;
//   - slots overlapping a scheduled appointment or falling on a day already
//     at the daily patient cap are excluded.
func GenerateSlots(in GenerateInput) []Slot {
	doctor := in.Doctor
	if doctor == nil || !doctor.IsAvailable {
		return nil
	}

	slots := []Slot{}
	for day := truncateToDay(in.From); day.Before(in.To); day = day.AddDate(0, 0, 1) {
		wh := doctor.WorkingHourFor(int(day.Weekday()))

		if exc := doctor.ExceptionFor(day.Format("2006-01-02")); exc != nil {
			if !exc.IsAvailable {
				continue
			}
			// An available-exception without weekly hours has no window.
			if wh == nil {
				continue
			}
		}
		if wh == nil {
			continue
		}

		dayStart, dayEnd, err := windowOnDay(day, wh.StartTime, wh.EndTime)
		if err != nil {
			continue
		}
		// Window already fully closed, even today.
		if dayEnd.Before(in.Now) {
			continue
		}

		capReached := scheduledOnDay(in.Booked, day) >= doctor.DailyPatientLimit

		for cur := dayStart; !cur.Add(SlotDuration).After(dayEnd); cur = cur.Add(SlotDuration) {
			if cur.Before(in.From) || !cur.Before(in.To) {
				continue
			}
			if capReached {
				continue
			}
			if ConflictsWithAny(cur, in.Booked, nil) {
				continue
			}
			slots = append(slots, Slot{Start: cur, End: cur.Add(SlotDuration)})
		}
	}

	return slots
}

// windowOnDay places the "HH:MM" working window onto the given calendar day.
func windowOnDay(day time.Time, start, end string) (time.Time, time.Time, error) {
	s, err := clockOnDay(day, start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := clockOnDay(day, end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !s.Before(e) {
		return time.Time{}, time.Time{}, fmt.Errorf("working window start %s is not before end %s", start, end)
	}
	return s, e, nil
}

func clockOnDay(day time.Time, clock string) (time.Time, error) {
	// Hours are stored in TIME columns and read back as "HH:MM:SS";
	// request payloads carry "HH:MM". Accept both.
	t, err := time.Parse("15:04", clock)
	if err != nil {
		t, err = time.Parse("15:04:05", clock)
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func scheduledOnDay(appts []entity.Appointment, day time.Time) int {
	next := day.AddDate(0, 0, 1)
	count := 0
	for i := range appts {
		if !appts[i].IsScheduled() {
			continue
		}
		if !appts[i].StartTime.Before(day) && appts[i].StartTime.Before(next) {
			count++
		}
	}
	return count
}
