package entity

// AvailabilityPatch carries a partial update of a doctor's availability
// settings. A nil field is left untouched; a non-nil slice pointer replaces
// the stored set wholesale, including replacing with an empty set.
type AvailabilityPatch struct {
	WorkingHours      *[]WorkingHour
	ExceptionDates    *[]ExceptionDate
	DailyPatientLimit *int
	IsAvailable       *bool
}

// Empty reports whether the patch carries no changes at all.
func (p *AvailabilityPatch) Empty() bool {
	return p.WorkingHours == nil && p.ExceptionDates == nil &&
		p.DailyPatientLimit == nil && p.IsAvailable == nil
}
