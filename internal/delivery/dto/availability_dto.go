package dto

import "time"

type SlotResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type AvailabilityResponse struct {
	DoctorID string         `json:"doctor_id"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Slots    []SlotResponse `json:"slots"`
}
