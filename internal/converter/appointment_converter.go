package converter

import (
	"clinic-appointment-system/internal/delivery/dto"
	"clinic-appointment-system/internal/domain/entity"
	"clinic-appointment-system/internal/scheduling"
)

func AppointmentToResponse(appointment *entity.Appointment) *dto.AppointmentResponse {
	return &dto.AppointmentResponse{
		ID:        appointment.ID,
		DoctorID:  appointment.DoctorID,
		PatientID: appointment.PatientID,
		StartTime: appointment.StartTime,
		EndTime:   appointment.StartTime.Add(scheduling.SlotDuration),
		Status:    string(appointment.Status),
		Notes:     appointment.Notes,
		PatientInfo: dto.PatientInfoResponse{
			Name:  appointment.PatientInfo.Name,
			Phone: appointment.PatientInfo.Phone,
			Email: appointment.PatientInfo.Email,
		},
		DoctorInfo: dto.DoctorInfoResponse{
			Name:           appointment.DoctorInfo.Name,
			Specialization: appointment.DoctorInfo.Specialization,
			Phone:          appointment.DoctorInfo.Phone,
		},
		MedicalSummary: dto.MedicalSummaryResponse{
			BloodType:         appointment.MedicalData.BloodType,
			Allergies:         appointment.MedicalData.Allergies,
			Medications:       appointment.MedicalData.Medications,
			MedicalConditions: appointment.MedicalData.MedicalConditions,
			ReasonForVisit:    appointment.MedicalData.ReasonForVisit,
		},
		CreatedAt: appointment.CreatedAt,
		UpdatedAt: appointment.UpdatedAt,
	}
}

func AppointmentsToResponses(appointments []entity.Appointment) []dto.AppointmentResponse {
	responses := make([]dto.AppointmentResponse, 0, len(appointments))
	for i := range appointments {
		responses = append(responses, *AppointmentToResponse(&appointments[i]))
	}
	return responses
}

func SlotsToResponses(slots []scheduling.Slot) []dto.SlotResponse {
	responses := make([]dto.SlotResponse, 0, len(slots))
	for _, slot := range slots {
		responses = append(responses, dto.SlotResponse{
			StartTime: slot.Start,
			EndTime:   slot.End,
		})
	}
	return responses
}
