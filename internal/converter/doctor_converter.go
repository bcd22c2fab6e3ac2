package converter

import (
	"clinic-appointment-system/internal/delivery/dto"
	"clinic-appointment-system/internal/domain/entity"
)

func DoctorToResponse(doctor *entity.DoctorProfile) *dto.DoctorResponse {
	workingHours := make([]dto.WorkingHourPayload, 0, len(doctor.WorkingHours))
	for _, wh := range doctor.WorkingHours {
		workingHours = append(workingHours, dto.WorkingHourPayload{
			Weekday:   wh.Weekday,
			StartTime: wh.StartTime,
			EndTime:   wh.EndTime,
		})
	}

	exceptions := make([]dto.ExceptionDatePayload, 0, len(doctor.ExceptionDates))
	for _, exc := range doctor.ExceptionDates {
		exceptions = append(exceptions, dto.ExceptionDatePayload{
			Date:        exc.Date.Format("2006-01-02"),
			Reason:      exc.Reason,
			IsAvailable: exc.IsAvailable,
		})
	}

	return &dto.DoctorResponse{
		UserID:            doctor.UserID,
		Name:              doctor.User.FullName,
		Email:             doctor.User.Email,
		Specialization:    doctor.Specialization,
		Biography:         doctor.Biography,
		DailyPatientLimit: doctor.DailyPatientLimit,
		IsAvailable:       doctor.IsAvailable,
		WorkingHours:      workingHours,
		ExceptionDates:    exceptions,
		CreatedAt:         doctor.User.CreatedAt,
		UpdatedAt:         doctor.User.UpdatedAt,
	}
}

func DoctorsToResponses(doctors []entity.DoctorProfile) []dto.DoctorResponse {
	responses := make([]dto.DoctorResponse, 0, len(doctors))
	for i := range doctors {
		responses = append(responses, *DoctorToResponse(&doctors[i]))
	}
	return responses
}
