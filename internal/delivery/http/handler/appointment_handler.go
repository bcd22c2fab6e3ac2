package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"clinic-appointment-system/internal/delivery/dto"
	"clinic-appointment-system/internal/service"
	"clinic-appointment-system/internal/usecase"
	"clinic-appointment-system/pkg/response"
	"clinic-appointment-system/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type AppointmentHandler struct {
	appointmentUsecase usecase.AppointmentUsecase
	validator          *validator.CustomValidator
}

func NewAppointmentHandler(appointmentUsecase usecase.AppointmentUsecase, validator *validator.CustomValidator) *AppointmentHandler {
	return &AppointmentHandler{
		appointmentUsecase: appointmentUsecase,
		validator:          validator,
	}
}

func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req dto.BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	appointment, err := h.appointmentUsecase.Book(r.Context(), &req)
	if err != nil {
		switch err {
		case usecase.ErrDoctorNotFound:
			response.NotFound(w, "Doctor not found")
		case usecase.ErrPatientNotFound:
			response.NotFound(w, "Patient not found")
		case usecase.ErrMissingPatient, usecase.ErrInvalidStartTime, usecase.ErrPastStartTime:
			response.Error(w, http.StatusBadRequest, err.Error(), nil)
		case usecase.ErrSlotTaken, usecase.ErrDoctorNotAccepting, service.ErrDailyCapReached:
			response.Error(w, http.StatusConflict, err.Error(), nil)
		default:
			response.InternalServerError(w, "Failed to book appointment")
		}
		return
	}

	response.Success(w, http.StatusCreated, "Appointment booked successfully", appointment)
}

func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid appointment ID", nil)
		return
	}

	appointment, err := h.appointmentUsecase.Get(r.Context(), appointmentID)
	if err != nil {
		switch err {
		case usecase.ErrAppointmentNotFound:
			response.NotFound(w, "Appointment not found")
		case usecase.ErrNotAllowed:
			response.Forbidden(w, "You do not have access to this appointment")
		default:
			response.InternalServerError(w, "Failed to get appointment")
		}
		return
	}

	response.Success(w, http.StatusOK, "Appointment retrieved successfully", appointment)
}

func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &dto.ListAppointmentsRequest{
		DoctorID:  query.Get("doctor_id"),
		PatientID: query.Get("patient_id"),
		Status:    query.Get("status"),
		From:      query.Get("from"),
		To:        query.Get("to"),
		Page:      parseIntQuery(query.Get("page"), 1),
		Limit:     parseIntQuery(query.Get("limit"), 20),
	}

	appointments, total, err := h.appointmentUsecase.List(r.Context(), req)
	if err != nil {
		switch err {
		case usecase.ErrInvalidFilter, usecase.ErrInvalidStatus:
			response.Error(w, http.StatusBadRequest, err.Error(), nil)
		default:
			response.InternalServerError(w, "Failed to list appointments")
		}
		return
	}

	totalPages := int(total) / req.Limit
	if int(total)%req.Limit > 0 {
		totalPages++
	}

	response.SuccessWithMeta(w, http.StatusOK, "Appointments retrieved successfully", appointments, &response.Meta{
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

// UpdateAppointment handles PATCH: a start_time payload reschedules, a
// status payload transitions. Cancellation goes through the cancel flow.
func (h *AppointmentHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid appointment ID", nil)
		return
	}

	var req dto.UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	switch {
	case req.StartTime != "" && req.Status != "":
		response.Error(w, http.StatusBadRequest, "Provide either start_time or status, not both", nil)
	case req.StartTime != "":
		h.reschedule(w, r, appointmentID, req.StartTime)
	case req.Status == "cancelled":
		h.cancel(w, r, appointmentID)
	case req.Status != "":
		h.updateStatus(w, r, appointmentID, req.Status)
	default:
		response.Error(w, http.StatusBadRequest, "Provide start_time or status", nil)
	}
}

func (h *AppointmentHandler) reschedule(w http.ResponseWriter, r *http.Request, appointmentID uuid.UUID, startTime string) {
	appointment, err := h.appointmentUsecase.Reschedule(r.Context(), appointmentID, &dto.RescheduleAppointmentRequest{StartTime: startTime})
	if err != nil {
		switch err {
		case usecase.ErrAppointmentNotFound, usecase.ErrDoctorNotFound:
			response.NotFound(w, err.Error())
		case usecase.ErrNotAllowed:
			response.Forbidden(w, "You do not have access to this appointment")
		case usecase.ErrInvalidStartTime, usecase.ErrPastStartTime, usecase.ErrAppointmentNotActive:
			response.Error(w, http.StatusBadRequest, err.Error(), nil)
		case usecase.ErrSlotTaken, service.ErrDailyCapReached:
			response.Error(w, http.StatusConflict, err.Error(), nil)
		default:
			response.InternalServerError(w, "Failed to reschedule appointment")
		}
		return
	}

	response.Success(w, http.StatusOK, "Appointment rescheduled successfully", appointment)
}

func (h *AppointmentHandler) cancel(w http.ResponseWriter, r *http.Request, appointmentID uuid.UUID) {
	if err := h.appointmentUsecase.Cancel(r.Context(), appointmentID); err != nil {
		switch err {
		case usecase.ErrAppointmentNotFound:
			response.NotFound(w, "Appointment not found")
		case usecase.ErrNotAllowed:
			response.Forbidden(w, "You do not have access to this appointment")
		case usecase.ErrInvalidStatusTransition:
			response.Error(w, http.StatusBadRequest, err.Error(), nil)
		default:
			response.InternalServerError(w, "Failed to cancel appointment")
		}
		return
	}

	response.Success(w, http.StatusOK, "Appointment cancelled successfully", nil)
}

func (h *AppointmentHandler) updateStatus(w http.ResponseWriter, r *http.Request, appointmentID uuid.UUID, status string) {
	appointment, err := h.appointmentUsecase.UpdateStatus(r.Context(), appointmentID, &dto.UpdateAppointmentStatusRequest{Status: status})
	if err != nil {
		switch err {
		case usecase.ErrAppointmentNotFound:
			response.NotFound(w, "Appointment not found")
		case usecase.ErrNotAllowed:
			response.Forbidden(w, "You do not have access to this appointment")
		case usecase.ErrInvalidStatus, usecase.ErrInvalidStatusTransition:
			response.Error(w, http.StatusBadRequest, err.Error(), nil)
		default:
			response.InternalServerError(w, "Failed to update appointment status")
		}
		return
	}

	response.Success(w, http.StatusOK, "Appointment status updated successfully", appointment)
}

func parseIntQuery(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
