package handler

import (
	"net/http"

	"clinic-appointment-system/internal/delivery/dto"
	"clinic-appointment-system/internal/usecase"
	"clinic-appointment-system/pkg/response"
)

type AuditLogHandler struct {
	auditLogUsecase usecase.AuditLogUsecase
}

func NewAuditLogHandler(auditLogUsecase usecase.AuditLogUsecase) *AuditLogHandler {
	return &AuditLogHandler{
		auditLogUsecase: auditLogUsecase,
	}
}

func (h *AuditLogHandler) GetAllAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &dto.ListAuditLogsRequest{
		UserID: query.Get("user_id"),
		Action: query.Get("action"),
		Page:   parseIntQuery(query.Get("page"), 1),
		Limit:  parseIntQuery(query.Get("limit"), 20),
	}

	logs, total, err := h.auditLogUsecase.List(r.Context(), req)
	if err != nil {
		if err == usecase.ErrInvalidFilter {
			response.Error(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		response.InternalServerError(w, "Failed to list audit logs")
		return
	}

	totalPages := int(total) / req.Limit
	if int(total)%req.Limit > 0 {
		totalPages++
	}

	response.SuccessWithMeta(w, http.StatusOK, "Audit logs retrieved successfully", logs, &response.Meta{
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
	})
}
