package handlers

import (
	"net/http"

	"github.com/brightbooks/recon-engine/internal/api/dto"
	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/infrastructure/storage"
)

// AuditHandler serves the append-only audit log.
type AuditHandler struct {
	*Base
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(repo storage.Repository) *AuditHandler {
	return &AuditHandler{Base: NewBase(repo)}
}

// List handles GET /api/v1/audit - returns audit entries, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 50)
	offset := ParseIntParam(r, "offset", 0)
	if limit <= 0 || limit > 500 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("limit must be between 1 and 500"))
		return
	}
	if offset < 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("offset must not be negative"))
		return
	}

	entries, err := h.repo.ListAudit(r.Context(), limit, offset)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.AuditListResponse{
		Entries: make([]dto.AuditEntryResponse, 0, len(entries)),
		Count:   len(entries),
		Offset:  offset,
	}
	for _, e := range entries {
		response.Entries = append(response.Entries, toAuditResponse(e))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func toAuditResponse(e *ledger.AuditEntry) dto.AuditEntryResponse {
	return dto.AuditEntryResponse{
		ID:          e.ID,
		Action:      string(e.Action),
		EntityTable: e.EntityTable,
		EntityID:    e.EntityID,
		Before:      e.Before,
		After:       e.After,
		Timestamp:   e.Timestamp,
		Reason:      e.Reason,
	}
}
