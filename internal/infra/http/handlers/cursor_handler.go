package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/leadbuffer/internal/infra/http/middleware"
	"github.com/xavierca1/leadbuffer/internal/usecase"
)

type CursorHandler struct {
	Admin *usecase.CursorAdminUseCase
}

func NewCursorHandler(admin *usecase.CursorAdminUseCase) *CursorHandler {
	return &CursorHandler{Admin: admin}
}

// HandleGet (GET /v1/cursors/{namespace})
func (h *CursorHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cursor, err := h.Admin.Get(r.Context(), middleware.OrganizationID(r.Context()), chi.URLParam(r, "namespace"))
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cursor)
}

// HandlePut (PUT /v1/cursors/{namespace}) body {page, exhausted}
func (h *CursorHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var input usecase.CursorInput
	if err := decodeJSON(r, &input); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	input.OrganizationID = middleware.OrganizationID(r.Context())
	input.Namespace = chi.URLParam(r, "namespace")

	cursor, err := h.Admin.Put(r.Context(), input)
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cursor)
}

// HandleDelete (DELETE /v1/cursors/{namespace}) resets the cursor.
func (h *CursorHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.Reset(r.Context(), middleware.OrganizationID(r.Context()), chi.URLParam(r, "namespace")); err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
