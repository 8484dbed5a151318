package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Zhong-Ze-Wei/podcast/internal/api/shared"
	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
)

// TemplateHandler handles prompt template HTTP requests.
type TemplateHandler struct {
	templates store.TemplateStore
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templates store.TemplateStore) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// List handles GET /api/templates.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List(r.Context())
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, templates)
}

// Get handles GET /api/templates/{name}.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	template, err := h.templates.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, template)
}

// Upsert handles PUT /api/templates/{name}. The name in the URL wins over any
// name in the body. System templates cannot be overwritten.
func (h *TemplateHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var template domain.Template
	if err := shared.DecodeJSON(r, &template); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}

	template.Name = chi.URLParam(r, "name")
	template.IsSystem = false
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}

	if err := template.Validate(); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	existing, err := h.templates.GetByName(r.Context(), template.Name)
	switch {
	case err == nil && existing.IsSystem:
		shared.RespondWithError(w, r, http.StatusConflict, CodeInvalidState,
			fmt.Sprintf("template %q is built in and cannot be overwritten", template.Name))
		return
	case err != nil && !errors.Is(err, store.ErrTemplateNotFound):
		WriteServiceError(w, r, err)
		return
	}

	if err := h.templates.Upsert(r.Context(), &template); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, &template)
}

// Delete handles DELETE /api/templates/{name}.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
