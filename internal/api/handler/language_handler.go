package handler

import (
	"net/http"

	"codejudge/internal/app/runner"
	"codejudge/internal/common"

	"github.com/go-chi/chi/v5"
)

type LanguageHandler struct {
	registry *runner.Registry
}

func NewLanguageHandler(registry *runner.Registry) *LanguageHandler {
	return &LanguageHandler{registry: registry}
}

func (h *LanguageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listLanguages)
}

func (h *LanguageHandler) listLanguages(w http.ResponseWriter, r *http.Request) {
	common.RespondWithJSON(w, http.StatusOK, h.registry.Languages())
}
