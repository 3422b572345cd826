package handler

import (
	"context"
	"net/http"

	"codejudge/internal/api/middleware"
	"codejudge/internal/app/service"
	"codejudge/internal/common"
	"codejudge/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

type ProblemManager interface {
	CreateProblem(ctx context.Context, req service.CreateProblemRequest) (*model.Problem, error)
	GetProblemDetails(ctx context.Context, problemSlug string, userRole string) (*model.Problem, error)
}

type ProblemHandler struct {
	problemService ProblemManager
}

func NewProblemHandler(ps ProblemManager) *ProblemHandler {
	return &ProblemHandler{problemService: ps}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{problemSlug}", h.getProblem) // GET /api/v1/problems/two-sum

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/", h.createProblem) // POST /api/v1/problems
	})
}

func (h *ProblemHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProblemRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}

	problem, err := h.problemService.CreateProblem(r.Context(), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem)
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	problemSlug := chi.URLParam(r, "problemSlug")

	// Optional auth: an admin token unlocks blocked problems and test cases.
	userRole := model.RoleUser
	if _, claims, err := jwtauth.FromContext(r.Context()); err == nil {
		if role, ok := claims["role"].(string); ok {
			userRole = role
		}
	}

	problem, err := h.problemService.GetProblemDetails(r.Context(), problemSlug, userRole)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}
