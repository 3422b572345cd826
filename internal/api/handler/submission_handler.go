package handler

import (
	"context"
	"net/http"

	"codejudge/internal/api/middleware"
	"codejudge/internal/app/service"
	"codejudge/internal/common"
	"codejudge/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type SubmissionExecutor interface {
	Execute(ctx context.Context, req service.ExecuteRequest) (*service.ExecutionOutcome, error)
	GetSubmission(ctx context.Context, userID, submissionID string) (*model.Submission, error)
}

type SubmissionHandler struct {
	submissionService SubmissionExecutor
}

func NewSubmissionHandler(ss SubmissionExecutor) *SubmissionHandler {
	return &SubmissionHandler{submissionService: ss}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator) // All submission routes require auth
	r.Post("/", h.submit)
	r.Post("/run", h.run)
	r.Get("/{submissionID}", h.getSubmission)
}

func (h *SubmissionHandler) submit(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, false)
}

func (h *SubmissionHandler) run(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, true)
}

func (h *SubmissionHandler) execute(w http.ResponseWriter, r *http.Request, runOnly bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.ExecuteRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	req.UserID = userID
	req.IsRunOnly = runOnly
	if req.ContestID != nil && *req.ContestID == "" {
		req.ContestID = nil
	}

	outcome, err := h.submissionService.Execute(r.Context(), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, outcome)
}

func (h *SubmissionHandler) getSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	sub, err := h.submissionService.GetSubmission(r.Context(), userID, chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}
