package api

import (
	"net/http"
	"time"

	"codejudge/internal/api/handler"
	"codejudge/internal/app/runner"
	"codejudge/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	problemService handler.ProblemManager,
	submissionService handler.SubmissionExecutor,
	languages *runner.Registry,
	hub handler.WebSocketServer,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger) // Chi's logger
	r.Use(chiMiddleware.Recoverer)

	// Searches "Authorization: Bearer T" and the jwt cookie; claims land in the context.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Long-lived, so kept out of the request timeout below.
	r.Handle("/ws", handler.NewRealtimeHandler(hub))

	r.Group(func(timed chi.Router) {
		// Submissions run every test case sequentially against the sandbox.
		timed.Use(chiMiddleware.Timeout(120 * time.Second))

		timed.Route("/api/v1", func(v1 chi.Router) {
			problemHandler := handler.NewProblemHandler(problemService)
			v1.Route("/problems", problemHandler.RegisterRoutes)

			submissionHandler := handler.NewSubmissionHandler(submissionService)
			v1.Route("/submissions", submissionHandler.RegisterRoutes)

			languageHandler := handler.NewLanguageHandler(languages)
			v1.Route("/languages", languageHandler.RegisterRoutes)
		})
	})

	return r
}
