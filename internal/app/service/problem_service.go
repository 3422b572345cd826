package service

import (
	"context"
	"database/sql"
	"strings"

	"codejudge/internal/common"
	"codejudge/internal/domain/model"
	"codejudge/internal/domain/repository"
	"codejudge/internal/platform/database"
	"codejudge/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug" // For slug generation
	"go.uber.org/zap"
)

const (
	defaultTimeLimitMs   = 2000
	defaultMemoryLimitKb = 256000
)

// ProblemNotifier is told about every newly ingested problem.
type ProblemNotifier interface {
	NotifyNewProblem(ctx context.Context, slug string)
}

type ProblemService struct {
	problemRepo repository.ProblemRepository
	tx          database.TxRunner
	notifier    ProblemNotifier
	log         *zap.SugaredLogger
}

func NewProblemService(problemRepo repository.ProblemRepository, tx database.TxRunner, notifier ProblemNotifier) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		tx:          tx,
		notifier:    notifier,
		log:         logger.NewNamedLogger("problem"),
	}
}

type TestCaseInput struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type CreateProblemRequest struct {
	Title          string                  `json:"title"`
	Slug           string                  `json:"slug,omitempty"` // derived from title when empty
	Difficulty     model.ProblemDifficulty `json:"difficulty"`
	Status         model.ProblemStatus     `json:"status"`
	TimeLimitMs    int                     `json:"time"`
	MemoryLimitKb  int                     `json:"memory"`
	DefaultCodeIDs []string                `json:"default_code_ids"`
	TestCases      []TestCaseInput         `json:"test_cases"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, req CreateProblemRequest) (*model.Problem, error) {
	if strings.TrimSpace(req.Title) == "" || len(req.TestCases) == 0 {
		return nil, common.Errorf("title and at least one test case are required: %w", common.ErrBadRequest)
	}
	switch req.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	case "":
		req.Difficulty = model.DifficultyEasy
	default:
		return nil, common.Errorf("unknown difficulty %q: %w", req.Difficulty, common.ErrBadRequest)
	}
	switch req.Status {
	case model.StatusFree, model.StatusPremium:
	case "":
		req.Status = model.StatusFree
	default:
		return nil, common.Errorf("unknown status %q: %w", req.Status, common.ErrBadRequest)
	}

	problemSlug := req.Slug
	if problemSlug == "" {
		problemSlug = req.Title
	}
	problem := &model.Problem{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Slug:           slug.Make(problemSlug),
		Difficulty:     req.Difficulty,
		Status:         req.Status,
		DefaultCodeIDs: req.DefaultCodeIDs,
		TimeLimitMs:    req.TimeLimitMs,
		MemoryLimitKb:  req.MemoryLimitKb,
	}
	if problem.TimeLimitMs == 0 {
		problem.TimeLimitMs = defaultTimeLimitMs
	}
	if problem.MemoryLimitKb == 0 {
		problem.MemoryLimitKb = defaultMemoryLimitKb
	}

	testCases := make([]model.TestCase, len(req.TestCases))
	for i, tc := range req.TestCases {
		testCases[i] = model.TestCase{
			ID:        uuid.NewString(),
			ProblemID: problem.ID,
			Input:     tc.Input,
			Output:    tc.Output,
			Index:     i,
			Status:    model.TestCaseActive,
		}
	}

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.problemRepo.CreateProblem(ctx, tx, problem); err != nil {
			return common.Errorf("failed to create problem in DB: %w", err)
		}
		if err := s.problemRepo.AddTestCasesToProblem(ctx, tx, problem.ID, testCases); err != nil {
			return common.Errorf("failed to add test cases to problem: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	problem.TestCases = testCases
	for _, tc := range testCases {
		problem.TestCaseIDs = append(problem.TestCaseIDs, tc.ID)
	}
	s.log.Infow("Problem created", "problem_id", problem.ID, "slug", problem.Slug, "test_cases", len(testCases))

	if s.notifier != nil {
		s.notifier.NotifyNewProblem(ctx, problem.Slug)
	}
	return problem, nil
}

// GetProblemDetails hides blocked problems and test case bodies from non-admins.
func (s *ProblemService) GetProblemDetails(ctx context.Context, problemSlug string, userRole string) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, problemSlug)
	if err != nil {
		return nil, err
	}

	if userRole != model.RoleAdmin {
		if problem.IsBlocked {
			return nil, common.ErrNotFound
		}
		problem.TestCases = nil
		return problem, nil
	}

	testCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		s.log.Warnw("Failed to fetch test cases", "problem_id", problem.ID, "error", err)
	}
	problem.TestCases = testCases
	return problem, nil
}
