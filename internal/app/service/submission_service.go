package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"codejudge/internal/app/runner"
	"codejudge/internal/app/sandbox"
	"codejudge/internal/common"
	"codejudge/internal/domain/model"
	"codejudge/internal/domain/repository"
	"codejudge/internal/platform/database"
	"codejudge/internal/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunOnlyLimit is how many active test cases a "Run" request executes.
const RunOnlyLimit = 2

const executionFailedStderr = "Execution failed"

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	userRepo       repository.UserRepository
	languages      *runner.Registry
	executor       sandbox.Executor
	tx             database.TxRunner
	now            func() time.Time
	log            *zap.SugaredLogger
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	userRepo repository.UserRepository,
	languages *runner.Registry,
	executor sandbox.Executor,
	tx database.TxRunner,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		userRepo:       userRepo,
		languages:      languages,
		executor:       executor,
		tx:             tx,
		now:            time.Now,
		log:            logger.NewNamedLogger("submission"),
	}
}

type ExecuteRequest struct {
	ProblemID string  `json:"problem_id"`
	Language  string  `json:"language"`
	Code      string  `json:"code"`
	UserID    string  `json:"-"`
	IsRunOnly bool    `json:"-"`
	ContestID *string `json:"contest_id,omitempty"`
}

type ExecutionOutcome struct {
	SubmissionID  string                 `json:"submission_id"`
	Results       []model.TestCaseResult `json:"results"`
	Passed        bool                   `json:"passed"`
	ExecutionTime float64                `json:"execution_time"`
}

// Execute judges code against the problem's active test cases, stores the
// submission and, for a fully passing submit, records the solve.
func (s *SubmissionService) Execute(ctx context.Context, req ExecuteRequest) (*ExecutionOutcome, error) {
	if req.ProblemID == "" || req.Language == "" || req.UserID == "" {
		return nil, common.Errorf("problem_id, language and user are required: %w", common.ErrBadRequest)
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	lang, ok := s.languages.Resolve(req.Language)
	if !ok {
		return nil, common.Errorf("unsupported language %q: %w", req.Language, common.ErrBadRequest)
	}

	testCases, err := s.problemRepo.FindActiveTestCases(ctx, problem.ID)
	if err != nil {
		return nil, common.Errorf("failed to load test cases: %w", err)
	}
	if len(testCases) == 0 {
		return nil, common.Errorf("no active test cases: %w", common.ErrNotFound)
	}
	sort.SliceStable(testCases, func(i, j int) bool { return testCases[i].Index < testCases[j].Index })

	if req.IsRunOnly && len(testCases) > RunOnlyLimit {
		testCases = testCases[:RunOnlyLimit]
	}

	results := make([]model.TestCaseResult, 0, len(testCases))
	var totalTime float64
	for _, tc := range testCases {
		result, elapsed := s.runTestCase(ctx, lang, req.Code, tc)
		results = append(results, result)
		totalTime += elapsed
	}

	passed := len(results) > 0
	for _, r := range results {
		if !r.Passed {
			passed = false
			break
		}
	}

	submission := &model.Submission{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		ProblemID:     problem.ID,
		Language:      lang.Name,
		Code:          req.Code,
		Results:       results,
		Passed:        passed,
		IsRunOnly:     req.IsRunOnly,
		ExecutionTime: totalTime,
		ContestID:     req.ContestID,
		SubmittedAt:   s.now().UTC(),
	}

	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.submissionRepo.CreateSubmission(ctx, tx, submission); err != nil {
			return common.Errorf("failed to store submission: %w", err)
		}
		if req.IsRunOnly || !passed {
			return nil
		}
		return s.recordSolve(ctx, tx, req.UserID, problem.ID, submission.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("Submission judged",
		"submission_id", submission.ID,
		"problem_id", problem.ID,
		"user_id", req.UserID,
		"language", lang.Name,
		"run_only", req.IsRunOnly,
		"passed", passed,
		"cases", len(results),
	)

	return &ExecutionOutcome{
		SubmissionID:  submission.ID,
		Results:       results,
		Passed:        passed,
		ExecutionTime: totalTime,
	}, nil
}

func (s *SubmissionService) runTestCase(ctx context.Context, lang *runner.Language, code string, tc model.TestCase) (model.TestCaseResult, float64) {
	result := model.TestCaseResult{
		TestCaseIndex:  tc.Index,
		Input:          tc.Input,
		ExpectedOutput: strings.TrimSpace(tc.Output),
	}

	res, err := s.executor.Execute(ctx, sandbox.Request{
		Language: lang.SandboxLanguage,
		FileName: lang.FileName(),
		Source:   lang.Wrap(code, tc.Input),
		Stdin:    tc.Input,
	})
	if err != nil {
		s.log.Warnw("Test case execution failed", "test_case_id", tc.ID, "index", tc.Index, "error", err)
		result.Stderr = executionFailedStderr
		return result, 0
	}

	result.ActualOutput = strings.TrimSpace(res.Stdout)
	result.Stderr = strings.TrimSpace(res.Stderr)
	result.Passed = result.ActualOutput == result.ExpectedOutput && res.ExitCode == 0 && res.Signal == ""
	return result, res.Time
}

// recordSolve bumps both solve counters only the first time a user solves a
// problem.
func (s *SubmissionService) recordSolve(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string) error {
	added, err := s.userRepo.MarkProblemSolved(ctx, tx, userID, problemID, submissionID)
	if err != nil {
		return common.Errorf("failed to mark problem solved: %w", err)
	}
	if !added {
		return nil
	}
	if err := s.problemRepo.IncrementSolvedCount(ctx, tx, problemID); err != nil {
		return common.Errorf("failed to increment solved count: %w", err)
	}
	return nil
}

// GetSubmission returns a stored submission to its owner.
func (s *SubmissionService) GetSubmission(ctx context.Context, userID, submissionID string) (*model.Submission, error) {
	sub, err := s.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, common.Errorf("submission not found: %w", err)
	}
	if sub.UserID != userID {
		return nil, common.Errorf("submission belongs to another user: %w", common.ErrForbidden)
	}
	return sub, nil
}
