package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"codejudge/internal/common"
	"codejudge/internal/domain/model"
)

type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
	IncrementSolvedCount(ctx context.Context, tx *sql.Tx, problemID string) error

	AddTestCasesToProblem(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error
	GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) // admin view, every status
	FindActiveTestCases(ctx context.Context, problemID string) ([]model.TestCase, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

const problemColumns = `p.id, p.slug, p.title, p.difficulty, p.status, p.is_blocked, p.default_code_ids,
       p.solved_count, p.memory_limit_kb, p.time_limit_ms, p.created_at, p.updated_at,
       COALESCE((SELECT json_agg(tc.id ORDER BY tc.sort_index) FROM test_cases tc WHERE tc.problem_id = p.id), '[]')`

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	defaultCodeIDs, err := json.Marshal(nonNil(p.DefaultCodeIDs))
	if err != nil {
		return fmt.Errorf("pgProblemRepository.CreateProblem: marshal default code ids: %w", err)
	}

	query := `INSERT INTO problems (id, slug, title, difficulty, status, is_blocked, default_code_ids, memory_limit_kb, time_limit_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = pick(r.db, tx).ExecContext(ctx, query,
		p.ID, p.Slug, p.Title, p.Difficulty, p.Status, p.IsBlocked, string(defaultCodeIDs), p.MemoryLimitKb, p.TimeLimitMs)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems p WHERE p.id = $1`
	problem, err := scanProblem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems p WHERE p.slug = $1`
	problem, err := scanProblem(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemBySlug: %w", err)
	}
	return problem, nil
}

func scanProblem(row *sql.Row) (*model.Problem, error) {
	p := &model.Problem{}
	var defaultCodeIDs, testCaseIDs []byte
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Difficulty, &p.Status, &p.IsBlocked, &defaultCodeIDs,
		&p.SolvedCount, &p.MemoryLimitKb, &p.TimeLimitMs, &p.CreatedAt, &p.UpdatedAt,
		&testCaseIDs,
	)
	if err != nil {
		return nil, err
	}
	if len(defaultCodeIDs) > 0 {
		if err := json.Unmarshal(defaultCodeIDs, &p.DefaultCodeIDs); err != nil {
			return nil, fmt.Errorf("decode default_code_ids: %w", err)
		}
	}
	if len(testCaseIDs) > 0 {
		if err := json.Unmarshal(testCaseIDs, &p.TestCaseIDs); err != nil {
			return nil, fmt.Errorf("decode test case ids: %w", err)
		}
	}
	return p, nil
}

func (r *pgProblemRepository) IncrementSolvedCount(ctx context.Context, tx *sql.Tx, problemID string) error {
	query := `UPDATE problems SET solved_count = solved_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	res, err := pick(r.db, tx).ExecContext(ctx, query, problemID)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.IncrementSolvedCount: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProblemRepository) AddTestCasesToProblem(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error {
	if len(testCases) == 0 {
		return nil
	}
	query := `INSERT INTO test_cases (id, problem_id, input, output, sort_index, status) VALUES ($1, $2, $3, $4, $5, $6)`
	conn := pick(r.db, tx)
	for _, tc := range testCases {
		if _, err := conn.ExecContext(ctx, query, tc.ID, problemID, tc.Input, tc.Output, tc.Index, tc.Status); err != nil {
			return fmt.Errorf("pgProblemRepository.AddTestCasesToProblem (index %d): %w", tc.Index, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, input, output, sort_index, status, created_at
	          FROM test_cases WHERE problem_id = $1 ORDER BY sort_index ASC`
	return r.queryTestCases(ctx, query, problemID)
}

func (r *pgProblemRepository) FindActiveTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, input, output, sort_index, status, created_at
	          FROM test_cases WHERE problem_id = $1 AND status = $2 ORDER BY sort_index ASC`
	return r.queryTestCases(ctx, query, problemID, model.TestCaseActive)
}

func (r *pgProblemRepository) queryTestCases(ctx context.Context, query string, args ...interface{}) ([]model.TestCase, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.queryTestCases: %w", err)
	}
	defer rows.Close()

	var testCases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.Output, &tc.Index, &tc.Status, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.queryTestCases scan: %w", err)
		}
		testCases = append(testCases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.queryTestCases rows: %w", err)
	}
	return testCases, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
