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

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	results := sub.Results
	if results == nil {
		results = []model.TestCaseResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: marshal results: %w", err)
	}

	query := `INSERT INTO submissions (id, user_id, problem_id, language, code, results, passed, is_run_only, execution_time_ms, contest_id, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = pick(r.db, tx).ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.ProblemID, sub.Language, sub.Code, string(raw),
		sub.Passed, sub.IsRunOnly, sub.ExecutionTime, sub.ContestID, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT id, user_id, problem_id, language, code, results, passed, is_run_only, execution_time_ms, contest_id, submitted_at
	          FROM submissions WHERE id = $1`
	sub := &model.Submission{}
	var raw []byte
	var contestID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Language, &sub.Code, &raw,
		&sub.Passed, &sub.IsRunOnly, &sub.ExecutionTime, &contestID, &sub.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	if contestID.Valid {
		sub.ContestID = &contestID.String
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sub.Results); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: decode results: %w", err)
		}
	}
	return sub, nil
}
