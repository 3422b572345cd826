package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codejudge/internal/common"
	"codejudge/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	// MarkProblemSolved records (userID, problemID) in the solved set and bumps
	// the user's counter. It reports false, without touching the counter, when
	// the pair was already recorded.
	MarkProblemSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string) (bool, error)
	ListAdminIDs(ctx context.Context) ([]string, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT u.id, u.username, u.role, u.problems_solved, u.created_at, u.updated_at,
	                 COALESCE((SELECT json_agg(s.problem_id ORDER BY s.solved_at) FROM user_solved_problems s WHERE s.user_id = u.id), '[]')
	          FROM users u WHERE u.id = $1`
	user := &model.User{}
	var solved []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Role, &user.ProblemsSolved, &user.CreatedAt, &user.UpdatedAt, &solved,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	if err := decodeStringList(solved, &user.SolvedProblems); err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) MarkProblemSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string) (bool, error) {
	conn := pick(r.db, tx)

	insert := `INSERT INTO user_solved_problems (user_id, problem_id, submission_id)
	           VALUES ($1, $2, $3) ON CONFLICT (user_id, problem_id) DO NOTHING`
	res, err := conn.ExecContext(ctx, insert, userID, problemID, submissionID)
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.MarkProblemSolved insert: %w", err)
	}
	added, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.MarkProblemSolved rows: %w", err)
	}
	if added == 0 {
		return false, nil
	}

	update := `UPDATE users SET problems_solved = problems_solved + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	res, err = conn.ExecContext(ctx, update, userID)
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.MarkProblemSolved update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return false, fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
	}
	return true, nil
}

func (r *pgUserRepository) ListAdminIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users WHERE role = $1`, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListAdminIDs: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}
