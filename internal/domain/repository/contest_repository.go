package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codejudge/internal/common"
	"codejudge/internal/domain/model"
)

type ContestRepository interface {
	FindContestByID(ctx context.Context, id string) (*model.Contest, error)
	// FindStartingContests returns unblocked contests whose start time lies in [from, to].
	FindStartingContests(ctx context.Context, from, to time.Time) ([]model.Contest, error)
	ParticipantIDs(ctx context.Context, contestID string) ([]string, error)
	// ClaimStartNotification stamps start_notified_at once. Only the first
	// caller gets true.
	ClaimStartNotification(ctx context.Context, contestID string) (bool, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT id, title, start_time, end_time, is_blocked, start_notified_at FROM contests WHERE id = $1`
	c := &model.Contest{}
	var notifiedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Title, &c.StartTime, &c.EndTime, &c.IsBlocked, &notifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestByID: %w", err)
	}
	if notifiedAt.Valid {
		c.StartNotifiedAt = &notifiedAt.Time
	}

	participants, err := r.ParticipantIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Participants = participants
	return c, nil
}

func (r *pgContestRepository) FindStartingContests(ctx context.Context, from, to time.Time) ([]model.Contest, error) {
	query := `SELECT id, title, start_time, end_time, is_blocked
	          FROM contests
	          WHERE start_time >= $1 AND start_time <= $2 AND is_blocked = false
	          ORDER BY start_time ASC`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.FindStartingContests: %w", err)
	}
	defer rows.Close()

	var contests []model.Contest
	for rows.Next() {
		var c model.Contest
		if err := rows.Scan(&c.ID, &c.Title, &c.StartTime, &c.EndTime, &c.IsBlocked); err != nil {
			return nil, fmt.Errorf("pgContestRepository.FindStartingContests scan: %w", err)
		}
		contests = append(contests, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.FindStartingContests rows: %w", err)
	}
	return contests, nil
}

func (r *pgContestRepository) ParticipantIDs(ctx context.Context, contestID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM contest_participants WHERE contest_id = $1 ORDER BY joined_at ASC`, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ParticipantIDs: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *pgContestRepository) ClaimStartNotification(ctx context.Context, contestID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contests SET start_notified_at = CURRENT_TIMESTAMP WHERE id = $1 AND start_notified_at IS NULL`, contestID)
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.ClaimStartNotification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.ClaimStartNotification rows: %w", err)
	}
	return n == 1, nil
}
