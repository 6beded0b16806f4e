package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/jmoiron/sqlx"
)

type CompetitionStore struct {
	db *sqlx.DB
}

const (
	getCompetitionQuery         = "SELECT * FROM competitions WHERE id = ?"
	getCompetitionForJudgeQuery = `
		SELECT c.* FROM competitions c
		JOIN judges j ON j.competition_id = c.id
		WHERE j.id = ?
	`
	createCompetitionQuery = `
		INSERT INTO competitions (name, category, scheduled_at, is_active, status, created_at)
		VALUES (:name, :category, :scheduled_at, :is_active, :status, :created_at)
	`
	updateLifecycleQuery = `
		UPDATE competitions SET
		status = ?,
		started_at = ?,
		finished_at = ?
		WHERE id = ? AND status = ?
	`
)

func NewCompetitionStore(db *sqlx.DB) *CompetitionStore {
	return &CompetitionStore{db: db}
}

func (s *CompetitionStore) CreateCompetition(ctx context.Context, competition *race.Competition) error {
	if competition.Status == "" {
		competition.Status = race.StatusScheduled
	}
	if competition.CreatedAt.IsZero() {
		competition.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.NamedExecContext(ctx, createCompetitionQuery, competition)
	if err != nil {
		return err
	}
	competition.ID, err = res.LastInsertId()
	return err
}

func (s *CompetitionStore) GetCompetition(ctx context.Context, id int64) (*race.Competition, error) {
	var competition race.Competition
	if err := s.db.GetContext(ctx, &competition, getCompetitionQuery, id); err != nil {
		return nil, err
	}
	return &competition, nil
}

func (s *CompetitionStore) GetCompetitionTx(ctx context.Context, tx *sqlx.Tx, id int64) (*race.Competition, error) {
	var competition race.Competition
	if err := tx.GetContext(ctx, &competition, getCompetitionQuery, id); err != nil {
		return nil, err
	}
	return &competition, nil
}

// GetCompetitionForJudgeTx reads the competition a judge belongs to inside tx.
func (s *CompetitionStore) GetCompetitionForJudgeTx(ctx context.Context, tx *sqlx.Tx, judgeID int64) (*race.Competition, error) {
	var competition race.Competition
	if err := tx.GetContext(ctx, &competition, getCompetitionForJudgeQuery, judgeID); err != nil {
		return nil, err
	}
	return &competition, nil
}

// UpdateLifecycleTx persists the lifecycle fields of competition, provided the stored
// status still equals from. It reports whether a row was updated.
func (s *CompetitionStore) UpdateLifecycleTx(ctx context.Context, tx *sqlx.Tx, competition *race.Competition, from race.CompetitionStatus) (bool, error) {
	res, err := tx.ExecContext(ctx, updateLifecycleQuery,
		competition.Status, competition.StartedAt, competition.FinishedAt, competition.ID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
