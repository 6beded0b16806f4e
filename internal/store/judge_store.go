package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/jmoiron/sqlx"
)

type JudgeStore struct {
	db *sqlx.DB
}

const (
	getJudgeQuery       = "SELECT * FROM judges WHERE id = ?"
	getTeamQuery        = "SELECT * FROM teams WHERE id = ?"
	getTeamByJudgeQuery = "SELECT * FROM teams WHERE judge_id = ?"
	teamsByCompetitionQ = `
		SELECT t.* FROM teams t
		JOIN judges j ON j.id = t.judge_id
		WHERE j.competition_id = ?
		ORDER BY t.number ASC
	`
	createJudgeQuery = `
		INSERT INTO judges (username, first_name, last_name, competition_id, is_active, created_at)
		VALUES (:username, :first_name, :last_name, :competition_id, :is_active, :created_at)
	`
	createTeamQuery = `
		INSERT INTO teams (name, number, judge_id)
		VALUES (:name, :number, :judge_id)
	`
)

func NewJudgeStore(db *sqlx.DB) *JudgeStore {
	return &JudgeStore{db: db}
}

func (s *JudgeStore) CreateJudge(ctx context.Context, judge *race.Judge) error {
	if judge.CreatedAt.IsZero() {
		judge.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.NamedExecContext(ctx, createJudgeQuery, judge)
	if err != nil {
		return err
	}
	judge.ID, err = res.LastInsertId()
	return err
}

func (s *JudgeStore) GetJudge(ctx context.Context, id int64) (*race.Judge, error) {
	var judge race.Judge
	if err := s.db.GetContext(ctx, &judge, getJudgeQuery, id); err != nil {
		return nil, err
	}
	return &judge, nil
}

func (s *JudgeStore) CreateTeam(ctx context.Context, team *race.Team) error {
	res, err := s.db.NamedExecContext(ctx, createTeamQuery, team)
	if err != nil {
		return err
	}
	team.ID, err = res.LastInsertId()
	return err
}

func (s *JudgeStore) GetTeam(ctx context.Context, id int64) (*race.Team, error) {
	var team race.Team
	if err := s.db.GetContext(ctx, &team, getTeamQuery, id); err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *JudgeStore) GetTeamTx(ctx context.Context, tx *sqlx.Tx, id int64) (*race.Team, error) {
	var team race.Team
	if err := tx.GetContext(ctx, &team, getTeamQuery, id); err != nil {
		return nil, err
	}
	return &team, nil
}

// GetTeamByJudge returns the single team assigned to a judge.
func (s *JudgeStore) GetTeamByJudge(ctx context.Context, judgeID int64) (*race.Team, error) {
	var team race.Team
	if err := s.db.GetContext(ctx, &team, getTeamByJudgeQuery, judgeID); err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *JudgeStore) ListTeamsByCompetition(ctx context.Context, competitionID int64) ([]race.Team, error) {
	var teams []race.Team
	err := s.db.SelectContext(ctx, &teams, teamsByCompetitionQ, competitionID)
	return teams, err
}
