package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RecordStore persists time records. Writes always happen inside a caller-owned
// transaction; the reconciliation of totals and components is the caller's job.
type RecordStore struct {
	db *sqlx.DB
}

const (
	countForTeamQuery   = "SELECT COUNT(*) FROM time_records WHERE team_id = ?"
	findByKeyQuery      = "SELECT * FROM time_records WHERE record_id = ?"
	listForTeamQuery    = "SELECT * FROM time_records WHERE team_id = ? ORDER BY total_ms ASC, id ASC LIMIT ?"
	hasAbsenceQuery     = "SELECT EXISTS (SELECT 1 FROM time_records WHERE team_id = ? AND total_ms = 0)"
	listForCompetitionQ = `
		SELECT r.* FROM time_records r
		JOIN teams t ON t.id = r.team_id
		JOIN judges j ON j.id = t.judge_id
		WHERE j.competition_id = ?
		ORDER BY r.team_id ASC, r.total_ms ASC, r.id ASC
	`
	insertRecordQuery = `
		INSERT INTO time_records (record_id, team_id, total_ms, hours, minutes, seconds, milliseconds, created_at)
		VALUES (:record_id, :team_id, :total_ms, :hours, :minutes, :seconds, :milliseconds, :created_at)
	`
)

func NewRecordStore(db *sqlx.DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) CountForTeam(ctx context.Context, tx *sqlx.Tx, teamID int64) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, countForTeamQuery, teamID)
	return count, err
}

// FindByIdempotencyKey returns the record stored under key, or nil when there is none.
func (s *RecordStore) FindByIdempotencyKey(ctx context.Context, tx *sqlx.Tx, key uuid.UUID) (*race.TimeRecord, error) {
	var record race.TimeRecord
	err := tx.GetContext(ctx, &record, findByKeyQuery, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RecordStore) Insert(ctx context.Context, tx *sqlx.Tx, record *race.TimeRecord) error {
	res, err := tx.NamedExecContext(ctx, insertRecordQuery, record)
	if err != nil {
		return err
	}
	record.ID, err = res.LastInsertId()
	return err
}

// ListForTeam returns up to limit records of a team, fastest first.
func (s *RecordStore) ListForTeam(ctx context.Context, teamID int64, limit int) ([]race.TimeRecord, error) {
	var records []race.TimeRecord
	err := s.db.SelectContext(ctx, &records, listForTeamQuery, teamID, limit)
	return records, err
}

func (s *RecordStore) HasAbsence(ctx context.Context, teamID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, hasAbsenceQuery, teamID)
	return exists, err
}

// ListForCompetition returns every record of the competition grouped by team, each group
// ordered fastest first.
func (s *RecordStore) ListForCompetition(ctx context.Context, competitionID int64) ([]race.TimeRecord, error) {
	var records []race.TimeRecord
	err := s.db.SelectContext(ctx, &records, listForCompetitionQ, competitionID)
	return records, err
}
