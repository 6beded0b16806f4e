package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/racetime/internal/apperrors"
	"github.com/AdamBeresnev/racetime/internal/metrics"
	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/AdamBeresnev/racetime/internal/store"
	"github.com/AdamBeresnev/racetime/internal/syncutil"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	submissionSingle = "single"
	submissionBatch  = "batch"
)

// RecordInput is one submitted finish time. TotalMs is required; the components are optional
// and, when any of them is non-zero, take precedence over TotalMs.
type RecordInput struct {
	TotalMs        *int64 `json:"totalMs"`
	Hours          int64  `json:"hours"`
	Minutes        int64  `json:"minutes"`
	Seconds        int64  `json:"seconds"`
	Milliseconds   int64  `json:"milliseconds"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type SubmitResult struct {
	Record    *race.TimeRecord `json:"record"`
	Duplicate bool             `json:"duplicate"`
}

type SavedItem struct {
	Index     int       `json:"index"`
	RecordID  uuid.UUID `json:"recordId"`
	TotalMs   int64     `json:"totalMs"`
	Duplicate bool      `json:"duplicate"`
}

type FailedItem struct {
	Index  int            `json:"index"`
	Code   apperrors.Code `json:"code"`
	Reason string         `json:"reason"`
}

type BatchResult struct {
	TotalSent   int          `json:"totalSent"`
	TotalSaved  int          `json:"totalSaved"`
	TotalFailed int          `json:"totalFailed"`
	Saved       []SavedItem  `json:"saved"`
	Failed      []FailedItem `json:"failed"`
}

func (r *BatchResult) save(index int, record *race.TimeRecord, duplicate bool) {
	r.Saved = append(r.Saved, SavedItem{Index: index, RecordID: record.RecordID, TotalMs: record.TotalMs, Duplicate: duplicate})
	r.TotalSaved++
}

func (r *BatchResult) fail(index int, err error) {
	r.Failed = append(r.Failed, FailedItem{Index: index, Code: apperrors.CodeOf(err), Reason: apperrors.PublicMessage(err)})
	r.TotalFailed++
	metrics.RecordSubmissionFailed(string(apperrors.CodeOf(err)))
}

// RegistrationService accepts time records from judges while their competition runs.
type RegistrationService struct {
	db           *sqlx.DB
	competitions *store.CompetitionStore
	judges       *store.JudgeStore
	records      *store.RecordStore
	teamLocks    *syncutil.KeyedMutex
	maxRecords   int
	maxBatch     int
	now          func() time.Time
}

func NewRegistrationService(
	db *sqlx.DB,
	competitions *store.CompetitionStore,
	judges *store.JudgeStore,
	records *store.RecordStore,
	maxRecords, maxBatch int,
) *RegistrationService {
	return &RegistrationService{
		db:           db,
		competitions: competitions,
		judges:       judges,
		records:      records,
		teamLocks:    syncutil.NewKeyedMutex(),
		maxRecords:   maxRecords,
		maxBatch:     maxBatch,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// MaxRecords is the per-team record cap the service enforces.
func (s *RegistrationService) MaxRecords() int {
	return s.maxRecords
}

// candidate is a validated input ready to be stored.
type candidate struct {
	key       uuid.UUID
	hasKey    bool
	total     int64
	h, m, sec int64
	ms        int64
}

func validateInput(in RecordInput) (candidate, error) {
	var c candidate
	if in.TotalMs == nil {
		return c, apperrors.New(apperrors.CodeValidation, "totalMs is required")
	}
	if *in.TotalMs < 0 || in.Hours < 0 || in.Minutes < 0 || in.Seconds < 0 || in.Milliseconds < 0 {
		return c, apperrors.New(apperrors.CodeValidation, "time values must not be negative")
	}
	if in.Minutes > 59 || in.Seconds > 59 {
		return c, apperrors.New(apperrors.CodeValidation, "minutes and seconds must be between 0 and 59")
	}
	if in.Milliseconds > 999 {
		return c, apperrors.New(apperrors.CodeValidation, "milliseconds must be between 0 and 999")
	}
	if in.Hours > race.MaxHours || *in.TotalMs > race.MaxTotalMs {
		return c, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("time must be below %d hours", race.MaxHours+1))
	}

	if in.IdempotencyKey != "" {
		key, err := uuid.Parse(in.IdempotencyKey)
		if err != nil {
			return c, apperrors.Wrap(apperrors.CodeValidation, "idempotencyKey must be a UUID", err)
		}
		c.key, c.hasKey = key, true
	} else {
		c.key = uuid.New()
	}

	if in.Hours != 0 || in.Minutes != 0 || in.Seconds != 0 || in.Milliseconds != 0 {
		c.h, c.m, c.sec, c.ms = in.Hours, in.Minutes, in.Seconds, in.Milliseconds
		c.total = race.Compose(c.h, c.m, c.sec, c.ms)
	} else {
		c.total = *in.TotalMs
		c.h, c.m, c.sec, c.ms = race.Decompose(c.total)
	}
	return c, nil
}

func (c candidate) record(teamID int64, now time.Time) *race.TimeRecord {
	return &race.TimeRecord{
		RecordID:     c.key,
		TeamID:       teamID,
		TotalMs:      c.total,
		Hours:        c.h,
		Minutes:      c.m,
		Seconds:      c.sec,
		Milliseconds: c.ms,
		CreatedAt:    now,
	}
}

// authorize checks that the judge's competition is running and that the team belongs to the judge.
func (s *RegistrationService) authorize(ctx context.Context, tx *sqlx.Tx, judge *race.Judge, teamID int64) (*race.Team, error) {
	competition, err := s.competitions.GetCompetitionForJudgeTx(ctx, tx, judge.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeNotFound, "judge has no competition")
		}
		return nil, apperrors.Persistence("load competition", err)
	}
	if !competition.IsRunning() {
		return nil, apperrors.New(apperrors.CodeState, "competition is not running")
	}

	team, err := s.judges.GetTeamTx(ctx, tx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("team %d does not exist", teamID))
		}
		return nil, apperrors.Persistence("load team", err)
	}
	if team.JudgeID != judge.ID {
		return nil, apperrors.New(apperrors.CodeAuthorization, "team is not assigned to this judge")
	}
	return team, nil
}

// findExisting returns the record already stored under the candidate's key. Keys are
// unique across all teams, so a key held by another team's record is rejected.
func (s *RegistrationService) findExisting(ctx context.Context, tx *sqlx.Tx, teamID int64, c candidate) (*race.TimeRecord, error) {
	if !c.hasKey {
		return nil, nil
	}
	existing, err := s.records.FindByIdempotencyKey(ctx, tx, c.key)
	if err != nil {
		return nil, apperrors.Persistence("look up idempotency key", err)
	}
	if existing != nil && existing.TeamID != teamID {
		return nil, apperrors.New(apperrors.CodeValidation, "idempotencyKey is already used by another team")
	}
	return existing, nil
}

// SubmitSingle stores one record for the judge's team. Redelivering an input with a known
// idempotency key returns the stored record with Duplicate set and consumes no capacity.
func (s *RegistrationService) SubmitSingle(ctx context.Context, judge *race.Judge, teamID int64, in RecordInput) (*SubmitResult, error) {
	result, err := s.submitSingle(ctx, judge, teamID, in)
	if err != nil {
		metrics.RecordSubmissionFailed(string(apperrors.CodeOf(err)))
		return nil, err
	}
	if result.Duplicate {
		metrics.RecordDuplicate(submissionSingle)
	} else {
		metrics.RecordSaved(submissionSingle)
	}
	return result, nil
}

func (s *RegistrationService) submitSingle(ctx context.Context, judge *race.Judge, teamID int64, in RecordInput) (*SubmitResult, error) {
	c, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.Persistence("begin submission transaction", err)
	}
	defer tx.Rollback()

	team, err := s.authorize(ctx, tx, judge, teamID)
	if err != nil {
		return nil, err
	}

	existing, err := s.findExisting(ctx, tx, team.ID, c)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &SubmitResult{Record: existing, Duplicate: true}, nil
	}

	unlock := s.teamLocks.Lock(teamLockKey(team.ID))
	defer unlock()

	existing, err = s.findExisting(ctx, tx, team.ID, c)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &SubmitResult{Record: existing, Duplicate: true}, nil
	}

	count, err := s.records.CountForTeam(ctx, tx, team.ID)
	if err != nil {
		return nil, apperrors.Persistence("count team records", err)
	}
	if count >= s.maxRecords {
		return nil, capacityError(s.maxRecords)
	}

	record := c.record(team.ID, s.now())
	if err := s.records.Insert(ctx, tx, record); err != nil {
		return nil, apperrors.Persistence("insert time record", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Persistence("commit time record", err)
	}

	slog.Info("time record saved", "judge_id", judge.ID, "team_id", team.ID, "record_id", record.RecordID, "total_ms", record.TotalMs)
	return &SubmitResult{Record: record}, nil
}

// SubmitBatch stores several records for the judge's team in input order. Items fail
// independently; a precondition failure fails every item with the same reason. Only a
// batch that is too large is rejected as a whole.
func (s *RegistrationService) SubmitBatch(ctx context.Context, judge *race.Judge, teamID int64, inputs []RecordInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "batch is empty")
	}
	if len(inputs) > s.maxBatch {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("batch exceeds %d records", s.maxBatch))
	}

	result := &BatchResult{
		TotalSent: len(inputs),
		Saved:     []SavedItem{},
		Failed:    []FailedItem{},
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		failAll(result, len(inputs), apperrors.Persistence("begin batch transaction", err))
		return result, nil
	}
	defer tx.Rollback()

	team, err := s.authorize(ctx, tx, judge, teamID)
	if err != nil {
		failAll(result, len(inputs), err)
		return result, nil
	}

	unlock := s.teamLocks.Lock(teamLockKey(team.ID))
	defer unlock()

	count, err := s.records.CountForTeam(ctx, tx, team.ID)
	if err != nil {
		failAll(result, len(inputs), apperrors.Persistence("count team records", err))
		return result, nil
	}

	var inserted []*race.TimeRecord
	for i, in := range inputs {
		c, err := validateInput(in)
		if err != nil {
			result.fail(i, err)
			continue
		}

		existing, err := s.findExisting(ctx, tx, team.ID, c)
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.CodePersistence {
				slog.Error("batch idempotency lookup failed", "team_id", team.ID, "index", i, "error", err)
			}
			result.fail(i, err)
			continue
		}
		if existing != nil {
			result.save(i, existing, true)
			metrics.RecordDuplicate(submissionBatch)
			continue
		}

		if count >= s.maxRecords {
			result.fail(i, capacityError(s.maxRecords))
			continue
		}

		record := c.record(team.ID, s.now())
		if err := s.records.Insert(ctx, tx, record); err != nil {
			slog.Error("batch insert failed", "team_id", team.ID, "index", i, "error", err)
			result.fail(i, apperrors.Persistence("insert time record", err))
			continue
		}
		count++
		inserted = append(inserted, record)
		result.save(i, record, false)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("batch commit failed", "team_id", team.ID, "error", err)
		return commitFailure(len(inputs), err), nil
	}

	for _, record := range inserted {
		metrics.RecordSaved(submissionBatch)
		slog.Info("time record saved", "judge_id", judge.ID, "team_id", team.ID, "record_id", record.RecordID, "total_ms", record.TotalMs)
	}
	return result, nil
}

func failAll(result *BatchResult, n int, err error) {
	for i := range n {
		result.fail(i, err)
	}
}

// commitFailure reports every item as failed; nothing from the batch was persisted.
func commitFailure(n int, err error) *BatchResult {
	result := &BatchResult{TotalSent: n, Saved: []SavedItem{}, Failed: []FailedItem{}}
	failAll(result, n, apperrors.Persistence("commit batch", err))
	return result
}

func capacityError(limit int) error {
	return apperrors.New(apperrors.CodeCapacity, fmt.Sprintf("team already has the maximum of %d records", limit))
}

func teamLockKey(teamID int64) string {
	return fmt.Sprintf("team:%d", teamID)
}
