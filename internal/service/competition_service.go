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
	"github.com/AdamBeresnev/racetime/internal/pubsub"
	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/AdamBeresnev/racetime/internal/store"
	"github.com/AdamBeresnev/racetime/internal/syncutil"
	"github.com/jmoiron/sqlx"
)

// CompetitionService owns the competition lifecycle and announces transitions.
type CompetitionService struct {
	db     *sqlx.DB
	store  *store.CompetitionStore
	broker pubsub.Broker
	locks  *syncutil.KeyedMutex
	now    func() time.Time
}

func NewCompetitionService(db *sqlx.DB, store *store.CompetitionStore, broker pubsub.Broker) *CompetitionService {
	return &CompetitionService{
		db:     db,
		store:  store,
		broker: broker,
		locks:  syncutil.NewKeyedMutex(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type transition struct {
	from      race.CompetitionStatus
	apply     func(*race.Competition, time.Time) bool
	event     pubsub.EventType
	rejection func(*race.Competition) string
}

var (
	startTransition = transition{
		from:  race.StatusScheduled,
		apply: (*race.Competition).Start,
		event: pubsub.CompetitionStarted,
		rejection: func(c *race.Competition) string {
			if c.Status == race.StatusRunning {
				return "competition is already running"
			}
			return "competition has already finished"
		},
	}
	stopTransition = transition{
		from:  race.StatusRunning,
		apply: (*race.Competition).Stop,
		event: pubsub.CompetitionStopped,
		rejection: func(c *race.Competition) string {
			if c.Status == race.StatusFinished {
				return "competition has already finished"
			}
			return "competition is not running"
		},
	}
)

// Start opens a scheduled, active competition for submissions.
func (s *CompetitionService) Start(ctx context.Context, competitionID int64) (*race.Competition, error) {
	return s.transition(ctx, competitionID, startTransition)
}

// Stop closes a running competition. Finished competitions never reopen.
func (s *CompetitionService) Stop(ctx context.Context, competitionID int64) (*race.Competition, error) {
	return s.transition(ctx, competitionID, stopTransition)
}

func (s *CompetitionService) transition(ctx context.Context, competitionID int64, t transition) (*race.Competition, error) {
	unlock := s.locks.Lock(fmt.Sprintf("competition:%d", competitionID))
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.Persistence("begin lifecycle transaction", err)
	}
	defer tx.Rollback()

	competition, err := s.store.GetCompetitionTx(ctx, tx, competitionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("competition %d does not exist", competitionID))
		}
		return nil, apperrors.Persistence("load competition", err)
	}

	if t.event == pubsub.CompetitionStarted && !competition.IsActive {
		return nil, apperrors.New(apperrors.CodeState, "competition is not active")
	}
	if !t.apply(competition, s.now()) {
		return nil, apperrors.New(apperrors.CodeState, t.rejection(competition))
	}

	updated, err := s.store.UpdateLifecycleTx(ctx, tx, competition, t.from)
	if err != nil {
		return nil, apperrors.Persistence("update competition status", err)
	}
	if !updated {
		return nil, apperrors.New(apperrors.CodeState, "competition status changed concurrently")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Persistence("commit lifecycle transition", err)
	}

	metrics.RecordLifecycleTransition(string(competition.Status))
	slog.Info("competition status changed", "competition_id", competition.ID, "status", competition.Status)
	s.announce(ctx, competition, t.event)

	return competition, nil
}

// announce publishes a committed transition. The transition stands even if delivery fails.
func (s *CompetitionService) announce(ctx context.Context, competition *race.Competition, eventType pubsub.EventType) {
	if s.broker == nil {
		return
	}
	event := pubsub.Event{
		Type:          eventType,
		CompetitionID: competition.ID,
		Name:          competition.Name,
		Running:       competition.IsRunning(),
		OccurredAt:    s.now(),
	}
	if err := s.broker.Publish(context.WithoutCancel(ctx), pubsub.CompetitionTopic(competition.ID), event); err != nil {
		slog.Error("failed to publish lifecycle event", "competition_id", competition.ID, "type", eventType, "error", err)
	}
}

// Snapshot returns the current state of a competition.
func (s *CompetitionService) Snapshot(ctx context.Context, competitionID int64) (*race.Snapshot, error) {
	competition, err := s.store.GetCompetition(ctx, competitionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("competition %d does not exist", competitionID))
		}
		return nil, apperrors.Persistence("load competition", err)
	}
	snap := competition.Snapshot()
	return &snap, nil
}
