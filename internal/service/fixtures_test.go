package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AdamBeresnev/racetime/internal/db/dbtest"
	"github.com/AdamBeresnev/racetime/internal/pubsub"
	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/AdamBeresnev/racetime/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db           *sqlx.DB
	broker       *pubsub.MemoryBroker
	competitions *store.CompetitionStore
	judges       *store.JudgeStore
	records      *store.RecordStore
	lifecycle    *CompetitionService
	registration *RegistrationService
	results      *ResultsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := dbtest.Open(t)
	broker := pubsub.NewMemoryBroker()
	t.Cleanup(broker.Close)

	competitions := store.NewCompetitionStore(db)
	judges := store.NewJudgeStore(db)
	records := store.NewRecordStore(db)

	return &testEnv{
		db:           db,
		broker:       broker,
		competitions: competitions,
		judges:       judges,
		records:      records,
		lifecycle:    NewCompetitionService(db, competitions, broker),
		registration: NewRegistrationService(db, competitions, judges, records, race.MaxRecordsPerTeam, 50),
		results:      NewResultsService(competitions, judges, records, race.MaxRecordsPerTeam),
	}
}

type seededTeam struct {
	judge *race.Judge
	team  *race.Team
}

// seedCompetition creates an active, scheduled competition with n judges, each owning one team.
func (e *testEnv) seedCompetition(t *testing.T, n int) (*race.Competition, []seededTeam) {
	t.Helper()
	ctx := context.Background()

	competition := &race.Competition{
		Name:        "City Relay",
		Category:    race.CategoryInterFaculty,
		ScheduledAt: time.Now().UTC(),
		IsActive:    true,
	}
	require.NoError(t, e.competitions.CreateCompetition(ctx, competition))

	seeded := make([]seededTeam, 0, n)
	for i := range n {
		judge := &race.Judge{
			Username:      fmt.Sprintf("judge-%d-%d", competition.ID, i+1),
			FirstName:     "Judge",
			LastName:      fmt.Sprint(i + 1),
			CompetitionID: competition.ID,
			IsActive:      true,
		}
		require.NoError(t, e.judges.CreateJudge(ctx, judge))

		team := &race.Team{Name: fmt.Sprintf("Team %c", 'A'+i), Number: i + 1, JudgeID: judge.ID}
		require.NoError(t, e.judges.CreateTeam(ctx, team))

		seeded = append(seeded, seededTeam{judge: judge, team: team})
	}
	return competition, seeded
}

// seedRunning is seedCompetition followed by a successful start.
func (e *testEnv) seedRunning(t *testing.T, n int) (*race.Competition, []seededTeam) {
	t.Helper()
	competition, seeded := e.seedCompetition(t, n)
	_, err := e.lifecycle.Start(context.Background(), competition.ID)
	require.NoError(t, err)
	return competition, seeded
}

func total(ms int64) RecordInput {
	return RecordInput{TotalMs: &ms}
}

func (e *testEnv) submit(t *testing.T, s seededTeam, totals ...int64) {
	t.Helper()
	for _, ms := range totals {
		_, err := e.registration.SubmitSingle(context.Background(), s.judge, s.team.ID, total(ms))
		require.NoError(t, err)
	}
}
