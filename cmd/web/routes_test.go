package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/AdamBeresnev/racetime/internal/auth"
	"github.com/AdamBeresnev/racetime/internal/config"
	"github.com/AdamBeresnev/racetime/internal/db/dbtest"
	"github.com/AdamBeresnev/racetime/internal/gateway"
	"github.com/AdamBeresnev/racetime/internal/pubsub"
	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/AdamBeresnev/racetime/internal/service"
	"github.com/AdamBeresnev/racetime/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const operatorKey = "let-me-in"

type routesEnv struct {
	server       *httptest.Server
	client       *http.Client
	competition  *race.Competition
	team         *race.Team
	judge        *race.Judge
	registration *service.RegistrationService
}

func newRoutesEnv(t *testing.T) *routesEnv {
	t.Helper()
	ctx := context.Background()

	database := dbtest.Open(t)
	broker := pubsub.NewMemoryBroker()
	t.Cleanup(broker.Close)

	cfg := config.Config{
		JWTSecret:         "routes-test-secret-0123456789",
		OperatorKey:       operatorKey,
		MaxRecordsPerTeam: race.MaxRecordsPerTeam,
		MaxBatchSize:      50,
	}

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(database.DB, 0)

	competitionStore := store.NewCompetitionStore(database)
	judgeStore := store.NewJudgeStore(database)
	recordStore := store.NewRecordStore(database)

	competitions := service.NewCompetitionService(database, competitionStore, broker)
	registration := service.NewRegistrationService(database, competitionStore, judgeStore, recordStore, cfg.MaxRecordsPerTeam, cfg.MaxBatchSize)

	app := &application{
		cfg:            cfg,
		sessionManager: sessionManager,
		competitions:   competitions,
		results:        service.NewResultsService(competitionStore, judgeStore, recordStore, cfg.MaxRecordsPerTeam),
		judgeSessions:  gateway.NewHandler(auth.NewJWTValidator(cfg.JWTSecret, judgeStore), judgeStore, competitions, registration, broker),
		gatherer:       prometheus.NewRegistry(),
	}

	server := httptest.NewServer(newRouter(app))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	competition := &race.Competition{Name: "Night Sprint", Category: race.CategoryStudents, ScheduledAt: time.Now().UTC(), IsActive: true}
	require.NoError(t, competitionStore.CreateCompetition(ctx, competition))
	judge := &race.Judge{Username: "ines", CompetitionID: competition.ID, IsActive: true}
	require.NoError(t, judgeStore.CreateJudge(ctx, judge))
	team := &race.Team{Name: "Owls", Number: 1, JudgeID: judge.ID}
	require.NoError(t, judgeStore.CreateTeam(ctx, team))

	return &routesEnv{
		server:       server,
		client:       &http.Client{Jar: jar},
		competition:  competition,
		team:         team,
		judge:        judge,
		registration: registration,
	}
}

func (e *routesEnv) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.Post(e.server.URL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *routesEnv) get(t *testing.T, path string, v any) int {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealthCheck(t *testing.T) {
	env := newRoutesEnv(t)
	assert.Equal(t, http.StatusOK, env.get(t, "/up", nil))
}

func TestAdminLifecycleRequiresOperator(t *testing.T) {
	env := newRoutesEnv(t)
	startPath := "/admin/competitions/" + itoa(env.competition.ID) + "/start"
	stopPath := "/admin/competitions/" + itoa(env.competition.ID) + "/stop"

	resp := env.post(t, startPath, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.post(t, "/admin/login", url.Values{"key": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.post(t, "/admin/login", url.Values{"key": {operatorKey}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.post(t, startPath, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snapshot race.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.True(t, snapshot.Running)

	resp = env.post(t, startPath, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.post(t, stopPath, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.post(t, "/admin/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.post(t, stopPath, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReadEndpoints(t *testing.T) {
	env := newRoutesEnv(t)

	var snapshot race.Snapshot
	require.Equal(t, http.StatusOK, env.get(t, "/competitions/"+itoa(env.competition.ID), &snapshot))
	assert.Equal(t, "Night Sprint", snapshot.Name)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/competitions/999", nil))
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/competitions/abc", nil))

	env.post(t, "/admin/login", url.Values{"key": {operatorKey}})
	require.Equal(t, http.StatusOK, env.post(t, "/admin/competitions/"+itoa(env.competition.ID)+"/start", nil).StatusCode)

	ms := int64(65000)
	_, err := env.registration.SubmitSingle(context.Background(), env.judge, env.team.ID, service.RecordInput{TotalMs: &ms})
	require.NoError(t, err)

	var ranking struct {
		Mode      string             `json:"mode"`
		Standings []service.Standing `json:"standings"`
	}
	require.Equal(t, http.StatusOK, env.get(t, "/competitions/"+itoa(env.competition.ID)+"/ranking?mode=best", &ranking))
	assert.Equal(t, "best", ranking.Mode)
	require.Len(t, ranking.Standings, 1)
	require.NotNil(t, ranking.Standings[0].Rank)
	assert.Equal(t, 1, *ranking.Standings[0].Rank)
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/competitions/"+itoa(env.competition.ID)+"/ranking?mode=slowest", nil))

	var result service.TeamResult
	require.Equal(t, http.StatusOK, env.get(t, "/teams/"+itoa(env.team.ID)+"/results", &result))
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "0h 1m 5s 0ms", result.TotalFormatted)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
