package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/racetime/internal/apperrors"
	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/AdamBeresnev/racetime/internal/store"
)

// ResultsService computes team results and competition rankings on demand.
type ResultsService struct {
	competitions *store.CompetitionStore
	judges       *store.JudgeStore
	records      *store.RecordStore
	maxRecords   int
}

func NewResultsService(competitions *store.CompetitionStore, judges *store.JudgeStore, records *store.RecordStore, maxRecords int) *ResultsService {
	return &ResultsService{
		competitions: competitions,
		judges:       judges,
		records:      records,
		maxRecords:   maxRecords,
	}
}

// ComputeTeamResult aggregates the team's fastest records, at most limit of them.
// A non-positive limit uses the configured per-team cap.
func (s *ResultsService) ComputeTeamResult(ctx context.Context, teamID int64, limit int) (*TeamResult, error) {
	if limit <= 0 {
		limit = s.maxRecords
	}

	team, err := s.judges.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("team %d does not exist", teamID))
		}
		return nil, apperrors.Persistence("load team", err)
	}

	records, err := s.records.ListForTeam(ctx, team.ID, limit)
	if err != nil {
		return nil, apperrors.Persistence("list team records", err)
	}
	disqualified, err := s.records.HasAbsence(ctx, team.ID)
	if err != nil {
		return nil, apperrors.Persistence("check team absence", err)
	}

	result := summarize(*team, records, limit, disqualified)
	return &result, nil
}

// ComputeDisqualification reports whether the team holds a zero-time record.
func (s *ResultsService) ComputeDisqualification(ctx context.Context, teamID int64) (bool, error) {
	disqualified, err := s.records.HasAbsence(ctx, teamID)
	if err != nil {
		return false, apperrors.Persistence("check team absence", err)
	}
	return disqualified, nil
}

// RankCompetition ranks every team of the competition that holds at least one record.
func (s *ResultsService) RankCompetition(ctx context.Context, competitionID int64, mode RankingMode) ([]Standing, error) {
	if mode != RankByTotalTime && mode != RankByBestTime {
		return nil, apperrors.New(apperrors.CodeValidation, "unknown ranking mode "+string(mode))
	}

	if _, err := s.competitions.GetCompetition(ctx, competitionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("competition %d does not exist", competitionID))
		}
		return nil, apperrors.Persistence("load competition", err)
	}

	teams, err := s.judges.ListTeamsByCompetition(ctx, competitionID)
	if err != nil {
		return nil, apperrors.Persistence("list competition teams", err)
	}
	records, err := s.records.ListForCompetition(ctx, competitionID)
	if err != nil {
		return nil, apperrors.Persistence("list competition records", err)
	}

	byTeam := make(map[int64][]race.TimeRecord, len(teams))
	for _, r := range records {
		byTeam[r.TeamID] = append(byTeam[r.TeamID], r)
	}

	results := make([]TeamResult, 0, len(teams))
	for _, team := range teams {
		teamRecords := byTeam[team.ID]
		disqualified := false
		for i := range teamRecords {
			if teamRecords[i].IsAbsence() {
				disqualified = true
				break
			}
		}
		result := summarize(team, teamRecords, s.maxRecords, disqualified)
		result.Records = nil
		results = append(results, result)
	}

	return rankResults(results, mode), nil
}
