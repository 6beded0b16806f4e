package service

import (
	"cmp"
	"slices"

	"github.com/AdamBeresnev/racetime/internal/apperrors"
	"github.com/AdamBeresnev/racetime/internal/race"
)

// RankingMode selects the key teams are ordered by.
type RankingMode string

const (
	// RankByTotalTime orders by the sum of a team's counted records.
	RankByTotalTime RankingMode = "total"
	// RankByBestTime orders by a team's single fastest record.
	RankByBestTime RankingMode = "best"
)

// ParseRankingMode maps a query value to a mode. The empty string selects RankByTotalTime.
func ParseRankingMode(s string) (RankingMode, error) {
	switch RankingMode(s) {
	case "", RankByTotalTime:
		return RankByTotalTime, nil
	case RankByBestTime:
		return RankByBestTime, nil
	default:
		return "", apperrors.New(apperrors.CodeValidation, "unknown ranking mode "+s)
	}
}

// TeamResult aggregates a team's counted records.
type TeamResult struct {
	Team             race.Team         `json:"team"`
	Count            int               `json:"count"`
	TotalMs          int64             `json:"totalMs"`
	AverageMs        int64             `json:"averageMs"`
	BestMs           *int64            `json:"bestMs"`
	TotalFormatted   string            `json:"totalFormatted"`
	AverageFormatted string            `json:"averageFormatted"`
	BestFormatted    string            `json:"bestFormatted,omitempty"`
	TotalClock       string            `json:"totalClock"`
	BestClock        string            `json:"bestClock,omitempty"`
	Disqualified     bool              `json:"disqualified"`
	Records          []race.TimeRecord `json:"records,omitempty"`
}

// Standing is a team's place in a competition. Rank is nil for disqualified teams.
type Standing struct {
	Rank *int `json:"rank"`
	TeamResult
}

// summarize builds a result from records already ordered fastest first, counting at most
// limit of them. disqualified is decided by the caller over all of the team's records.
func summarize(team race.Team, records []race.TimeRecord, limit int, disqualified bool) TeamResult {
	if len(records) > limit {
		records = records[:limit]
	}

	result := TeamResult{
		Team:         team,
		Count:        len(records),
		Disqualified: disqualified,
		Records:      records,
	}
	for _, r := range records {
		result.TotalMs += r.TotalMs
	}
	if result.Count > 0 {
		result.AverageMs = result.TotalMs / int64(result.Count)
		best := records[0].TotalMs
		result.BestMs = &best
		result.BestFormatted = race.FormatDuration(records[0].TotalMs)
		result.BestClock = race.FormatClock(records[0].TotalMs)
	}
	result.TotalFormatted = race.FormatDuration(result.TotalMs)
	result.TotalClock = race.FormatClock(result.TotalMs)
	result.AverageFormatted = race.FormatDuration(result.AverageMs)
	return result
}

func rankingKey(result TeamResult, mode RankingMode) int64 {
	if mode == RankByBestTime && result.BestMs != nil {
		return *result.BestMs
	}
	return result.TotalMs
}

// rankResults orders teams with at least one record. Qualified teams come first ranked 1..N
// by the mode key, ties broken by team id. Disqualified teams follow in the same order, unranked.
func rankResults(results []TeamResult, mode RankingMode) []Standing {
	var qualified, disqualified []TeamResult
	for _, r := range results {
		if r.Count == 0 {
			continue
		}
		if r.Disqualified {
			disqualified = append(disqualified, r)
		} else {
			qualified = append(qualified, r)
		}
	}

	byKey := func(a, b TeamResult) int {
		return cmp.Or(
			cmp.Compare(rankingKey(a, mode), rankingKey(b, mode)),
			cmp.Compare(a.Team.ID, b.Team.ID),
		)
	}
	slices.SortFunc(qualified, byKey)
	slices.SortFunc(disqualified, byKey)

	standings := make([]Standing, 0, len(qualified)+len(disqualified))
	for i, r := range qualified {
		rank := i + 1
		standings = append(standings, Standing{Rank: &rank, TeamResult: r})
	}
	for _, r := range disqualified {
		standings = append(standings, Standing{TeamResult: r})
	}
	return standings
}
