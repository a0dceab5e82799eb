package lichess

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/roach88/tba/internal/platform"
)

type arenaJSON struct {
	ID         string    `json:"id"`
	FullName   string    `json:"fullName"`
	StartsAt   time.Time `json:"startsAt"`
	Minutes    int       `json:"minutes"`
	IsStarted  bool      `json:"isStarted"`
	IsFinished bool      `json:"isFinished"`
	TeamBattle *struct {
		Teams map[string]string `json:"teams"`
	} `json:"teamBattle"`
}

func (a arenaJSON) arena() platform.Arena {
	status := platform.ArenaCreated
	switch {
	case a.IsFinished:
		status = platform.ArenaFinished
	case a.IsStarted:
		status = platform.ArenaStarted
	}

	var teams []platform.TeamInfo
	if a.TeamBattle != nil {
		for id, name := range a.TeamBattle.Teams {
			teams = append(teams, platform.TeamInfo{ID: id, Name: name})
		}
		sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	}

	return platform.Arena{
		ID:       a.ID,
		Name:     a.FullName,
		StartsAt: a.StartsAt,
		Duration: time.Duration(a.Minutes) * time.Minute,
		Status:   status,
		Teams:    teams,
	}
}

// ArenaByID fetches GET /api/tournament/{id}.
func (c *Client) ArenaByID(ctx context.Context, id string) (platform.Arena, error) {
	var a arenaJSON
	if err := c.getJSON(ctx, "/api/tournament/"+url.PathEscape(id), nil, &a); err != nil {
		return platform.Arena{}, fmt.Errorf("arena %s: %w", id, err)
	}
	return a.arena(), nil
}

type resultJSON struct {
	Username string `json:"username"`
	Team     string `json:"team"`
	Withdraw bool   `json:"withdraw"`
}

// ArenaResults reads the newline delimited GET /api/tournament/{id}/results.
func (c *Client) ArenaResults(ctx context.Context, arenaID string) ([]platform.ArenaResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/tournament/"+url.PathEscape(arenaID)+"/results", nil, "")
	if err != nil {
		return nil, fmt.Errorf("results %s: %w", arenaID, err)
	}
	defer resp.Body.Close()

	rows, err := readNDJSON[resultJSON](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode results %s: %w", arenaID, err)
	}

	out := make([]platform.ArenaResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, platform.ArenaResult{Username: r.Username, TeamID: r.Team, Withdrawn: r.Withdraw})
	}
	return out, nil
}

type standingsJSON struct {
	Teams []struct {
		ID    string `json:"id"`
		Score int    `json:"score"`
	} `json:"teams"`
}

// TeamStandings fetches GET /api/tournament/{id}/teams.
func (c *Client) TeamStandings(ctx context.Context, arenaID string) ([]platform.TeamStanding, error) {
	var s standingsJSON
	if err := c.getJSON(ctx, "/api/tournament/"+url.PathEscape(arenaID)+"/teams", nil, &s); err != nil {
		return nil, fmt.Errorf("standings %s: %w", arenaID, err)
	}

	out := make([]platform.TeamStanding, 0, len(s.Teams))
	for _, t := range s.Teams {
		out = append(out, platform.TeamStanding{TeamID: t.ID, Score: t.Score})
	}
	return out, nil
}
