package lichess

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/roach88/tba/internal/platform"
)

type statusJSON struct {
	ID        string `json:"id"`
	Online    bool   `json:"online"`
	Playing   bool   `json:"playing"`
	PlayingID string `json:"playingId"`
}

// UserStatus queries GET /api/users/status in batches of 100 ids.
func (c *Client) UserStatus(ctx context.Context, userIDs []string) ([]platform.UserStatus, error) {
	out := make([]platform.UserStatus, 0, len(userIDs))
	for start := 0; start < len(userIDs); start += statusBatchSize {
		end := min(start+statusBatchSize, len(userIDs))

		q := url.Values{}
		q.Set("ids", strings.Join(userIDs[start:end], ","))
		q.Set("withGameIds", "true")

		var rows []statusJSON
		if err := c.getJSON(ctx, "/api/users/status", q, &rows); err != nil {
			return nil, fmt.Errorf("user status: %w", err)
		}
		for _, r := range rows {
			s := platform.UserStatus{ID: r.ID, Online: r.Online}
			if r.Playing {
				s.PlayingGameID = r.PlayingID
			}
			out = append(out, s)
		}
	}
	return out, nil
}

type userJSON struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserByID fetches GET /api/user/{id}.
func (c *Client) UserByID(ctx context.Context, id string) (platform.User, error) {
	var u userJSON
	if err := c.getJSON(ctx, "/api/user/"+url.PathEscape(id), nil, &u); err != nil {
		return platform.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return platform.User{ID: u.ID, Name: u.Username}, nil
}
