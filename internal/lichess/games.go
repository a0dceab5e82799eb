package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/roach88/tba/internal/platform"
)

type playerJSON struct {
	UserID      string `json:"userId"`
	Rating      int    `json:"rating"`
	Provisional bool   `json:"provisional"`
}

type gameJSON struct {
	ID      string `json:"id"`
	Status  int    `json:"status"`
	Winner  string `json:"winner"`
	Players struct {
		White playerJSON `json:"white"`
		Black playerJSON `json:"black"`
	} `json:"players"`
}

func (g gameJSON) meta() platform.GameMeta {
	return platform.GameMeta{
		ID:     g.ID,
		Status: platform.GameStatus(g.Status),
		White:  platform.Player(g.Players.White),
		Black:  platform.Player(g.Players.Black),
		Winner: platform.Color(g.Winner),
	}
}

// gameStream reads games from a streaming response until closed.
type gameStream struct {
	body   io.ReadCloser
	dec    *json.Decoder
	cancel context.CancelFunc
	once   sync.Once
}

func (s *gameStream) Next() (platform.GameMeta, error) {
	var g gameJSON
	if err := s.dec.Decode(&g); err != nil {
		if errors.Is(err, io.EOF) {
			return platform.GameMeta{}, io.EOF
		}
		return platform.GameMeta{}, fmt.Errorf("decode game: %w", err)
	}
	return g.meta(), nil
}

func (s *gameStream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}

func (c *Client) openStream(ctx context.Context, path string, ids []string) (platform.GameStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	resp, err := c.do(ctx, http.MethodPost, path, nil, strings.Join(ids, ","))
	if err != nil {
		cancel()
		return nil, err
	}
	return &gameStream{body: resp.Body, dec: json.NewDecoder(resp.Body), cancel: cancel}, nil
}

// GamesByUserIDs opens POST /api/stream/games-by-users.
func (c *Client) GamesByUserIDs(ctx context.Context, userIDs []string) (platform.GameStream, error) {
	s, err := c.openStream(ctx, "/api/stream/games-by-users", userIDs)
	if err != nil {
		return nil, fmt.Errorf("stream games of %d users: %w", len(userIDs), err)
	}
	return s, nil
}

// GamesByGameIDs opens POST /api/stream/games/{streamId}.
func (c *Client) GamesByGameIDs(ctx context.Context, streamID string, gameIDs []string) (platform.GameStream, error) {
	if len(gameIDs) > c.MaxGamesPerStream() {
		return nil, fmt.Errorf("stream %s: %d games exceed capacity %d", streamID, len(gameIDs), c.MaxGamesPerStream())
	}
	s, err := c.openStream(ctx, "/api/stream/games/"+url.PathEscape(streamID), gameIDs)
	if err != nil {
		return nil, fmt.Errorf("stream %s: %w", streamID, err)
	}
	return s, nil
}

// AddGameIDs calls POST /api/stream/games/{streamId}/add.
func (c *Client) AddGameIDs(ctx context.Context, streamID string, gameIDs []string) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/stream/games/"+url.PathEscape(streamID)+"/add", nil, strings.Join(gameIDs, ","))
	if err != nil {
		return fmt.Errorf("add games to %s: %w", streamID, err)
	}
	resp.Body.Close()
	return nil
}
