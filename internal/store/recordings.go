package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tba/internal/event"
)

// ErrRecordingNotFound is returned when a recording id is unknown or no
// recording exists yet.
var ErrRecordingNotFound = errors.New("recording not found")

// Recording describes one recorded tour. Events is the number of recorded
// events and is only filled by reads.
type Recording struct {
	ID        string
	Team      string
	Arena     string
	StartedAt time.Time
	Events    int
}

// NewRecording creates a recording with a fresh id.
func (s *Store) NewRecording(ctx context.Context, team, arena string, startedAt time.Time) (Recording, error) {
	r := Recording{ID: s.ids.Generate(), Team: team, Arena: arena, StartedAt: startedAt}
	if err := s.CreateRecording(ctx, r); err != nil {
		return Recording{}, err
	}
	return r, nil
}

// CreateRecording inserts a recording. Creating an existing id is an error.
func (s *Store) CreateRecording(ctx context.Context, r Recording) error {
	if r.ID == "" {
		return errors.New("create recording: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (id, team_id, arena_id, started_at)
		VALUES (?, ?, ?, ?)
	`, r.ID, r.Team, r.Arena, r.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("create recording %s: %w", r.ID, err)
	}
	return nil
}

// DiscardEmptyRecording deletes a recording that holds no events. It reports
// whether the recording was deleted.
func (s *Store) DiscardEmptyRecording(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM recordings
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM events WHERE recording_id = ?)
	`, id, id)
	if err != nil {
		return false, fmt.Errorf("discard recording %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("discard recording %s: %w", id, err)
	}
	return n > 0, nil
}

// AppendEvent adds ev to a recording.
// Uses ON CONFLICT DO NOTHING for idempotency - a second event with the same
// seq is silently ignored.
func (s *Store) AppendEvent(ctx context.Context, recordingID string, ev event.Timed) error {
	payload, err := event.Marshal(ev.Event)
	if err != nil {
		return fmt.Errorf("append event %d: %w", ev.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (recording_id, seq, at, kind, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, recordingID, ev.Seq, ev.At.UnixMilli(), string(ev.Event.Kind()), string(payload))
	if err != nil {
		return fmt.Errorf("append event %d: %w", ev.Seq, err)
	}
	return nil
}

const selectRecordings = `
	SELECT r.id, r.team_id, r.arena_id, r.started_at, COUNT(e.seq)
	FROM recordings r
	LEFT JOIN events e ON e.recording_id = r.id
`

// ListRecordings returns every recording, latest first.
//
// Returns an empty slice (not nil) when nothing was recorded.
func (s *Store) ListRecordings(ctx context.Context) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, selectRecordings+`
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	recordings := []Recording{}
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return recordings, nil
}

// GetRecording returns the recording with the given id.
func (s *Store) GetRecording(ctx context.Context, id string) (Recording, error) {
	row := s.db.QueryRowContext(ctx, selectRecordings+`
		WHERE r.id = ?
		GROUP BY r.id
	`, id)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("%w: %s", ErrRecordingNotFound, id)
	}
	return r, err
}

// LatestRecording returns the most recently started recording.
func (s *Store) LatestRecording(ctx context.Context) (Recording, error) {
	row := s.db.QueryRowContext(ctx, selectRecordings+`
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC
		LIMIT 1
	`)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, ErrRecordingNotFound
	}
	return r, err
}

// ReadEvents returns the events of a recording ordered by seq.
func (s *Store) ReadEvents(ctx context.Context, recordingID string) ([]event.Timed, error) {
	if _, err := s.GetRecording(ctx, recordingID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, at, payload
		FROM events
		WHERE recording_id = ?
		ORDER BY seq ASC
	`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []event.Timed{}
	for rows.Next() {
		var (
			seq     int64
			at      int64
			payload string
		)
		if err := rows.Scan(&seq, &at, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := event.Unmarshal([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", seq, err)
		}
		events = append(events, event.Timed{Seq: seq, At: time.UnixMilli(at).UTC(), Event: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (Recording, error) {
	var (
		r       Recording
		started int64
	)
	if err := row.Scan(&r.ID, &r.Team, &r.Arena, &started, &r.Events); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Recording{}, err
		}
		return Recording{}, fmt.Errorf("scan recording: %w", err)
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	return r, nil
}

// Recorder appends announced events to one recording.
type Recorder struct {
	store       *Store
	recordingID string
}

// Recorder returns a Recorder for recordingID.
func (s *Store) Recorder(recordingID string) *Recorder {
	return &Recorder{store: s, recordingID: recordingID}
}

// RecordingID returns the recording the events go to.
func (r *Recorder) RecordingID() string {
	return r.recordingID
}

// Record appends ev to the recording.
func (r *Recorder) Record(ctx context.Context, ev event.Timed) error {
	return r.store.AppendEvent(ctx, r.recordingID, ev)
}
