package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when decoding an envelope with an unrecognized
// kind.
var ErrUnknownKind = errors.New("unknown event kind")

// envelope is the JSON shape of a recorded event.
type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Marshal encodes e as a JSON envelope {"kind": ..., "data": ...}.
func Marshal(e Event) ([]byte, error) {
	if e == nil {
		return nil, errors.New("marshal event: nil event")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.Kind(), err)
	}
	return json.Marshal(envelope{Kind: e.Kind(), Data: data})
}

// Unmarshal decodes an envelope produced by Marshal.
func Unmarshal(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var (
		e   Event
		err error
	)
	switch env.Kind {
	case KindJoin:
		e, err = decode[Join](env.Data)
	case KindTourBegin:
		e = TourBegin{}
	case KindFirstBlood:
		e, err = decode[FirstBlood](env.Data)
	case KindStreak:
		e, err = decode[Streak](env.Data)
	case KindUpset:
		e, err = decode[Upset](env.Data)
	case KindAvenge:
		e, err = decode[Avenge](env.Data)
	case KindPhoenix:
		e, err = decode[Phoenix](env.Data)
	case KindStandings:
		e, err = decode[Standings](env.Data)
	case KindTourEnd:
		e = TourEnd{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
	}
	return e, nil
}

func decode[T Event](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(data, &v)
	return v, err
}
