// Package eventlog provides the append-only log the delegator persists
// command history to. The log is the system of record: the in-memory
// repository is rebuilt from it on every startup by replaying the recorded
// commands through the regular execution path.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wallymathieu/auctions-site/internal/jsontypes"
	"github.com/wallymathieu/auctions-site/types"
)

// Entry is one element of the command history: a successfully executed
// command together with the event it produced. Failed commands are never
// appended.
type Entry struct {
	// Seq is the position in the global history, starting at 1. Strictly
	// increasing, assigned by the delegator before append.
	Seq     uint64
	At      time.Time
	Command types.Command
	Event   types.Event
}

// Log is the append-and-replay capability. Append is all-or-nothing per
// batch; ReadAll returns the full history ordered by Seq.
type Log interface {
	ReadAll(ctx context.Context) ([]Entry, error)
	Append(ctx context.Context, batch []Entry) error
	Close() error
}

type entryJSON struct {
	Seq     uint64          `json:"seq"`
	At      time.Time       `json:"at"`
	Command json.RawMessage `json:"command"`
	Event   json.RawMessage `json:"event"`
}

// MarshalJSON implements json.Marshaler. Command and event are stored as
// tagged wrappers so the concrete variants survive the round trip.
func (e Entry) MarshalJSON() ([]byte, error) {
	cmd, err := jsontypes.Marshal(e.Command)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}
	ev, err := jsontypes.Marshal(e.Event)
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	return json.Marshal(entryJSON{Seq: e.Seq, At: e.At, Command: cmd, Event: ev})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var aux entryJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var cmd types.Command
	if err := jsontypes.Unmarshal(aux.Command, &cmd); err != nil {
		return fmt.Errorf("decoding command: %w", err)
	}
	var ev types.Event
	if err := jsontypes.Unmarshal(aux.Event, &ev); err != nil {
		return fmt.Errorf("decoding event: %w", err)
	}
	*e = Entry{Seq: aux.Seq, At: aux.At, Command: cmd, Event: ev}
	return nil
}
