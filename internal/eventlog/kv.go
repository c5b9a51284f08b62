package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	dbm "github.com/tendermint/tm-db"
)

// entryKeyPrefix namespaces log entries inside the database.
const entryKeyPrefix = byte(0x00)

// KVLog stores the command history in a key-value database, keyed by
// big-endian sequence number so iteration order is history order. Any tm-db
// backend works; production uses goleveldb, tests use memdb.
type KVLog struct {
	db dbm.DB
}

var _ Log = (*KVLog)(nil)

// NewKVLog returns a log backed by db. The caller owns the database handle's
// lifecycle beyond Close.
func NewKVLog(db dbm.DB) *KVLog {
	return &KVLog{db: db}
}

func entryKey(seq uint64) []byte {
	key := make([]byte, 9)
	key[0] = entryKeyPrefix
	binary.BigEndian.PutUint64(key[1:], seq)
	return key
}

// ReadAll implements Log.
func (l *KVLog) ReadAll(ctx context.Context) ([]Entry, error) {
	iter, err := l.db.Iterator(entryKey(0), entryKey(1<<63))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []Entry
	for ; iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("corrupt event log entry at key %x: %w", iter.Key(), err)
		}
		entries = append(entries, e)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Append implements Log. The batch goes through a tm-db batch with a synced
// write, making it all-or-nothing.
func (l *KVLog) Append(ctx context.Context, batch []Entry) error {
	if len(batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b := l.db.NewBatch()
	defer b.Close()
	for _, e := range batch {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := b.Set(entryKey(e.Seq), data); err != nil {
			return err
		}
	}
	return b.WriteSync()
}

// Close implements Log.
func (l *KVLog) Close() error {
	return l.db.Close()
}
