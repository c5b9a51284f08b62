package eventlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

const fileLogPerms = os.FileMode(0600)

// FileLog is a write-ahead log of JSON lines, one entry per line. A batch is
// written with a single write call followed by fsync, so a batch that was
// acknowledged survives a crash.
type FileLog struct {
	path string

	mtx  sync.Mutex
	file *os.File
}

var _ Log = (*FileLog)(nil)

// OpenFileLog opens (creating if needed) the log file at path.
func OpenFileLog(path string) (*FileLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileLogPerms)
	if err != nil {
		return nil, fmt.Errorf("opening event log %s: %w", path, err)
	}
	return &FileLog{path: path, file: file}, nil
}

// ReadAll implements Log. It reads from a separate handle so appends are
// unaffected.
func (l *FileLog) ReadAll(ctx context.Context) ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("corrupt event log %s at entry %d: %w", l.path, len(entries)+1, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Append implements Log. The batch is serialized into one buffer and handed
// to the kernel in a single write, then fsynced before returning.
func (l *FileLog) Append(ctx context.Context, batch []Entry) error {
	if len(batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, e := range batch {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	l.mtx.Lock()
	defer l.mtx.Unlock()
	if _, err := l.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending to event log %s: %w", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing event log %s: %w", l.path, err)
	}
	return nil
}

// Close implements Log.
func (l *FileLog) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.file.Close()
}

var _ io.Closer = (*FileLog)(nil)
