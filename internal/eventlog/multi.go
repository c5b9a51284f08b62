package eventlog

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// MultiLog fans writes out to several logs and merges their histories on
// read. It lets a deployment keep, say, a local file log next to a key-value
// store without either being special.
type MultiLog struct {
	logs []Log
}

var _ Log = (*MultiLog)(nil)

// NewMultiLog combines the given logs. At least one is required.
func NewMultiLog(logs ...Log) *MultiLog {
	if len(logs) == 0 {
		panic("multi log requires at least one backend")
	}
	return &MultiLog{logs: logs}
}

// ReadAll implements Log. Backends are read in parallel and their entries
// merged into a single history ordered by sequence number; entries present
// in more than one backend are deduplicated.
func (l *MultiLog) ReadAll(ctx context.Context) ([]Entry, error) {
	results := make([][]Entry, len(l.logs))
	g, gctx := errgroup.WithContext(ctx)
	for i, backend := range l.logs {
		i, backend := i, backend
		g.Go(func() error {
			entries, err := backend.ReadAll(gctx)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[uint64]struct{})
	var merged []Entry
	for _, entries := range results {
		for _, e := range entries {
			if _, ok := seen[e.Seq]; ok {
				continue
			}
			seen[e.Seq] = struct{}{}
			merged = append(merged, e)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Seq < merged[j].Seq })
	return merged, nil
}

// Append implements Log. The batch is appended to every backend in parallel;
// any failure fails the whole append.
func (l *MultiLog) Append(ctx context.Context, batch []Entry) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, backend := range l.logs {
		backend := backend
		g.Go(func() error { return backend.Append(gctx, batch) })
	}
	return g.Wait()
}

// Close implements Log. All backends are closed; the first error wins.
func (l *MultiLog) Close() error {
	var firstErr error
	for _, backend := range l.logs {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
