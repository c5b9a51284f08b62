// Package delegator contains the single writer that owns all auction state.
// Every mutation in the system funnels through one goroutine reading a FIFO
// queue, so no two commands are ever applied concurrently and reads routed
// through the same queue are linearizable with writes.
package delegator

import (
	"context"
	"fmt"

	"github.com/wallymathieu/auctions-site/internal/eventbus"
	"github.com/wallymathieu/auctions-site/internal/eventlog"
	"github.com/wallymathieu/auctions-site/internal/state"
	"github.com/wallymathieu/auctions-site/libs/log"
	"github.com/wallymathieu/auctions-site/libs/service"
	"github.com/wallymathieu/auctions-site/types"
)

// msgInfo is one element of the command queue.
type msgInfo interface {
	msg()
}

type commandMsg struct {
	cmd    types.Command
	replyc chan<- commandResult
}

type queryMsg struct {
	run   func(repo state.Repository)
	donec chan<- struct{}
}

func (commandMsg) msg() {}
func (queryMsg) msg()   {}

type commandResult struct {
	event types.Event
	err   error
}

// Delegator serializes all command execution against the repository it owns.
//
// At startup it replays the full command history from the log through the
// same execution path used for live traffic, so the in-memory repository is
// always consistent with the durable history. In steady state it drains an
// unbounded FIFO queue one command at a time: execute, append to the log,
// notify observers, reply.
//
// A failed log append after a successful in-memory transition leaves memory
// ahead of the durable history; since recovery relies entirely on replay
// being complete, the delegator treats that as fatal and panics.
type Delegator struct {
	service.BaseService
	logger  log.Logger
	metrics *Metrics

	commandLog eventlog.Log
	bus        *eventbus.EventBus

	// owned exclusively by receiveRoutine after bootstrap
	repo *state.MemRepository
	seq  uint64

	submitc chan msgInfo // submissions, handed to the pump
	execc   chan msgInfo // strictly FIFO feed of receiveRoutine
	stopc   chan struct{}
}

// Option sets an optional parameter on the Delegator.
type Option func(*Delegator)

// WithMetrics sets the metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Delegator) { d.metrics = m }
}

// New returns an unstarted delegator reading history from commandLog and
// fanning results out to bus.
func New(logger log.Logger, commandLog eventlog.Log, bus *eventbus.EventBus, options ...Option) *Delegator {
	d := &Delegator{
		logger:     logger,
		metrics:    NopMetrics(),
		commandLog: commandLog,
		bus:        bus,
		repo:       state.NewMemRepository(),
		submitc:    make(chan msgInfo),
		execc:      make(chan msgInfo),
		stopc:      make(chan struct{}),
	}
	d.BaseService = *service.NewBaseService(logger, "Delegator", d)
	for _, option := range options {
		option(d)
	}
	return d
}

// OnStart implements service.Service. It replays the command history before
// accepting any traffic and verifies the observer chain is reachable.
func (d *Delegator) OnStart(ctx context.Context) error {
	if err := d.bootstrap(ctx); err != nil {
		return err
	}

	go d.pumpRoutine(ctx)
	go d.receiveRoutine(ctx)
	return nil
}

// OnStop implements service.Service.
func (d *Delegator) OnStop() {
	close(d.stopc)
}

// bootstrap rebuilds the repository by replaying the recorded commands
// through the regular execution path. Replay is deterministic: only commands
// that once succeeded were appended, so every entry must apply cleanly.
func (d *Delegator) bootstrap(ctx context.Context) error {
	entries, err := d.commandLog.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("reading command history: %w", err)
	}

	repo := state.NewMemRepository()
	for _, entry := range entries {
		if _, err := state.Execute(repo, entry.Command); err != nil {
			return fmt.Errorf("replaying entry %d: %w", entry.Seq, err)
		}
		d.seq = entry.Seq
	}
	d.repo = repo
	d.metrics.ReplayedEntries.Set(float64(len(entries)))
	d.logger.Info("replayed command history", "entries", len(entries), "auctions", len(repo.Auctions()))

	// startup self-check: an empty notification must reach the observer
	// chain now, not on the first real command
	if err := d.bus.PublishCommandsSubmitted(ctx); err != nil {
		return fmt.Errorf("observer chain unreachable: %w", err)
	}
	return nil
}

// SubmitCommand enqueues cmd and blocks until the delegator has executed it,
// returning the derived event or the domain error. Arrival order into the
// queue is the total order commands execute in.
func (d *Delegator) SubmitCommand(ctx context.Context, cmd types.Command) (types.Event, error) {
	replyc := make(chan commandResult, 1)
	if err := d.enqueue(ctx, commandMsg{cmd: cmd, replyc: replyc}); err != nil {
		return nil, err
	}
	select {
	case res := <-replyc:
		return res.event, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.stopc:
		return nil, service.ErrAlreadyStopped
	}
}

// GetAuction returns the projection for id, routed through the write queue
// so the read reflects every previously acknowledged command.
func (d *Delegator) GetAuction(ctx context.Context, id types.AuctionID) (state.AuctionState, error) {
	var (
		out  state.AuctionState
		qerr error
	)
	err := d.query(ctx, func(repo state.Repository) {
		out, qerr = repo.FindAuction(id)
	})
	if err != nil {
		return state.AuctionState{}, err
	}
	return out, qerr
}

// ListAuctions returns all projections ordered by auction id.
func (d *Delegator) ListAuctions(ctx context.Context) ([]state.AuctionState, error) {
	var out []state.AuctionState
	err := d.query(ctx, func(repo state.Repository) {
		out = repo.Auctions()
	})
	return out, err
}

func (d *Delegator) query(ctx context.Context, run func(repo state.Repository)) error {
	donec := make(chan struct{})
	if err := d.enqueue(ctx, queryMsg{run: run, donec: donec}); err != nil {
		return err
	}
	select {
	case <-donec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopc:
		return service.ErrAlreadyStopped
	}
}

func (d *Delegator) enqueue(ctx context.Context, m msgInfo) error {
	select {
	case d.submitc <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopc:
		return service.ErrAlreadyStopped
	}
}

// pumpRoutine decouples submitters from the worker with an unbounded
// in-memory backlog, preserving arrival order. There is no backpressure
// signal; the backlog grows until the worker catches up.
func (d *Delegator) pumpRoutine(ctx context.Context) {
	var backlog []msgInfo
	for {
		var (
			out  chan msgInfo
			next msgInfo
		)
		if len(backlog) > 0 {
			out = d.execc
			next = backlog[0]
		}

		select {
		case m := <-d.submitc:
			backlog = append(backlog, m)
		case out <- next:
			backlog = backlog[1:]
		case <-ctx.Done():
			return
		case <-d.stopc:
			return
		}
		d.metrics.QueueDepth.Set(float64(len(backlog)))
	}
}

// receiveRoutine is the single writer. It owns the repository; nothing else
// may touch it while the routine runs.
func (d *Delegator) receiveRoutine(ctx context.Context) {
	for {
		select {
		case m := <-d.execc:
			switch m := m.(type) {
			case commandMsg:
				d.handleCommand(ctx, m)
			case queryMsg:
				m.run(d.repo)
				close(m.donec)
			}
		case <-ctx.Done():
			return
		case <-d.stopc:
			return
		}
	}
}

func (d *Delegator) handleCommand(ctx context.Context, m commandMsg) {
	d.metrics.Commands.Add(1)

	// observers see every attempt, including ones about to be rejected
	if err := d.bus.PublishCommandsSubmitted(ctx, m.cmd); err != nil {
		d.logger.Error("failed to publish submitted command", "err", err)
	}

	event, err := state.Execute(d.repo, m.cmd)
	if err != nil {
		d.metrics.CommandErrors.Add(1)
		d.logger.Debug("command rejected", "command", m.cmd.TypeTag(), "err", err)
		m.replyc <- commandResult{err: err}
		return
	}

	d.seq++
	entry := eventlog.Entry{Seq: d.seq, At: m.cmd.At(), Command: m.cmd, Event: event}
	if err := d.commandLog.Append(ctx, []eventlog.Entry{entry}); err != nil {
		// the in-memory state is now ahead of the durable history and
		// recovery relies on replay being complete: fail fast
		d.logger.Error("failed to append to command log", "seq", d.seq, "err", err)
		panic(fmt.Sprintf("command log append failed at seq %d: %v", d.seq, err))
	}
	d.metrics.AppendedEntries.Add(1)

	if err := d.bus.PublishResultsProduced(ctx, eventbus.Result{Command: m.cmd, Event: event}); err != nil {
		d.logger.Error("failed to publish result", "err", err)
	}

	m.replyc <- commandResult{event: event}
}
