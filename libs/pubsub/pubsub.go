// Package pubsub implements a pub-sub model with a single publisher (Server)
// and multiple subscribers (clients).
//
// Clients subscribe for messages matching an event type. When a message is
// published, it is delivered to every client subscribed to its type.
//
// Subscription channels are buffered; a subscriber that stops reading does
// not block the publisher. Once a subscriber's buffer is full, further
// messages for that subscriber are dropped and counted, so a slow observer
// can never stall the publishing goroutine.
package pubsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/wallymathieu/auctions-site/libs/service"

	"github.com/wallymathieu/auctions-site/libs/log"
)

type operation int

const (
	sub operation = iota
	pub
	unsub
)

var (
	// ErrSubscriptionNotFound is returned when a client tries to unsubscribe
	// from a not existing subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrAlreadySubscribed is returned when a client tries to subscribe twice
	// or more using the same event type.
	ErrAlreadySubscribed = errors.New("already subscribed")

	// ErrServerStopped is returned when the server is not running.
	ErrServerStopped = errors.New("pubsub server is stopped")
)

// Message is what subscribers receive: a published payload tagged with its
// event type.
type Message struct {
	EventType string
	Data      interface{}
}

type cmd struct {
	op        operation
	eventType string
	ch        chan Message
	clientID  string
	msg       interface{}
	done      chan<- error
}

// Server allows clients to subscribe/unsubscribe for messages, publishing
// messages by event type, and manages internal state.
type Server struct {
	service.BaseService
	logger log.Logger

	cmds    chan cmd
	cmdsCap int

	mtx           sync.RWMutex
	subscriptions map[string]map[string]struct{} // subscriber -> event type -> empty struct

	stopc chan struct{} // closed on shutdown

	dropped uint64 // messages dropped on full subscriber buffers, read atomically
}

// Option sets a parameter for the server.
type Option func(*Server)

// NewServer returns a new server. See the commentary on the Option functions
// for a detailed description of how to configure buffering.
func NewServer(logger log.Logger, options ...Option) *Server {
	s := &Server{
		logger:        logger,
		subscriptions: make(map[string]map[string]struct{}),
		stopc:         make(chan struct{}),
	}
	s.BaseService = *service.NewBaseService(logger, "PubSub", s)

	for _, option := range options {
		option(s)
	}

	// if BufferCapacity option was not set, the channel is unbuffered
	s.cmds = make(chan cmd, s.cmdsCap)

	return s
}

// BufferCapacity allows you to specify capacity for the internal server's
// queue. Since the server, given a single subscriber, can only deliver
// messages as fast as the subscriber consumes them, it is advisable to
// buffer publications to smooth out bursts.
func BufferCapacity(cap int) Option {
	return func(s *Server) {
		if cap > 0 {
			s.cmdsCap = cap
		}
	}
}

// BufferCapacityValue returns capacity of the internal server's queue.
func (s *Server) BufferCapacityValue() int {
	return s.cmdsCap
}

// Subscribe creates a subscription for the given client ID and event type.
// The returned channel carries at most outCap undelivered messages; once the
// buffer is full, new messages for this subscriber are dropped.
//
// An error will be returned to the caller if the context is canceled, the
// server is stopped, or the client is already subscribed to the event type.
func (s *Server) Subscribe(ctx context.Context, clientID, eventType string, outCap int) (<-chan Message, error) {
	if !s.IsRunning() {
		return nil, ErrServerStopped
	}

	s.mtx.RLock()
	_, ok := s.subscriptions[clientID][eventType]
	s.mtx.RUnlock()
	if ok {
		return nil, ErrAlreadySubscribed
	}

	if outCap <= 0 {
		outCap = 1
	}

	out := make(chan Message, outCap)
	done := make(chan error, 1)
	select {
	case s.cmds <- cmd{op: sub, clientID: clientID, eventType: eventType, ch: out, done: done}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.Quit():
		return nil, ErrServerStopped
	}

	if err := <-done; err != nil {
		return nil, err
	}

	s.mtx.Lock()
	if _, ok := s.subscriptions[clientID]; !ok {
		s.subscriptions[clientID] = make(map[string]struct{})
	}
	s.subscriptions[clientID][eventType] = struct{}{}
	s.mtx.Unlock()

	return out, nil
}

// Unsubscribe removes the subscription on the given event type for the
// client.
func (s *Server) Unsubscribe(ctx context.Context, clientID, eventType string) error {
	s.mtx.Lock()
	clientSubscriptions, ok := s.subscriptions[clientID]
	if ok {
		_, ok = clientSubscriptions[eventType]
	}
	if !ok {
		s.mtx.Unlock()
		return ErrSubscriptionNotFound
	}
	delete(clientSubscriptions, eventType)
	if len(clientSubscriptions) == 0 {
		delete(s.subscriptions, clientID)
	}
	s.mtx.Unlock()

	select {
	case s.cmds <- cmd{op: unsub, clientID: clientID, eventType: eventType}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Quit():
		return nil
	}
}

// UnsubscribeAll removes all subscriptions for the given client ID.
func (s *Server) UnsubscribeAll(ctx context.Context, clientID string) error {
	s.mtx.Lock()
	_, ok := s.subscriptions[clientID]
	delete(s.subscriptions, clientID)
	s.mtx.Unlock()

	if !ok {
		return ErrSubscriptionNotFound
	}

	select {
	case s.cmds <- cmd{op: unsub, clientID: clientID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Quit():
		return nil
	}
}

// NumClients returns the number of clients.
func (s *Server) NumClients() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.subscriptions)
}

// NumClientSubscriptions returns the number of subscriptions the client has.
func (s *Server) NumClientSubscriptions(clientID string) int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.subscriptions[clientID])
}

// Dropped returns the number of messages dropped because a subscriber's
// buffer was full.
func (s *Server) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// Publish publishes the given message to all subscribers of its event type.
// It blocks until the server's internal queue accepts the message, never
// until subscribers consume it.
func (s *Server) Publish(ctx context.Context, eventType string, data interface{}) error {
	if !s.IsRunning() {
		return ErrServerStopped
	}

	select {
	case s.cmds <- cmd{op: pub, eventType: eventType, msg: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Quit():
		return ErrServerStopped
	}
}

// OnStart implements Service by starting the server's command loop.
func (s *Server) OnStart(ctx context.Context) error {
	go s.loop(ctx)
	return nil
}

// OnStop implements Service by shutting down the command loop.
func (s *Server) OnStop() {
	close(s.stopc)
}

// Quit returns a channel that closes when the server stops.
func (s *Server) Quit() <-chan struct{} { return s.stopc }

// loop is the single goroutine that owns the subscriber index. All mutations
// arrive through the cmds channel, so no locking is needed inside.
func (s *Server) loop(ctx context.Context) {
	// subscriber -> event type -> delivery channel
	state := make(map[string]map[string]chan Message)

	for {
		select {
		case c := <-s.cmds:
			switch c.op {
			case sub:
				if _, ok := state[c.clientID]; !ok {
					state[c.clientID] = make(map[string]chan Message)
				}
				state[c.clientID][c.eventType] = c.ch
				c.done <- nil

			case unsub:
				if c.eventType == "" {
					for _, ch := range state[c.clientID] {
						close(ch)
					}
					delete(state, c.clientID)
					continue
				}
				if ch, ok := state[c.clientID][c.eventType]; ok {
					close(ch)
					delete(state[c.clientID], c.eventType)
					if len(state[c.clientID]) == 0 {
						delete(state, c.clientID)
					}
				}

			case pub:
				msg := Message{EventType: c.eventType, Data: c.msg}
				for clientID, subs := range state {
					ch, ok := subs[c.eventType]
					if !ok {
						continue
					}
					select {
					case ch <- msg:
					default:
						// subscriber buffer full; drop rather than stall
						atomic.AddUint64(&s.dropped, 1)
						s.logger.Debug("dropped message for slow subscriber",
							"client", clientID, "event_type", c.eventType)
					}
				}

			}

		case <-s.stopc:
			for _, subs := range state {
				for _, ch := range subs {
					close(ch)
				}
			}
			if n := atomic.LoadUint64(&s.dropped); n > 0 {
				s.logger.Info("dropped messages for slow subscribers", "count", n)
			}
			return

		case <-ctx.Done():
			return
		}
	}
}
