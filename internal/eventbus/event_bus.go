// Package eventbus is a common bus for everything that happens in the
// delegator. Observers (webhooks, audit, tests) subscribe here; the
// delegator publishes and never waits for consumers.
package eventbus

import (
	"context"

	"github.com/wallymathieu/auctions-site/libs/log"
	"github.com/wallymathieu/auctions-site/libs/pubsub"
	"github.com/wallymathieu/auctions-site/libs/service"
	"github.com/wallymathieu/auctions-site/types"
)

// Event types observers can subscribe to.
const (
	// EventCommandsSubmitted carries every command handed to the delegator,
	// including ones that were subsequently rejected. Audit sees all
	// attempts.
	EventCommandsSubmitted = "commands.submitted"
	// EventResultsProduced carries successfully executed commands together
	// with the events they produced.
	EventResultsProduced = "results.produced"
)

// subscriberBufferCapacity bounds how far a subscriber may lag before its
// messages are dropped.
const subscriberBufferCapacity = 128

// CommandsSubmitted is the payload of EventCommandsSubmitted. An empty batch
// is valid: the delegator publishes one at startup to prove the observer
// chain is wired before accepting traffic.
type CommandsSubmitted struct {
	Commands []types.Command `json:"commands"`
}

// Result pairs an executed command with its event.
type Result struct {
	Command types.Command `json:"command"`
	Event   types.Event   `json:"event"`
}

// ResultsProduced is the payload of EventResultsProduced.
type ResultsProduced struct {
	Results []Result `json:"results"`
}

// EventBus is a thin, type-aware wrapper around a pubsub server.
type EventBus struct {
	service.BaseService
	logger log.Logger
	pubsub *pubsub.Server
}

// NewDefault returns a new event bus with default options.
func NewDefault(l log.Logger) *EventBus {
	logger := l.With("module", "eventbus")
	b := &EventBus{
		logger: logger,
		pubsub: pubsub.NewServer(logger, pubsub.BufferCapacity(64)),
	}
	b.BaseService = *service.NewBaseService(logger, "EventBus", b)
	return b
}

// OnStart implements service.Service.
func (b *EventBus) OnStart(ctx context.Context) error {
	return b.pubsub.Start(ctx)
}

// OnStop implements service.Service.
func (b *EventBus) OnStop() {
	if err := b.pubsub.Stop(); err != nil {
		b.logger.Error("error trying to stop event bus", "err", err)
	}
}

// NumClients returns the number of subscribed clients.
func (b *EventBus) NumClients() int {
	return b.pubsub.NumClients()
}

// PublishCommandsSubmitted notifies observers about a batch of incoming
// commands.
func (b *EventBus) PublishCommandsSubmitted(ctx context.Context, commands ...types.Command) error {
	return b.pubsub.Publish(ctx, EventCommandsSubmitted, CommandsSubmitted{Commands: commands})
}

// PublishResultsProduced notifies observers about a batch of executed
// commands and their events.
func (b *EventBus) PublishResultsProduced(ctx context.Context, results ...Result) error {
	return b.pubsub.Publish(ctx, EventResultsProduced, ResultsProduced{Results: results})
}

// SubscribeCommandsSubmitted registers clientID for command notifications.
func (b *EventBus) SubscribeCommandsSubmitted(ctx context.Context, clientID string) (<-chan pubsub.Message, error) {
	return b.pubsub.Subscribe(ctx, clientID, EventCommandsSubmitted, subscriberBufferCapacity)
}

// SubscribeResultsProduced registers clientID for result notifications.
func (b *EventBus) SubscribeResultsProduced(ctx context.Context, clientID string) (<-chan pubsub.Message, error) {
	return b.pubsub.Subscribe(ctx, clientID, EventResultsProduced, subscriberBufferCapacity)
}

// UnsubscribeAll removes all subscriptions for clientID.
func (b *EventBus) UnsubscribeAll(ctx context.Context, clientID string) error {
	return b.pubsub.UnsubscribeAll(ctx, clientID)
}
