// Package webhook delivers command results to external HTTP endpoints.
//
// A Sink subscribes to the event bus and POSTs every produced result as JSON
// to each configured URL. Delivery is best effort: a slow or failing endpoint
// delays or loses its own notifications but never blocks the delegator,
// because the sink reads from a buffered subscription that drops on overflow.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wallymathieu/auctions-site/internal/eventbus"
	"github.com/wallymathieu/auctions-site/internal/jsontypes"
	"github.com/wallymathieu/auctions-site/libs/log"
	"github.com/wallymathieu/auctions-site/libs/pubsub"
	"github.com/wallymathieu/auctions-site/libs/service"
	"github.com/wallymathieu/auctions-site/types"
)

const subscriberID = "webhook"

// defaultRequestTimeout bounds a single delivery attempt.
const defaultRequestTimeout = 10 * time.Second

// Notification is the JSON body POSTed for each result.
type Notification struct {
	Command types.Command `json:"command"`
	Event   types.Event   `json:"event"`
}

type notificationJSON struct {
	Command json.RawMessage `json:"command"`
	Event   json.RawMessage `json:"event"`
}

// MarshalJSON implements json.Marshaler, writing command and event as tagged
// unions so receivers can dispatch on the "type" field.
func (n Notification) MarshalJSON() ([]byte, error) {
	cmd, err := jsontypes.Marshal(n.Command)
	if err != nil {
		return nil, err
	}
	ev, err := jsontypes.Marshal(n.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(notificationJSON{Command: cmd, Event: ev})
}

// Sink subscribes to produced results and forwards them to each URL.
type Sink struct {
	service.BaseService
	logger log.Logger

	bus    *eventbus.EventBus
	urls   []string
	client *http.Client

	donec chan struct{} // closed when the delivery loop exits
}

// Option sets an optional parameter on the Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client used for deliveries.
func WithClient(c *http.Client) Option {
	return func(s *Sink) { s.client = c }
}

// NewSink returns an unstarted sink delivering to urls.
func NewSink(logger log.Logger, bus *eventbus.EventBus, urls []string, options ...Option) *Sink {
	s := &Sink{
		logger: logger.With("module", "webhook"),
		bus:    bus,
		urls:   urls,
		client: &http.Client{Timeout: defaultRequestTimeout},
		donec:  make(chan struct{}),
	}
	s.BaseService = *service.NewBaseService(logger, "WebhookSink", s)
	for _, option := range options {
		option(s)
	}
	return s
}

// OnStart implements service.Service.
func (s *Sink) OnStart(ctx context.Context) error {
	sub, err := s.bus.SubscribeResultsProduced(ctx, subscriberID)
	if err != nil {
		return fmt.Errorf("subscribing to results: %w", err)
	}
	go s.deliverRoutine(ctx, sub)
	return nil
}

// OnStop implements service.Service. It waits for the in-flight delivery to
// finish so tests and shutdown see no stray requests.
func (s *Sink) OnStop() {
	if err := s.bus.UnsubscribeAll(context.Background(), subscriberID); err != nil {
		s.logger.Error("error unsubscribing webhook sink", "err", err)
	}
	<-s.donec
}

func (s *Sink) deliverRoutine(ctx context.Context, sub <-chan pubsub.Message) {
	defer close(s.donec)
	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				return
			}
			produced, ok := msg.Data.(eventbus.ResultsProduced)
			if !ok {
				s.logger.Error("unexpected message payload", "type", fmt.Sprintf("%T", msg.Data))
				continue
			}
			for _, res := range produced.Results {
				s.deliver(ctx, Notification{Command: res.Command, Event: res.Event})
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sink) deliver(ctx context.Context, n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		s.logger.Error("failed to encode notification", "err", err)
		return
	}

	for _, url := range s.urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			s.logger.Error("failed to build webhook request", "url", url, "err", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.logger.Error("webhook delivery failed", "url", url, "err", err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			s.logger.Error("webhook endpoint rejected notification", "url", url, "status", resp.StatusCode)
			continue
		}
		s.logger.Debug("delivered notification", "url", url, "event", n.Event.TypeTag())
	}
}
