package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallymathieu/auctions-site/internal/eventbus"
	"github.com/wallymathieu/auctions-site/internal/webhook"
	"github.com/wallymathieu/auctions-site/libs/log"
	"github.com/wallymathieu/auctions-site/types"
)

var t0 = time.Date(2016, 1, 1, 8, 0, 0, 0, time.UTC)

func testResult() eventbus.Result {
	seller := types.BuyerOrSeller{ID: "s1", Name: "Sam"}
	a := types.Auction{
		ID:       1,
		StartsAt: t0,
		Expiry:   t0.Add(time.Hour),
		Title:    "first",
		Seller:   seller,
		Currency: types.CurrencyVAC,
		Protocol: types.DefaultProtocol(types.CurrencyVAC),
	}
	return eventbus.Result{
		Command: types.AddAuction{Time: t0, Auction: a},
		Event:   types.AuctionAdded{Time: t0, Auction: a},
	}
}

func TestSinkDeliversResults(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bodyc := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		bodyc <- body
	}))
	defer srv.Close()

	logger := log.NewTestingLogger(t)
	bus := eventbus.NewDefault(logger)
	require.NoError(t, bus.Start(ctx))
	defer func() { _ = bus.Stop() }()

	sink := webhook.NewSink(logger, bus, []string{srv.URL})
	require.NoError(t, sink.Start(ctx))
	defer func() { _ = sink.Stop() }()

	require.NoError(t, bus.PublishResultsProduced(ctx, testResult()))

	select {
	case body := <-bodyc:
		var got struct {
			Command struct {
				Type string `json:"type"`
			} `json:"command"`
			Event struct {
				Type string `json:"type"`
			} `json:"event"`
		}
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "command/AddAuction", got.Command.Type)
		assert.Equal(t, "event/AuctionAdded", got.Event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery received")
	}
}

func TestSinkFansOutToAllEndpoints(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hits := make(chan string, 4)
	newEndpoint := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits <- name
		}))
	}
	first := newEndpoint("first")
	defer first.Close()
	second := newEndpoint("second")
	defer second.Close()

	logger := log.NewTestingLogger(t)
	bus := eventbus.NewDefault(logger)
	require.NoError(t, bus.Start(ctx))
	defer func() { _ = bus.Stop() }()

	sink := webhook.NewSink(logger, bus, []string{first.URL, second.URL})
	require.NoError(t, sink.Start(ctx))
	defer func() { _ = sink.Stop() }()

	require.NoError(t, bus.PublishResultsProduced(ctx, testResult()))

	seen := map[string]int{}
	for i := 0; i < 2; i++ {
		select {
		case name := <-hits:
			seen[name]++
		case <-time.After(2 * time.Second):
			t.Fatalf("missing deliveries, saw %v", seen)
		}
	}
	assert.Equal(t, map[string]int{"first": 1, "second": 1}, seen)
}

// A failing endpoint must not stop delivery to the remaining ones.
func TestSinkSurvivesFailingEndpoint(t *testing.T) {
	defer leaktest.CheckTimeout(t, 5*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	hits := make(chan struct{}, 2)
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
	}))
	defer healthy.Close()

	logger := log.NewTestingLogger(t)
	bus := eventbus.NewDefault(logger)
	require.NoError(t, bus.Start(ctx))
	defer func() { _ = bus.Stop() }()

	sink := webhook.NewSink(logger, bus, []string{failing.URL, healthy.URL})
	require.NoError(t, sink.Start(ctx))
	defer func() { _ = sink.Stop() }()

	require.NoError(t, bus.PublishResultsProduced(ctx, testResult()))

	select {
	case <-hits:
	case <-time.After(2 * time.Second):
		t.Fatal("healthy endpoint never hit")
	}
}
