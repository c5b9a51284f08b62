package rpc_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/wallymathieu/auctions-site/internal/delegator"
	"github.com/wallymathieu/auctions-site/internal/eventbus"
	"github.com/wallymathieu/auctions-site/internal/eventlog"
	"github.com/wallymathieu/auctions-site/internal/rpc"
	"github.com/wallymathieu/auctions-site/libs/log"
	"github.com/wallymathieu/auctions-site/types"
)

var t0 = time.Date(2016, 1, 1, 8, 0, 0, 0, time.UTC)

// base64 of {"sub":"a1","name":"Test","u_typ":"0"} and the a2/Buyer variant
const (
	sellerHeader = "eyJzdWIiOiJhMSIsIm5hbWUiOiJUZXN0IiwidV90eXAiOiIwIn0="
	buyerHeader  = "eyJzdWIiOiJhMiIsIm5hbWUiOiJCdXllciIsInVfdHlwIjoiMCJ9"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := log.NewTestingLogger(t)
	bus := eventbus.NewDefault(logger)
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Stop() })

	d := delegator.New(logger, eventlog.NewKVLog(dbm.NewMemDB()), bus)
	require.NoError(t, d.Start(ctx))
	t.Cleanup(func() { _ = d.Stop() })

	s := rpc.NewServer(logger, d, "tcp://127.0.0.1:0", rpc.WithTimeNow(func() time.Time { return t0 }))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, identity, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if identity != "" {
		req.Header.Set("x-jwt-payload", identity)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

const addAuctionBody = `{
	"id": 1,
	"startsAt": "2016-01-01T08:00:00Z",
	"endsAt": "2016-01-01T09:00:00Z",
	"title": "Bulgarian rug",
	"currency": "VAC"
}`

func TestAddAndGetAuction(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := do(t, srv, http.MethodPost, "/auction", sellerHeader, addAuctionBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, srv, http.MethodGet, "/auction/1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Seller   string `json:"seller"`
		Type     string `json:"type"`
		HasEnded bool   `json:"hasEnded"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Bulgarian rug", got.Title)
	assert.Equal(t, "BuyerOrSeller|a1|Test", got.Seller)
	assert.Equal(t, "English|VAC0|VAC0|0", got.Type)
	assert.False(t, got.HasEnded)

	resp, body = do(t, srv, http.MethodGet, "/auctions", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []json.RawMessage
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 1)
}

func TestStatusMapping(t *testing.T) {
	srv := newTestServer(t)

	// unauthenticated writes are rejected
	resp, _ := do(t, srv, http.MethodPost, "/auction", "", addAuctionBody)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// unknown auction
	resp, _ = do(t, srv, http.MethodGet, "/auction/42", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// garbage id
	resp, _ = do(t, srv, http.MethodGet, "/auction/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/auction", sellerHeader, addAuctionBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// duplicate auction id
	resp, _ = do(t, srv, http.MethodPost, "/auction", sellerHeader, addAuctionBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// seller bidding on own auction is a domain rejection
	resp, _ = do(t, srv, http.MethodPost, "/auction/1/bid", sellerHeader, `{"amount":"VAC10"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// malformed amount
	resp, _ = do(t, srv, http.MethodPost, "/auction/1/bid", buyerHeader, `{"amount":"ten"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlaceAndRetractBid(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := do(t, srv, http.MethodPost, "/auction", sellerHeader, addAuctionBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, srv, http.MethodPost, "/auction/1/bid", buyerHeader, `{"amount":"VAC10"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var bid types.Bid
	require.NoError(t, json.Unmarshal(body, &bid))
	assert.NotEmpty(t, bid.ID)
	assert.Equal(t, types.NewAmount(types.CurrencyVAC, 10), bid.Amount)

	resp, body = do(t, srv, http.MethodGet, "/auction/1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Bids []struct {
			Amount string `json:"amount"`
			Bidder string `json:"bidder"`
		} `json:"bids"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Bids, 1)
	assert.Equal(t, "VAC10", got.Bids[0].Amount)
	assert.Equal(t, "BuyerOrSeller|a2|Buyer", got.Bids[0].Bidder)

	// only the author (or support) may retract
	resp, _ = do(t, srv, http.MethodDelete, "/auction/1/bid/"+string(bid.ID), sellerHeader, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodDelete, "/auction/1/bid/"+string(bid.ID), buyerHeader, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/auction/1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Empty(t, got.Bids)

	// unknown bid id
	resp, _ = do(t, srv, http.MethodDelete, "/auction/1/bid/nope", buyerHeader, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
