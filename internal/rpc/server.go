// Package rpc exposes the delegator over a small JSON HTTP API.
//
// The server is a thin client of the delegator: it validates nothing domain
// related itself, it only decodes requests, stamps them with the caller
// identity, and maps domain errors to HTTP statuses. Authentication happens
// upstream; the caller identity arrives pre-verified in a header.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/wallymathieu/auctions-site/internal/delegator"
	"github.com/wallymathieu/auctions-site/internal/state"
	"github.com/wallymathieu/auctions-site/libs/log"
	"github.com/wallymathieu/auctions-site/libs/service"
	"github.com/wallymathieu/auctions-site/types"
)

// Server serves the auction API over HTTP.
type Server struct {
	service.BaseService
	logger log.Logger

	delegator   *delegator.Delegator
	listenAddr  string
	corsOrigins []string
	timeNow     func() time.Time

	listener net.Listener
	srv      *http.Server
	donec    chan struct{}
}

// Option sets an optional parameter on the Server.
type Option func(*Server)

// WithCORSOrigins enables CORS for the given origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithTimeNow overrides the clock used to stamp commands.
func WithTimeNow(now func() time.Time) Option {
	return func(s *Server) { s.timeNow = now }
}

// NewServer returns an unstarted server. listenAddr is in the
// proto://address form, e.g. "tcp://127.0.0.1:8083".
func NewServer(logger log.Logger, d *delegator.Delegator, listenAddr string, options ...Option) *Server {
	s := &Server{
		logger:     logger.With("module", "rpc"),
		delegator:  d,
		listenAddr: listenAddr,
		timeNow:    time.Now,
		donec:      make(chan struct{}),
	}
	s.BaseService = *service.NewBaseService(logger, "RPCServer", s)
	for _, option := range options {
		option(s)
	}
	return s
}

// OnStart implements service.Service.
func (s *Server) OnStart(ctx context.Context) error {
	proto, addr := "tcp", s.listenAddr
	if parts := strings.SplitN(s.listenAddr, "://", 2); len(parts) == 2 {
		proto, addr = parts[0], parts[1]
	}

	listener, err := net.Listen(proto, addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %v: %w", s.listenAddr, err)
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("serving auction API", "proto", proto, "addr", addr)
	go func() {
		defer close(s.donec)
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "err", err)
		}
	}()
	return nil
}

// OnStop implements service.Service.
func (s *Server) OnStop() {
	if err := s.srv.Close(); err != nil {
		s.logger.Error("error closing http server", "err", err)
	}
	<-s.donec
}

// Addr returns the bound listener address. Only valid after Start.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Handler returns the full route handler, including middleware. Exposed so
// tests can drive the API without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auctions", s.handleAuctions)
	mux.HandleFunc("/auction", s.handleAddAuction)
	mux.HandleFunc("/auction/", s.handleAuction)

	var root http.Handler = mux
	if len(s.corsOrigins) > 0 {
		root = cors.New(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", IdentityHeader},
		}).Handler(root)
	}
	return s.recoverAndLog(root)
}

// recoverAndLog turns handler panics into 500s and logs every request.
func (s *Server) recoverAndLog(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rww := &responseWriterWrapper{-1, w}
		begin := time.Now()

		defer func() {
			if e := recover(); e != nil {
				s.logger.Error("panic in http handler", "err", e, "stack", string(debug.Stack()))
				writeError(rww, http.StatusInternalServerError, fmt.Errorf("internal server error"))
			}
			if rww.status == -1 {
				rww.status = http.StatusOK
			}
			s.logger.Debug("served http request",
				"method", r.Method, "url", r.URL,
				"status", rww.status, "duration", time.Since(begin),
				"remote_addr", r.RemoteAddr,
			)
		}()

		handler.ServeHTTP(rww, r)
	})
}

type responseWriterWrapper struct {
	status int
	http.ResponseWriter
}

func (w *responseWriterWrapper) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// GET /auctions
func (s *Server) handleAuctions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	all, err := s.delegator.ListAuctions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	now := s.timeNow()
	out := make([]auctionResponse, 0, len(all))
	for _, st := range all {
		out = append(out, newAuctionResponse(st, now))
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /auction
func (s *Server) handleAddAuction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	user, err := ParseIdentity(r.Header.Get(IdentityHeader))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	var req addAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	auction, err := req.toAuction(user)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ev, err := s.delegator.SubmitCommand(r.Context(), types.AddAuction{Time: s.timeNow(), Auction: auction})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev.(types.AuctionAdded).Auction)
}

// handleAuction routes /auction/{id}, /auction/{id}/bid and
// /auction/{id}/bid/{bidID}.
func (s *Server) handleAuction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/auction/")
	parts := strings.Split(rest, "/")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, types.ErrUnknownAuction)
		return
	}
	auctionID := types.AuctionID(id)

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.getAuction(w, r, auctionID)
	case len(parts) == 2 && parts[1] == "bid" && r.Method == http.MethodPost:
		s.placeBid(w, r, auctionID)
	case len(parts) == 3 && parts[1] == "bid" && r.Method == http.MethodDelete:
		s.retractBid(w, r, types.BidID(parts[2]))
	default:
		writeError(w, http.StatusNotFound, errors.New("not found"))
	}
}

func (s *Server) getAuction(w http.ResponseWriter, r *http.Request, id types.AuctionID) {
	st, err := s.delegator.GetAuction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAuctionResponse(st, s.timeNow()))
}

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request, id types.AuctionID) {
	user, err := ParseIdentity(r.Header.Get(IdentityHeader))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	now := s.timeNow()
	bid := types.Bid{
		ID:        types.BidID(uuid.NewString()),
		AuctionID: id,
		Bidder:    user,
		Amount:    amount,
		PlacedAt:  now,
	}
	ev, err := s.delegator.SubmitCommand(r.Context(), types.PlaceBid{Time: now, Bid: bid})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev.(types.BidAccepted).Bid)
}

func (s *Server) retractBid(w http.ResponseWriter, r *http.Request, bidID types.BidID) {
	user, err := ParseIdentity(r.Header.Get(IdentityHeader))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	ev, err := s.delegator.SubmitCommand(r.Context(), types.RetractBid{
		Time:      s.timeNow(),
		BidID:     bidID,
		Requester: user,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type addAuctionRequest struct {
	ID       int64  `json:"id"`
	StartsAt string `json:"startsAt"`
	EndsAt   string `json:"endsAt"`
	Title    string `json:"title"`
	Currency string `json:"currency"`
	Type     string `json:"type"`
}

func (req addAuctionRequest) toAuction(seller types.User) (types.Auction, error) {
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return types.Auction{}, fmt.Errorf("parsing startsAt: %w", err)
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return types.Auction{}, fmt.Errorf("parsing endsAt: %w", err)
	}
	currency := types.CurrencyVAC
	if req.Currency != "" {
		currency, err = types.ParseCurrency(req.Currency)
		if err != nil {
			return types.Auction{}, err
		}
	}
	protocol := types.DefaultProtocol(currency)
	if req.Type != "" {
		protocol, err = types.ParseProtocol(req.Type)
		if err != nil {
			return types.Auction{}, err
		}
	}
	a := types.Auction{
		ID:       types.AuctionID(req.ID),
		StartsAt: startsAt,
		Expiry:   endsAt,
		Title:    req.Title,
		Seller:   seller,
		Currency: currency,
		Protocol: protocol,
	}
	return a, a.Validate()
}

type placeBidRequest struct {
	Amount string `json:"amount"`
}

type bidResponse struct {
	Amount string    `json:"amount"`
	Bidder string    `json:"bidder"`
	At     time.Time `json:"at"`
}

type auctionResponse struct {
	ID          types.AuctionID `json:"id"`
	StartsAt    time.Time       `json:"startsAt"`
	Expiry      time.Time       `json:"expiry"`
	Title       string          `json:"title"`
	Seller      string          `json:"seller"`
	Currency    string          `json:"currency"`
	Type        string          `json:"type"`
	Bids        []bidResponse   `json:"bids"`
	HasEnded    bool            `json:"hasEnded"`
	Winner      string          `json:"winner,omitempty"`
	WinnerPrice string          `json:"winnerPrice,omitempty"`
}

func newAuctionResponse(st state.AuctionState, now time.Time) auctionResponse {
	bids := st.ActiveBids()
	out := auctionResponse{
		ID:       st.Auction.ID,
		StartsAt: st.Auction.StartsAt,
		Expiry:   st.Expiry,
		Title:    st.Auction.Title,
		Seller:   st.Auction.Seller.String(),
		Currency: string(st.Auction.Currency),
		Type:     st.Auction.Protocol.String(),
		Bids:     make([]bidResponse, 0, len(bids)),
		HasEnded: st.HasEnded(now),
	}
	for _, b := range bids {
		out.Bids = append(out.Bids, bidResponse{
			Amount: b.Amount.String(),
			Bidder: b.Bidder.String(),
			At:     b.PlacedAt,
		})
	}
	if price, winner, ok := st.Winner(now); ok {
		out.Winner = string(winner)
		out.WinnerPrice = price.String()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeDomainError maps domain errors to statuses: unknown resources are
// 404s, duplicates are 409s, everything else the domain rejects is a 400.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrUnknownAuction),
		errors.Is(err, types.ErrAuctionNotFound),
		errors.Is(err, types.ErrUnknownBid):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, types.ErrAuctionAlreadyExists),
		errors.Is(err, types.ErrBidAlreadyExists),
		errors.Is(err, types.ErrAlreadyPlacedBid):
		writeError(w, http.StatusConflict, err)
	case types.IsDomainError(err):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
