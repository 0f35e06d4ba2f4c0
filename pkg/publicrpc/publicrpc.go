// Package publicrpc serves a JSON view of a jumpgate and its archived sweeps, and lets anyone
// trigger a sweep.
package publicrpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aremia/jumpgates/pkg/db"
	"github.com/aremia/jumpgates/pkg/encode"
	"github.com/aremia/jumpgates/pkg/jumpgate"
	"github.com/aremia/jumpgates/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodySize = 1024

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jumpgate_publicrpc_requests_total",
			Help: "Total number of public API requests by route and status code",
		}, []string{"route", "code"})
	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jumpgate_publicrpc_rate_limited_total",
			Help: "Total number of public API requests rejected by the rate limiter",
		})
)

// Sweeper bridges the jumpgate balance on demand. A nil sweep means the balance was below
// the dust cutoff.
type Sweeper interface {
	SweepOnce() (*db.Sweep, error)
}

// Faucet moves devnet tokens into an account.
type Faucet interface {
	Fund(to common.Address, amount *uint256.Int) (*ledger.Receipt, error)
}

type PublicrpcServer struct {
	logger  *zap.Logger
	client  *jumpgate.Client
	db      *db.Database
	sweeper Sweeper
	faucet  Faucet
	limiter *rate.Limiter
}

// NewPublicrpcServer creates the API server. The deposit route is only served when faucet
// is not nil.
func NewPublicrpcServer(logger *zap.Logger, client *jumpgate.Client, database *db.Database, sweeper Sweeper, faucet Faucet, limiter *rate.Limiter) *PublicrpcServer {
	return &PublicrpcServer{
		logger:  logger.Named("publicrpc"),
		client:  client,
		db:      database,
		sweeper: sweeper,
		faucet:  faucet,
		limiter: limiter,
	}
}

// Router returns the API routes. Every route shares the server's rate limiter.
func (s *PublicrpcServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.rateLimit)
	r.HandleFunc("/v1/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/v1/jumpgate", s.handleStatus).Methods("GET")
	r.HandleFunc("/v1/jumpgate/sweeps", s.handleSweeps).Methods("GET")
	r.HandleFunc("/v1/jumpgate/bridge", s.handleBridge).Methods("POST")
	if s.faucet != nil {
		r.HandleFunc("/v1/jumpgate/deposit", s.handleDeposit).Methods("POST")
	}
	r.HandleFunc("/v1/messages/{chain}/{emitter}/{seq}", s.handleMessage).Methods("GET")
	return r
}

func NewHTTPServer(addr string, s *PublicrpcServer) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *PublicrpcServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			rateLimitedTotal.Inc()
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusResponse struct {
	Address        string `json:"address"`
	Owner          string `json:"owner"`
	Token          string `json:"token"`
	Bridge         string `json:"bridge"`
	RecipientChain uint16 `json:"recipientChain"`
	Recipient      string `json:"recipient"`
	// RecipientAddress is the recipient in its chain's native format, when that is known.
	RecipientAddress string `json:"recipientAddress,omitempty"`
	ArbiterFee       string `json:"arbiterFee"`
	TokenBalance     string `json:"tokenBalance"`
	EtherBalance     string `json:"etherBalance"`
	Bridgeable       bool   `json:"bridgeable"`
}

type sweepResponse struct {
	Timestamp   int64  `json:"timestamp"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Amount      string `json:"amount"`
	Sequence    uint64 `json:"sequence"`
}

type depositRequest struct {
	Amount string `json:"amount"`
}

type depositResponse struct {
	TxHash       string `json:"txHash"`
	Amount       string `json:"amount"`
	TokenBalance string `json:"tokenBalance"`
}

type messageResponse struct {
	ID               string `json:"id"`
	TxHash           string `json:"txHash"`
	BlockNumber      uint64 `json:"blockNumber"`
	Nonce            uint32 `json:"nonce"`
	ConsistencyLevel uint8  `json:"consistencyLevel"`
	Payload          string `json:"payload"`
}

func (s *PublicrpcServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *PublicrpcServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.client.Status()
	if err != nil {
		s.logger.Error("failed to read jumpgate status", zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	resp := statusResponse{
		Address:        status.Address.Hex(),
		Owner:          status.Owner.Hex(),
		Token:          status.Token.Hex(),
		Bridge:         status.Bridge.Hex(),
		RecipientChain: uint16(status.RecipientChain),
		Recipient:      status.Recipient.String(),
		ArbiterFee:     status.ArbiterFee.Dec(),
		TokenBalance:   status.TokenBalance.Dec(),
		EtherBalance:   status.EtherBalance.Dec(),
		Bridgeable:     status.Bridgeable(),
	}
	if human, err := encode.Decode(status.RecipientChain, status.Recipient); err == nil {
		resp.RecipientAddress = human
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *PublicrpcServer) handleSweeps(w http.ResponseWriter, r *http.Request) {
	sweeps, err := s.db.GetSweeps(s.client.Jumpgate().Address())
	if err != nil {
		s.logger.Error("failed to read sweeps", zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	resp := make([]sweepResponse, 0, len(sweeps))
	for _, sw := range sweeps {
		resp = append(resp, toSweepResponse(sw))
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *PublicrpcServer) handleBridge(w http.ResponseWriter, r *http.Request) {
	sweep, err := s.sweeper.SweepOnce()
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if sweep == nil {
		s.writeError(w, r, http.StatusPreconditionFailed, jumpgate.ErrAmountTooSmall)
		return
	}
	s.writeJSON(w, r, http.StatusOK, toSweepResponse(sweep))
}

func (s *PublicrpcServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("failed to decode body: %w", err))
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid amount %q: %w", req.Amount, err))
		return
	}
	if amount.IsZero() {
		s.writeError(w, r, http.StatusBadRequest, errors.New("amount must be positive"))
		return
	}

	receipt, err := s.faucet.Fund(s.client.Jumpgate().Address(), amount)
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		s.writeError(w, r, http.StatusConflict, err)
		return
	}
	if err != nil {
		s.logger.Error("deposit failed", zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	status, err := s.client.Status()
	if err != nil {
		s.logger.Error("failed to read jumpgate status", zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, depositResponse{
		TxHash:       receipt.TxHash.Hex(),
		Amount:       amount.Dec(),
		TokenBalance: status.TokenBalance.Dec(),
	})
}

func (s *PublicrpcServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := db.MessageIDFromString(fmt.Sprintf("%s/%s/%s", vars["chain"], vars["emitter"], vars["seq"]))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	msg, err := s.db.GetMessage(*id)
	if errors.Is(err, db.ErrMessageNotFound) {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("failed to read message", zap.String("message_id", id.String()), zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, messageResponse{
		ID:               msg.MessageIDString(),
		TxHash:           msg.TxHash.Hex(),
		BlockNumber:      msg.BlockNumber,
		Nonce:            msg.Nonce,
		ConsistencyLevel: msg.ConsistencyLevel,
		Payload:          hex.EncodeToString(msg.Payload),
	})
}

func toSweepResponse(sw *db.Sweep) sweepResponse {
	return sweepResponse{
		Timestamp:   sw.Timestamp.Unix(),
		TxHash:      sw.TxHash.Hex(),
		BlockNumber: sw.BlockNumber,
		Amount:      sw.Amount.Dec(),
		Sequence:    sw.Sequence,
	}
}

func (s *PublicrpcServer) writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
	requestsTotal.WithLabelValues(routeName(r), strconv.Itoa(code)).Inc()
}

func (s *PublicrpcServer) writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	s.writeJSON(w, r, code, map[string]string{"error": err.Error()})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
