package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"payway/core/events"
	"payway/native/storefront"
	"payway/native/token"
	"payway/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	requestsPerSecond = 10
	requestBurst      = 20
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// authTokenEnv names the environment variable carrying the bearer token that
// guards mutating methods.
const authTokenEnv = "PAYWAY_RPC_TOKEN"

// Server exposes the storefront and token ledgers over JSON-RPC. Mutating
// methods are serialized by a single mutex, matching the ledger's
// one-transition-at-a-time execution model.
type Server struct {
	engine *storefront.Engine
	token  *token.Ledger
	stream *events.Stream
	logger *slog.Logger

	mu sync.Mutex

	authToken string

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewServer wires a server around the given engines. The auth token is read
// from the PAYWAY_RPC_TOKEN environment variable; when unset, every mutating
// method is rejected.
func NewServer(engine *storefront.Engine, ledger *token.Ledger, stream *events.Stream, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		token:     ledger,
		stream:    stream,
		logger:    logger,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint, health check,
// Prometheus metrics, and the websocket event stream.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/", s.handle)
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// requestID tags every request with a correlation id surfaced in logs and the
// response headers.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.allowSource(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	outcome := s.dispatch(w, r, req)
	observability.Storefront().ObserveRequest(req.Method, outcome, time.Since(start))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	switch req.Method {
	case "storefront_addItem":
		return s.mutate(w, r, req, s.handleAddItem)
	case "storefront_register":
		return s.mutate(w, r, req, s.handleRegister)
	case "storefront_pay":
		return s.mutate(w, r, req, s.handlePayNative)
	case "storefront_payWithToken":
		return s.mutate(w, r, req, s.handlePayToken)
	case "storefront_getItemById":
		return s.handleGetItemByID(w, r, req)
	case "storefront_getAllItems":
		return s.handleGetAllItems(w, r, req)
	case "storefront_getCurrentItemId":
		return s.handleGetCurrentItemID(w, r, req)
	case "storefront_getAllCustomers":
		return s.handleGetAllCustomers(w, r, req)
	case "storefront_getAllPayments":
		return s.handleGetAllPayments(w, r, req)
	case "storefront_getPaymentOf":
		return s.handleGetPaymentOf(w, r, req)
	case "storefront_getBalance":
		return s.handleGetBalance(w, r, req)
	case "storefront_getTokenBalance":
		return s.handleGetTokenBalance(w, r, req)
	case "token_mint":
		return s.mutate(w, r, req, s.handleTokenMint)
	case "token_transfer":
		return s.mutate(w, r, req, s.handleTokenTransfer)
	case "token_approve":
		return s.mutate(w, r, req, s.handleTokenApprove)
	case "token_balanceOf":
		return s.handleTokenBalanceOf(w, r, req)
	case "token_allowance":
		return s.handleTokenAllowance(w, r, req)
	case "token_totalSupply":
		return s.handleTokenTotalSupply(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return "method_not_found"
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest) string

// mutate guards a mutating handler with bearer-token auth and the
// single-writer mutex.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, req *RPCRequest, handler handlerFunc) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "unauthorized"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return handler(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	tokenValue := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenValue == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(tokenValue), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.limiterMu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst)
		s.limiters[source] = limiter
	}
	s.limiterMu.Unlock()
	return limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
