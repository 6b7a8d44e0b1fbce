// Package gateway exposes the bridge as a REST API.
//
// Every endpoint reduces to one bridge invocation: the path and body pick an
// extension method and its params, Invoke blocks until the extension answers
// or the call fails, and the outcome maps onto a status code. Routing here is
// deliberately thin glue — the interesting failure semantics live in the
// bridge package.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"browser-bridge/bridge"
	"browser-bridge/metrics"
)

const (
	serverName      = "browser-bridge"
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// Invoker is the bridge surface the gateway consumes.
type Invoker interface {
	Invoke(ctx context.Context, method string, params any) ([]byte, error)
	IsConnected() bool
}

// Options configures the HTTP surface.
type Options struct {
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	RateLimit float64 // requests per second; 0 disables limiting
	RateBurst int
}

// Gateway routes REST calls into bridge invocations.
type Gateway struct {
	invoker Invoker
	logger  *zap.Logger
	handler http.Handler

	sessionsMu sync.Mutex
	sessions   map[string]*sseSession
	sseCounter int
}

func New(invoker Invoker, opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	g := &Gateway{
		invoker:  invoker,
		logger:   opts.Logger,
		sessions: make(map[string]*sseSession),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", g.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/mcp/info", g.handleInfo).Methods(http.MethodGet)
	router.HandleFunc("/mcp/tools", g.handleTools).Methods(http.MethodGet)
	router.HandleFunc("/mcp/call/{tool}", g.handleToolCall).Methods(http.MethodPost)
	router.HandleFunc("/sse", g.handleSSE).Methods(http.MethodGet)
	router.HandleFunc("/message", g.handleSSEMessage).Methods(http.MethodPost)
	router.HandleFunc("/tabs", g.handleListTabs).Methods(http.MethodGet)
	// A bare tab path reads as its content, same as the /content suffix.
	router.HandleFunc("/tabs/{id:[0-9]+}", g.handleTabGet("page/getContent")).Methods(http.MethodGet)
	router.HandleFunc("/tabs/{id:[0-9]+}/content", g.handleTabGet("page/getContent")).Methods(http.MethodGet)
	router.HandleFunc("/tabs/{id:[0-9]+}/screenshot", g.handleTabGet("tabs/screenshot")).Methods(http.MethodGet)
	router.HandleFunc("/tabs/{id:[0-9]+}/{action}", g.handleTabAction).Methods(http.MethodPost)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	middlewares := []Middleware{CORS(), Logging(opts.Logger)}
	if opts.RateLimit > 0 {
		middlewares = append(middlewares, RateLimit(opts.RateLimit, opts.RateBurst))
	}
	g.handler = Chain(middlewares...)(router)

	return g
}

// Handler returns the fully wrapped HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"extension_connected": g.invoker.IsConnected(),
	})
}

func (g *Gateway) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":                serverName,
		"version":             serverVersion,
		"protocol_version":    protocolVersion,
		"tools":               Catalogue(),
		"extension_connected": g.invoker.IsConnected(),
	})
}

func (g *Gateway) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": Catalogue()})
}

func (g *Gateway) handleToolCall(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["tool"]
	binding, ok := toolBindings[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown tool: " + name})
		return
	}

	args := decodeBody(r)
	g.invoke(w, r, binding.method, binding.params(args))
}

func (g *Gateway) handleListTabs(w http.ResponseWriter, r *http.Request) {
	g.invoke(w, r, "tabs/list", map[string]any{})
}

func (g *Gateway) handleTabGet(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID, _ := strconv.Atoi(mux.Vars(r)["id"])
		g.invoke(w, r, method, map[string]any{"tabId": tabID})
	}
}

// Direct tab actions: POST /tabs/{id}/{action} with params in the body.
var tabActions = map[string]struct {
	method string
	params func(tabID int, body map[string]any) map[string]any
}{
	"activate": {"tabs/activate", func(tabID int, body map[string]any) map[string]any {
		return map[string]any{"tabId": tabID}
	}},
	"navigate": {"tabs/navigate", func(tabID int, body map[string]any) map[string]any {
		return map[string]any{"tabId": tabID, "url": body["url"]}
	}},
	"close": {"tabs/close", func(tabID int, body map[string]any) map[string]any {
		return map[string]any{"tabId": tabID}
	}},
	"execute": {"page/executeScript", func(tabID int, body map[string]any) map[string]any {
		return map[string]any{"tabId": tabID, "script": body["script"]}
	}},
	"click": {"page/click", func(tabID int, body map[string]any) map[string]any {
		return map[string]any{"tabId": tabID, "selector": body["selector"]}
	}},
	"fill": {"page/fill", func(tabID int, body map[string]any) map[string]any {
		return map[string]any{"tabId": tabID, "selector": body["selector"], "value": body["value"]}
	}},
	"scroll": {"page/scroll", func(tabID int, body map[string]any) map[string]any {
		p := map[string]any{"tabId": tabID, "x": 0, "y": 0}
		if x, ok := body["x"]; ok {
			p["x"] = x
		}
		if y, ok := body["y"]; ok {
			p["y"] = y
		}
		return p
	}},
	"find": {"page/find", func(tabID int, body map[string]any) map[string]any {
		return map[string]any{"tabId": tabID, "selector": body["selector"]}
	}},
}

func (g *Gateway) handleTabAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tabID, _ := strconv.Atoi(vars["id"])

	action, ok := tabActions[vars["action"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown action: " + vars["action"]})
		return
	}

	g.invoke(w, r, action.method, action.params(tabID, decodeBody(r)))
}

// invoke performs the bridge call and translates the outcome into HTTP.
func (g *Gateway) invoke(w http.ResponseWriter, r *http.Request, method string, params any) {
	result, err := g.invoker.Invoke(r.Context(), method, params)
	if err != nil {
		g.writeError(w, method, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": json.RawMessage(result)})
}

// writeError maps bridge failures onto distinguishable status codes:
// unreachable extension → 503, no answer in time → 504, extension-reported
// failure → 502 with the extension's message verbatim.
func (g *Gateway) writeError(w http.ResponseWriter, method string, err error) {
	var remoteErr *bridge.RemoteError
	switch {
	case errors.Is(err, bridge.ErrNotConnected):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "extension not connected"})
	case errors.Is(err, bridge.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]any{"error": "extension did not respond in time"})
	case errors.As(err, &remoteErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": remoteErr.Message})
	default:
		g.logger.Error("call failed", zap.String("method", method), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}

// decodeBody parses the request body as a JSON object, tolerating an empty
// or absent body.
func decodeBody(r *http.Request) map[string]any {
	args := map[string]any{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&args)
	}
	return args
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
