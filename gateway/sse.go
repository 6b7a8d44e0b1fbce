package gateway

// The SSE transport carries MCP JSON-RPC over two endpoints. GET /sse opens
// a long-lived event stream and announces a per-session message endpoint;
// POST /message?session_id=... accepts JSON-RPC requests whose responses are
// pushed back down the session's stream. Tool calls reuse the same bindings
// as the REST surface.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const sseKeepalive = 30 * time.Second

type sseSession struct {
	id     string
	events chan []byte
}

// rpcRequest is the JSON-RPC envelope MCP clients post to /message.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

func (g *Gateway) addSession() *sseSession {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()
	g.sseCounter++
	sess := &sseSession{
		id:     fmt.Sprintf("session-%d", g.sseCounter),
		events: make(chan []byte, 100),
	}
	g.sessions[sess.id] = sess
	return sess
}

func (g *Gateway) removeSession(id string) {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()
	delete(g.sessions, id)
}

func (g *Gateway) session(id string) *sseSession {
	g.sessionsMu.Lock()
	defer g.sessionsMu.Unlock()
	return g.sessions[id]
}

func (g *Gateway) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sess := g.addSession()
	defer g.removeSession(sess.id)
	g.logger.Info("sse client connected", zap.String("session", sess.id))
	defer g.logger.Info("sse client disconnected", zap.String("session", sess.id))

	fmt.Fprintf(w, "event: endpoint\ndata: /message?session_id=%s\n\n", sess.id)
	flusher.Flush()

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-sess.events:
			fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (g *Gateway) handleSSEMessage(w http.ResponseWriter, r *http.Request) {
	sess := g.session(r.URL.Query().Get("session_id"))
	if sess == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown session"})
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON: " + err.Error()})
		return
	}

	// A message without a method is the client responding to us; there is
	// nothing to dispatch.
	if req.Method != "" {
		go g.dispatchRPC(sess, &req)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "accepted"})
}

// dispatchRPC runs one JSON-RPC request and pushes the response down the
// session stream. A session whose reader has gone away stops draining its
// channel; the send gives up after a bound instead of leaking the goroutine.
func (g *Gateway) dispatchRPC(sess *sseSession, req *rpcRequest) {
	result, err := g.executeRPC(req)

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if err != nil {
		resp["error"] = map[string]any{"code": -32603, "message": err.Error()}
	} else {
		resp["result"] = result
	}

	data, _ := json.Marshal(resp)
	select {
	case sess.events <- data:
	case <-time.After(5 * time.Second):
		g.logger.Warn("sse event channel full, dropping response", zap.String("session", sess.id))
	}
}

func (g *Gateway) executeRPC(req *rpcRequest) (any, error) {
	switch req.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{},
			"serverInfo":      map[string]any{"name": serverName, "version": serverVersion},
		}, nil

	case "tools/list":
		return map[string]any{"tools": Catalogue()}, nil

	case "tools/call":
		var call struct {
			Name string         `json:"name"`
			Args map[string]any `json:"arguments"`
		}
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &call); err != nil {
				return nil, err
			}
		}
		binding, ok := toolBindings[call.Name]
		if !ok {
			return nil, fmt.Errorf("unknown tool: %s", call.Name)
		}
		if call.Args == nil {
			call.Args = map[string]any{}
		}
		raw, err := g.invoker.Invoke(context.Background(), binding.method, binding.params(call.Args))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"content": []map[string]any{{"type": "text", "text": string(raw)}},
		}, nil

	default:
		return nil, fmt.Errorf("unknown method: %s", req.Method)
	}
}
