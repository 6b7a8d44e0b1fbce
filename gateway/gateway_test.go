package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-bridge/bridge"
	"browser-bridge/protocol"
	"browser-bridge/transport"
)

// fakeInvoker is a canned bridge: it records the call and returns whatever
// the test planted.
type fakeInvoker struct {
	connected bool
	result    []byte
	err       error

	gotMethod string
	gotParams any
}

func (f *fakeInvoker) Invoke(ctx context.Context, method string, params any) ([]byte, error) {
	f.gotMethod = method
	f.gotParams = params
	return f.result, f.err
}

func (f *fakeInvoker) IsConnected() bool { return f.connected }

func do(t *testing.T, g *Gateway, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	g := New(&fakeInvoker{connected: true}, Options{})

	rec := do(t, g, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["extension_connected"])
}

func TestInfo(t *testing.T) {
	g := New(&fakeInvoker{connected: true}, Options{})

	rec := do(t, g, http.MethodGet, "/mcp/info", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "browser-bridge", body["name"])
	assert.Equal(t, "2024-11-05", body["protocol_version"])
	assert.Equal(t, true, body["extension_connected"])
}

// Each call-level failure must reach the HTTP caller as its own status
// code, never collapsed into a generic 500.
func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"not connected", bridge.ErrNotConnected, http.StatusServiceUnavailable, "extension not connected"},
		{"timeout", bridge.ErrTimeout, http.StatusGatewayTimeout, "extension did not respond in time"},
		{"remote", &bridge.RemoteError{Method: "tabs/list", Message: "boom"}, http.StatusBadGateway, "boom"},
		{"other", errors.New("pipe exploded"), http.StatusInternalServerError, "pipe exploded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := New(&fakeInvoker{connected: true, err: tc.err}, Options{})
			rec := do(t, g, http.MethodGet, "/tabs", "")
			require.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantError, decode(t, rec)["error"])
		})
	}
}

func TestListTabs(t *testing.T) {
	inv := &fakeInvoker{connected: true, result: []byte(`[{"id":7,"url":"https://example.com"}]`)}
	g := New(inv, Options{})

	rec := do(t, g, http.MethodGet, "/tabs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tabs/list", inv.gotMethod)
	assert.JSONEq(t, `{"result":[{"id":7,"url":"https://example.com"}]}`, rec.Body.String())
}

// GET on the bare tab path is shorthand for its content.
func TestTabContentBarePath(t *testing.T) {
	inv := &fakeInvoker{connected: true, result: []byte(`{"text":"hello"}`)}
	g := New(inv, Options{})

	rec := do(t, g, http.MethodGet, "/tabs/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page/getContent", inv.gotMethod)

	params, ok := inv.gotParams.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 7, params["tabId"])
}

func TestTabNavigate(t *testing.T) {
	inv := &fakeInvoker{connected: true, result: []byte(`true`)}
	g := New(inv, Options{})

	rec := do(t, g, http.MethodPost, "/tabs/7/navigate", `{"url":"https://x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tabs/navigate", inv.gotMethod)

	params, ok := inv.gotParams.(map[string]any)
	require.True(t, ok, "params should be an object, got %T", inv.gotParams)
	assert.Equal(t, 7, params["tabId"])
	assert.Equal(t, "https://x", params["url"])
}

func TestTabUnknownAction(t *testing.T) {
	g := New(&fakeInvoker{connected: true}, Options{})
	rec := do(t, g, http.MethodPost, "/tabs/7/teleport", "{}")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToolCall(t *testing.T) {
	inv := &fakeInvoker{connected: true, result: []byte(`{"clicked":true}`)}
	g := New(inv, Options{})

	rec := do(t, g, http.MethodPost, "/mcp/call/browser_page_click", `{"tab_id":3,"selector":"#submit"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page/click", inv.gotMethod)

	params, ok := inv.gotParams.(map[string]any)
	require.True(t, ok)
	// JSON numbers decode as float64 and pass through the binding as-is.
	assert.Equal(t, float64(3), params["tabId"])
	assert.Equal(t, "#submit", params["selector"])
}

func TestToolCallUnknownTool(t *testing.T) {
	g := New(&fakeInvoker{connected: true}, Options{})
	rec := do(t, g, http.MethodPost, "/mcp/call/browser_make_coffee", "{}")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToolsCatalogue(t *testing.T) {
	g := New(&fakeInvoker{}, Options{})
	rec := do(t, g, http.MethodGet, "/mcp/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tools, len(toolBindings))
	assert.Equal(t, "browser_tabs_list", body.Tools[0].Name)
}

func TestCORSPreflight(t *testing.T) {
	g := New(&fakeInvoker{}, Options{})
	rec := do(t, g, http.MethodOptions, "/tabs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	g := New(&fakeInvoker{connected: true}, Options{RateLimit: 1, RateBurst: 1})

	first := do(t, g, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, first.Code)

	second := do(t, g, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

// Full data flow: HTTP request → gateway → bridge → framed channel → fake
// extension → framed response → HTTP response.
func TestGatewayEndToEnd(t *testing.T) {
	bridgeRead, peerWrite := io.Pipe()
	peerRead, bridgeWrite := io.Pipe()

	b := bridge.New(transport.NewPipe(bridgeRead, bridgeWrite), bridge.Options{})
	b.Start()
	t.Cleanup(func() { b.Stop() })

	go func() {
		for {
			msg, err := protocol.ReadFrame(peerRead)
			if err != nil {
				return
			}
			if msg.Method == "tabs/list" {
				protocol.WriteFrame(peerWrite, map[string]any{
					"id":     msg.ID,
					"result": []map[string]any{{"id": 7, "url": "https://example.com"}},
				})
			}
		}
	}()

	// Extension announces itself; wait for liveness.
	require.NoError(t, protocol.WriteFrame(peerWrite, map[string]any{"method": "ping"}))
	require.Eventually(t, b.IsConnected, time.Second, time.Millisecond)

	g := New(b, Options{})
	rec := do(t, g, http.MethodGet, "/tabs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":[{"id":7,"url":"https://example.com"}]}`, rec.Body.String())
}
