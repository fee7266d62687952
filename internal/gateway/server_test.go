package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/plugcat/internal/calc"
	"github.com/soyeahso/plugcat/internal/config"
	"github.com/soyeahso/plugcat/internal/hooks"
	"github.com/soyeahso/plugcat/internal/logging"
	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/soyeahso/plugcat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token-123"

func testExecutor(history store.RunStore) *calc.Executor {
	log := logging.New(nil, "silent")
	var opts []calc.Option
	if history != nil {
		opts = append(opts, calc.WithHistory(history))
	}
	return calc.NewExecutor(plugin.NewRegistry(log), log, opts...)
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	return testServerWith(t, testExecutor(store.NewMemoryRunStore()))
}

func testServerWith(t *testing.T, exec *calc.Executor) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Gateway.Auth.Mode = "token"
	cfg.Gateway.Auth.Token = testToken

	raw := map[string]any{
		"gateway": map[string]any{"port": 18790, "bind": "loopback"},
		"logging": map[string]any{"level": "info"},
	}

	srv := New(cfg, exec, logging.New(nil, "silent"), WithConfigRaw(raw))
	t.Cleanup(srv.authLimiter.stop)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// dialAndConnect completes the handshake against ts.
func dialAndConnect(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	require.Equal(t, EventConnectChallenge, challenge.Event)

	connectReq, _ := NewRequest("auth-req", "connect", ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client:      ClientInfo{ID: "test-client", Version: "1.0.0", Platform: "linux", Mode: "cli"},
		Auth:        &ConnectAuth{Token: testToken},
	})
	require.NoError(t, conn.WriteJSON(connectReq))

	var helloResp Frame
	require.NoError(t, conn.ReadJSON(&helloResp))
	require.NotNil(t, helloResp.OK)
	require.True(t, *helloResp.OK, "handshake should succeed")
	return conn
}

func authenticatedConn(t *testing.T) *websocket.Conn {
	t.Helper()
	_, ts := testServer(t)
	return dialAndConnect(t, ts)
}

// call sends one RPC request and reads frames until its response arrives.
func call(t *testing.T, conn *websocket.Conn, id, method string, params any) Frame {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == FrameTypeResponse && f.ID == id {
			return f
		}
	}
}

func int32p(v int32) *int32 { return &v }

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Empty(t, health.Version, "public health exposes status only")
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestWebSocketHandshakeSuccess(t *testing.T) {
	_, ts := testServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	assert.Equal(t, FrameTypeEvent, challenge.Type)
	assert.Equal(t, EventConnectChallenge, challenge.Event)

	connectReq, err := NewRequest("req-1", "connect", ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client:      ClientInfo{ID: "test-client", Version: "1.0.0", Platform: "linux", Mode: "cli"},
		Auth:        &ConnectAuth{Token: testToken},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(connectReq))

	var helloResp Frame
	require.NoError(t, conn.ReadJSON(&helloResp))
	assert.Equal(t, FrameTypeResponse, helloResp.Type)
	assert.Equal(t, "req-1", helloResp.ID)
	require.NotNil(t, helloResp.OK)
	assert.True(t, *helloResp.OK)

	var hello HelloOK
	require.NoError(t, json.Unmarshal(helloResp.Payload, &hello))
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.Contains(t, hello.Features.Methods, "plugins.run")
	assert.Contains(t, hello.Features.Events, EventRunCompleted)
	assert.Greater(t, hello.Policy.MaxPayload, 0)
}

func TestWebSocketHandshakeRejects(t *testing.T) {
	tests := []struct {
		name   string
		method string
		params ConnectParams
		code   string
	}{
		{
			name:   "wrong token",
			method: "connect",
			params: ConnectParams{MinProtocol: 1, MaxProtocol: 1, Auth: &ConnectAuth{Token: "wrong"}},
			code:   "unauthorized",
		},
		{
			name:   "no credentials",
			method: "connect",
			params: ConnectParams{MinProtocol: 1, MaxProtocol: 1},
			code:   "unauthorized",
		},
		{
			name:   "not a connect request",
			method: "health",
			params: ConnectParams{},
			code:   "protocol_error",
		},
		{
			name:   "protocol too new",
			method: "connect",
			params: ConnectParams{MinProtocol: 2, MaxProtocol: 3, Auth: &ConnectAuth{Token: testToken}},
			code:   "protocol_mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := testServer(t)

			conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
			require.NoError(t, err)
			defer conn.Close()

			var challenge Frame
			require.NoError(t, conn.ReadJSON(&challenge))

			req, _ := NewRequest("req-1", tt.method, tt.params)
			require.NoError(t, conn.WriteJSON(req))

			var errResp Frame
			require.NoError(t, conn.ReadJSON(&errResp))
			require.NotNil(t, errResp.OK)
			assert.False(t, *errResp.OK)
			require.NotNil(t, errResp.Error)
			assert.Equal(t, tt.code, errResp.Error.Code)
		})
	}
}

func TestWebSocketUpgrade_ThroughMiddleware(t *testing.T) {
	_, ts := testServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"), "request went through the middleware chain")
}

// rejectedConnect runs one handshake with params and returns the error code.
func rejectedConnect(t *testing.T, ts *httptest.Server, params ConnectParams) string {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	req, _ := NewRequest("req-1", "connect", params)
	require.NoError(t, conn.WriteJSON(req))

	var errResp Frame
	require.NoError(t, conn.ReadJSON(&errResp))
	require.NotNil(t, errResp.Error)
	return errResp.Error.Code
}

func TestWebSocketHandshake_ProtocolErrorsNotRateLimited(t *testing.T) {
	srv, ts := testServer(t)

	for i := 0; i <= authRateMaxFails; i++ {
		code := rejectedConnect(t, ts, ConnectParams{MinProtocol: 2, MaxProtocol: 3, Auth: &ConnectAuth{Token: testToken}})
		require.Equal(t, "protocol_mismatch", code)
	}

	assert.True(t, srv.authLimiter.allow("127.0.0.1:1"))
	dialAndConnect(t, ts)
}

func TestWebSocketHandshake_BadCredentialsRateLimited(t *testing.T) {
	srv, ts := testServer(t)

	for i := 0; i < authRateMaxFails; i++ {
		code := rejectedConnect(t, ts, ConnectParams{MinProtocol: 1, MaxProtocol: 1, Auth: &ConnectAuth{Token: "guess"}})
		require.Equal(t, "unauthorized", code)
	}

	require.Eventually(t, func() bool {
		return !srv.authLimiter.allow("127.0.0.1:1")
	}, 2*time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWebSocketRPCHealth(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "req-2", "health", nil)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
	assert.Equal(t, 6, health.Plugins)
	assert.True(t, health.History)
}

func TestWebSocketRPCClientsList(t *testing.T) {
	conn := authenticatedConn(t)

	call(t, conn, "req-run", "plugins.run", RunParams{ID: "AddPlugin", A: int32p(1), B: int32p(2)})
	call(t, conn, "req-run-2", "plugins.run", RunParams{ID: "DividePlugin", A: int32p(1), B: int32p(0)})

	resp := call(t, conn, "req-clients", "clients.list", nil)
	require.True(t, *resp.OK)

	var list ClientsListResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &list))
	require.Len(t, list.Clients, 1)
	assert.Equal(t, "test-client", list.Clients[0].ClientID)
	assert.Equal(t, "cli", list.Clients[0].Mode)
	assert.Equal(t, int64(2), list.Clients[0].Runs, "failed runs count too")
}

func TestWebSocketRPCPluginsList(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "req-3", "plugins.list", nil)
	require.True(t, *resp.OK)

	var list PluginsListResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &list))
	require.Len(t, list.Plugins, 6)
	assert.Equal(t, "AddPlugin", list.Plugins[0].ID)
	assert.Equal(t, "UltimateAnswerOfLifeAndUniverseAndEverythingPlugin", list.Plugins[5].ID)
}

func TestWebSocketRPCPluginsInfo(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "req-4", "plugins.info", PluginInfoParams{ID: "PowPlugin"})
	require.True(t, *resp.OK)

	var desc plugin.Descriptor
	require.NoError(t, json.Unmarshal(resp.Payload, &desc))
	assert.Equal(t, "PowPlugin", desc.ID)
	assert.NotEmpty(t, desc.Description)

	resp = call(t, conn, "req-5", "plugins.info", PluginInfoParams{ID: "SubtractPlugin"})
	require.False(t, *resp.OK)
	assert.Equal(t, plugin.CodeUnknownPlugin, resp.Error.Code)

	resp = call(t, conn, "req-6", "plugins.info", nil)
	require.False(t, *resp.OK)
	assert.Equal(t, "invalid_params", resp.Error.Code)
}

func TestWebSocketRPCPluginsRun(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "run-1", "plugins.run", RunParams{ID: "MultiplyPlugin", A: int32p(6), B: int32p(7)})
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK)

	var out RunResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(42), out.Value)
	assert.Equal(t, "ws", out.Source)
	assert.NotEmpty(t, out.RunID)
}

func TestWebSocketRPCPluginsRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params RunParams
		code   string
	}{
		{"overflow", RunParams{ID: "AddPlugin", A: int32p(2147483647), B: int32p(1)}, plugin.CodeOverflow},
		{"precision loss", RunParams{ID: "DividePlugin", A: int32p(10), B: int32p(3)}, plugin.CodePrecisionLoss},
		{"divide by zero", RunParams{ID: "DivideWithRoundPlugin", A: int32p(1), B: int32p(0)}, plugin.CodeDivideByZero},
		{"negative exponent", RunParams{ID: "PowPlugin", A: int32p(2), B: int32p(-1)}, plugin.CodeInvalidArgument},
		{"unknown plugin", RunParams{ID: "NoPlugin", A: int32p(1), B: int32p(1)}, plugin.CodeUnknownPlugin},
		{"missing id", RunParams{A: int32p(1), B: int32p(1)}, "invalid_params"},
		{"missing operand", RunParams{ID: "AddPlugin", A: int32p(1)}, "invalid_params"},
	}

	conn := authenticatedConn(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, conn, "run-"+tt.name, "plugins.run", tt.params)
			require.NotNil(t, resp.OK)
			assert.False(t, *resp.OK)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestWebSocketRunCompletedBroadcast(t *testing.T) {
	_, ts := testServer(t)
	runner := dialAndConnect(t, ts)
	watcher := dialAndConnect(t, ts)

	resp := call(t, runner, "run-1", "plugins.run", RunParams{ID: "AddPlugin", A: int32p(40), B: int32p(2)})
	require.True(t, *resp.OK)

	watcher.SetReadDeadline(time.Now().Add(5 * time.Second))
	var evt Frame
	require.NoError(t, watcher.ReadJSON(&evt))
	assert.Equal(t, FrameTypeEvent, evt.Type)
	assert.Equal(t, EventRunCompleted, evt.Event)
	assert.Positive(t, evt.Seq)

	var out RunResponse
	require.NoError(t, json.Unmarshal(evt.Payload, &out))
	assert.Equal(t, "AddPlugin", out.PluginID)
	assert.Equal(t, int32(42), out.Value)
	assert.True(t, out.OK)
}

func TestWebSocketRPCRunsList(t *testing.T) {
	conn := authenticatedConn(t)

	call(t, conn, "r1", "plugins.run", RunParams{ID: "AddPlugin", A: int32p(1), B: int32p(2)})
	call(t, conn, "r2", "plugins.run", RunParams{ID: "DividePlugin", A: int32p(1), B: int32p(0)})
	call(t, conn, "r3", "plugins.run", RunParams{ID: "AddPlugin", A: int32p(3), B: int32p(4)})

	resp := call(t, conn, "list-1", "runs.list", RunsListParams{Plugin: "AddPlugin"})
	require.True(t, *resp.OK)
	var list RunsListResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &list))
	require.Len(t, list.Runs, 2)
	for _, r := range list.Runs {
		assert.Equal(t, "AddPlugin", r.PluginID)
	}

	resp = call(t, conn, "list-2", "runs.list", RunsListParams{FailedOnly: true})
	require.True(t, *resp.OK)
	require.NoError(t, json.Unmarshal(resp.Payload, &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, plugin.CodeDivideByZero, list.Runs[0].ErrorCode)

	resp = call(t, conn, "list-3", "runs.list", RunsListParams{Limit: -1})
	require.False(t, *resp.OK)
	assert.Equal(t, "invalid_params", resp.Error.Code)
}

func TestWebSocketRPCRunsList_HistoryDisabled(t *testing.T) {
	_, ts := testServerWith(t, testExecutor(nil))
	conn := dialAndConnect(t, ts)

	resp := call(t, conn, "list-1", "runs.list", nil)
	require.False(t, *resp.OK)
	assert.Equal(t, "unavailable", resp.Error.Code)
}

func TestWebSocketRPCUnknownMethod(t *testing.T) {
	conn := authenticatedConn(t)

	resp := call(t, conn, "req-6", "nonexistent.method", nil)
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "method_not_found", resp.Error.Code)
}

func TestServerMethods_Sorted(t *testing.T) {
	srv, _ := testServer(t)
	assert.Equal(t, []string{
		"clients.list", "config.get", "config.set", "health",
		"plugins.info", "plugins.list", "plugins.run", "runs.list",
	}, srv.Methods())
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		bind string
		port int
		want string
	}{
		{"loopback", 18790, "127.0.0.1:18790"},
		{"lan", 9999, "0.0.0.0:9999"},
		{"auto", 8080, "0.0.0.0:8080"},
		{"custom", 3000, "0.0.0.0:3000"},
		{"unknown", 5000, "127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.bind, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveBindAddr(config.GatewayConfig{Bind: tt.bind, Port: tt.port}))
		})
	}
}

func TestServerStart(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Port = 0
	cfg.Gateway.Auth.Token = "test-token"

	log := logging.New(nil, "silent")
	hm := hooks.NewManager(log)

	lifecycle := make(chan string, 2)
	for _, ev := range []string{hooks.EventGatewayStart, hooks.EventGatewayStop} {
		hm.On(ev, "test", func(_ context.Context, p hooks.Payload) error {
			lifecycle <- p.Event
			return nil
		})
	}

	srv := New(cfg, testExecutor(nil), log, WithHooks(hm))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case ev := <-lifecycle:
		assert.Equal(t, hooks.EventGatewayStart, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not start")
	}
	assert.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-errCh)
	assert.Equal(t, hooks.EventGatewayStop, <-lifecycle)
}
