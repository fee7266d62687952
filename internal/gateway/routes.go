package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/soyeahso/plugcat/internal/config"
	"github.com/soyeahso/plugcat/internal/plugin"
)

// safeConfigPrefixes lists config paths readable and writable over RPC.
// Everything else, credentials included, is denied.
var safeConfigPrefixes = []string{
	"logging",
	"history.limit",
	"gateway.port",
	"gateway.bind",
	"gateway.customBindHost",
	"gateway.allowedOrigins",
}

func isAllowedConfigPath(key string) bool {
	for _, prefix := range safeConfigPrefixes {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /plugins", s.requireAuth(s.handleListPlugins))
	mux.HandleFunc("GET /plugins/{id}", s.requireAuth(s.handlePluginInfo))
	mux.HandleFunc("POST /plugins/{id}/run", s.requireAuth(s.handleRunPlugin))
	mux.HandleFunc("GET /runs", s.requireAuth(s.handleListRuns))

	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("plugins.list", s.rpcPluginsList)
	s.Handle("plugins.info", s.rpcPluginsInfo)
	s.Handle("plugins.run", s.rpcPluginsRun)
	s.Handle("runs.list", s.rpcRunsList)
	s.Handle("clients.list", s.rpcClientsList)
	s.Handle("config.get", s.rpcConfigGet)
	s.Handle("config.set", s.rpcConfigSet)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		Plugins:  s.exec.Registry().Count(),
		UptimeMs: s.Uptime().Milliseconds(),
		History:  s.exec.History() != nil,
	})
}

func (s *Server) rpcPluginsList(rc *RequestContext) {
	rc.Respond(PluginsListResponse{Plugins: s.exec.Registry().Descriptors()})
}

func (s *Server) rpcPluginsInfo(rc *RequestContext) {
	var p PluginInfoParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.ID == "" {
		rc.RespondError("invalid_params", "id is required")
		return
	}

	desc, err := s.exec.Registry().Descriptor(p.ID)
	if err != nil {
		rc.RespondError(plugin.Code(err), err.Error())
		return
	}
	rc.Respond(desc)
}

func (s *Server) rpcPluginsRun(rc *RequestContext) {
	var p RunParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.ID == "" {
		rc.RespondError("invalid_params", "id is required")
		return
	}
	if p.A == nil || p.B == nil {
		rc.RespondError("invalid_params", "operands a and b are required")
		return
	}

	if rc.Client != nil {
		rc.Client.runs.Add(1)
	}
	out, err := s.runPlugin(rc.Ctx, p.ID, *p.A, *p.B, "ws")
	if err != nil {
		shape := ErrorShape{Code: plugin.CodeInternal, Message: err.Error()}
		if out.Error != nil {
			shape = *out.Error
			shape.Details = out
		}
		rc.RespondErrorShape(shape)
		return
	}
	rc.Respond(out)
}

func (s *Server) rpcClientsList(rc *RequestContext) {
	rc.Respond(ClientsListResponse{Clients: s.clients.List()})
}

func (s *Server) rpcRunsList(rc *RequestContext) {
	var p RunsListParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Limit < 0 {
		rc.RespondError("invalid_params", "limit must not be negative")
		return
	}

	runs, err := s.listRuns(p)
	if errors.Is(err, errHistoryDisabled) {
		rc.RespondError("unavailable", err.Error())
		return
	}
	if err != nil {
		rc.RespondError(plugin.CodeInternal, err.Error())
		return
	}
	rc.Respond(RunsListResponse{Runs: runs})
}

type configGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	path, ok := s.configPath(rc, p.Key, "access denied for config path: ")
	if !ok {
		return
	}

	s.mu.RLock()
	val, found := config.GetValueAtPath(s.configRaw, path)
	s.mu.RUnlock()

	if !found {
		rc.RespondError("not_found", "key not found: "+p.Key)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

type configSetParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) rpcConfigSet(rc *RequestContext) {
	var p configSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	path, ok := s.configPath(rc, p.Key, "cannot modify config path: ")
	if !ok {
		return
	}

	s.mu.Lock()
	config.SetValueAtPath(s.configRaw, path, p.Value)
	s.mu.Unlock()

	rc.Respond(map[string]any{"key": p.Key, "value": p.Value})
}

// configPath validates key against the allowlist and splits it. On failure
// it has already responded.
func (s *Server) configPath(rc *RequestContext, key, deniedMsg string) ([]string, bool) {
	if key == "" {
		rc.RespondError("invalid_params", "key is required")
		return nil, false
	}
	if !isAllowedConfigPath(key) {
		rc.RespondError("forbidden", deniedMsg+key)
		return nil, false
	}
	path, err := config.ParseConfigPath(key)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return nil, false
	}
	return path, true
}
