package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/soyeahso/plugcat/internal/store"
)

const maxRequestBody = 64 << 10

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated RPC handler populates all fields.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Clients  int    `json:"clients,omitempty"`
	Plugins  int    `json:"plugins,omitempty"`
	UptimeMs int64  `json:"uptimeMs,omitempty"`
	History  bool   `json:"history,omitempty"`
}

type errorBody struct {
	Error ErrorShape `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: ErrorShape{Code: code, Message: message}})
}

// httpStatus maps a plugin error code to an HTTP status.
func httpStatus(code string) int {
	switch code {
	case plugin.CodeUnknownPlugin:
		return http.StatusNotFound
	case plugin.CodeInvalidArgument:
		return http.StatusBadRequest
	case plugin.CodeOverflow, plugin.CodePrecisionLoss, plugin.CodeDivideByZero:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": ErrorShape{Code: "not_found", Message: "not found"},
		"path":  r.URL.Path,
	})
}

// requireAuth guards a route with the gateway credentials, passed as
// "Authorization: Bearer <token-or-password>".
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many failed auth attempts")
			return
		}
		res := Authorize(s.auth, authFromRequest(r))
		if !res.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="plugcat"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", res.Reason)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PluginsListResponse{Plugins: s.exec.Registry().Descriptors()})
}

func (s *Server) handlePluginInfo(w http.ResponseWriter, r *http.Request) {
	desc, err := s.exec.Registry().Descriptor(r.PathValue("id"))
	if err != nil {
		code := plugin.Code(err)
		writeError(w, httpStatus(code), code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleRunPlugin(w http.ResponseWriter, r *http.Request) {
	var p RunParams
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "invalid request body: "+err.Error())
		return
	}
	if p.A == nil || p.B == nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "operands a and b are required")
		return
	}

	out, err := s.runPlugin(r.Context(), r.PathValue("id"), *p.A, *p.B, "http")
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, out)
	case out.Error != nil:
		writeJSON(w, httpStatus(out.Error.Code), out)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "cancelled", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, plugin.CodeInternal, err.Error())
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := RunsListParams{Plugin: q.Get("plugin")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_params", "limit must be a positive integer")
			return
		}
		p.Limit = n
	}
	if v := q.Get("failed"); v != "" {
		failed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_params", "failed must be a boolean")
			return
		}
		p.FailedOnly = failed
	}

	runs, err := s.listRuns(p)
	if errors.Is(err, errHistoryDisabled) {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, plugin.CodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RunsListResponse{Runs: runs})
}

var errHistoryDisabled = errors.New("run history is disabled")

func (s *Server) listRuns(p RunsListParams) ([]store.Run, error) {
	history := s.exec.History()
	if history == nil {
		return nil, errHistoryDisabled
	}
	limit := p.Limit
	if limit == 0 {
		limit = s.cfg.History.Limit
	}
	runs, err := history.List(store.Filter{PluginID: p.Plugin, FailedOnly: p.FailedOnly, Limit: limit})
	if runs == nil {
		runs = []store.Run{}
	}
	return runs, err
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything an RPC handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.RespondErrorShape(ErrorShape{Code: code, Message: message})
}

// RespondErrorShape sends an error response with details.
func (rc *RequestContext) RespondErrorShape(shape ErrorShape) {
	if err := rc.Client.RespondError(rc.Frame.ID, shape); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error response")
	}
}

// Params unmarshals the request params into target. Absent params leave
// target untouched.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
