package gateway

import (
	"encoding/json"

	"github.com/soyeahso/plugcat/internal/calc"
	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/soyeahso/plugcat/internal/store"
)

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Frame is the base envelope for all WebSocket messages.
// The Type field discriminates between request, response, and event frames.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	// Error (response only)
	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the standard error format in response frames.
type ErrorShape struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	RetryAfter int    `json:"retryAfterMs,omitempty"`
}

// ConnectParams are sent by the client in the initial "connect" request.
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
	Caps        []string     `json:"caps,omitempty"`
	Locale      string       `json:"locale,omitempty"`
	UserAgent   string       `json:"userAgent,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
	Mode        string `json:"mode"` // "cli" | "app"
	InstanceID  string `json:"instanceId,omitempty"`
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK is the server's response payload after successful authentication.
type HelloOK struct {
	Protocol int          `json:"protocol"`
	Server   ServerInfo   `json:"server"`
	Features Features     `json:"features"`
	Policy   ServerPolicy `json:"policy"`
}

// ServerInfo identifies the gateway server.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Host    string `json:"host,omitempty"`
	ConnID  string `json:"connId"`
}

// Features advertises available RPC methods and events.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// ServerPolicy communicates protocol limits to the client.
type ServerPolicy struct {
	MaxPayload       int `json:"maxPayload"`
	MaxBufferedBytes int `json:"maxBufferedBytes"`
	TickIntervalMs   int `json:"tickIntervalMs"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		OK:      &ok,
		Payload: raw,
	}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	ok := false
	return Frame{
		Type:  FrameTypeResponse,
		ID:    id,
		OK:    &ok,
		Error: &errShape,
	}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}

// Protocol version supported by this server.
const ProtocolVersion = 1

// Event names pushed by the gateway.
const (
	EventConnectChallenge = "connect.challenge"
	EventRunCompleted     = "run.completed"
)

// serverEvents lists the events advertised in HelloOK.
var serverEvents = []string{EventConnectChallenge, EventRunCompleted}

// PluginsListResponse is the payload of plugins.list and GET /plugins.
type PluginsListResponse struct {
	Plugins []plugin.Descriptor `json:"plugins"`
}

// PluginInfoParams selects a plugin for plugins.info.
type PluginInfoParams struct {
	ID string `json:"id"`
}

// RunParams are the operands of plugins.run. Operands are pointers so a
// missing operand can be told apart from zero.
type RunParams struct {
	ID string `json:"id,omitempty"`
	A  *int32 `json:"a"`
	B  *int32 `json:"b"`
}

// RunResponse describes one plugin invocation. It is returned by
// plugins.run and POST /plugins/{id}/run, and is the payload of the
// run.completed event.
type RunResponse struct {
	RunID      string      `json:"runId"`
	PluginID   string      `json:"pluginId"`
	A          int32       `json:"a"`
	B          int32       `json:"b"`
	OK         bool        `json:"ok"`
	Value      int32       `json:"value"`
	Error      *ErrorShape `json:"error,omitempty"`
	DurationUs int64       `json:"durationUs"`
	Source     string      `json:"source"`
}

// NewRunResponse describes an executor result.
func NewRunResponse(res *calc.Result, source string) RunResponse {
	out := RunResponse{
		RunID:      res.RunID,
		PluginID:   res.PluginID,
		A:          res.A,
		B:          res.B,
		OK:         res.Err == nil,
		Value:      res.Value,
		DurationUs: res.Duration.Microseconds(),
		Source:     source,
	}
	if res.Err != nil {
		out.Error = &ErrorShape{Code: plugin.Code(res.Err), Message: res.Err.Error()}
	}
	return out
}

// ClientsListResponse is the result of clients.list.
type ClientsListResponse struct {
	Clients []ClientSummary `json:"clients"`
}

// RunsListParams filters runs.list.
type RunsListParams struct {
	Plugin     string `json:"plugin,omitempty"`
	FailedOnly bool   `json:"failedOnly,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// RunsListResponse is the payload of runs.list and GET /runs.
type RunsListResponse struct {
	Runs []store.Run `json:"runs"`
}
