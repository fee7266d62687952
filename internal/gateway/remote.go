package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/plugcat/internal/version"
)

// RemoteError is an error response returned by a gateway.
type RemoteError struct {
	Shape ErrorShape
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Shape.Code, e.Shape.Message)
}

// Remote is an authenticated RPC connection to a running gateway.
type Remote struct {
	conn  *websocket.Conn
	hello HelloOK
}

// DialRemote connects to url (ws:// or wss://) and performs the handshake.
func DialRemote(ctx context.Context, url string, auth ConnectAuth) (*Remote, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}
	r := &Remote{conn: conn}

	if err := r.handshake(ctx, auth); err != nil {
		conn.Close()
		return nil, err
	}
	return r, nil
}

func (r *Remote) handshake(ctx context.Context, auth ConnectAuth) error {
	r.setDeadline(ctx)

	var challenge Frame
	if err := r.conn.ReadJSON(&challenge); err != nil {
		return fmt.Errorf("reading challenge: %w", err)
	}
	if challenge.Event != EventConnectChallenge {
		return fmt.Errorf("expected %s, got %q", EventConnectChallenge, challenge.Event)
	}

	var hello HelloOK
	err := r.call(ctx, "connect", ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client: ClientInfo{
			ID:       "plugcat-cli",
			Version:  version.Version,
			Platform: "cli",
			Mode:     "cli",
		},
		Auth: &auth,
	}, &hello)
	if err != nil {
		return err
	}
	r.hello = hello
	return nil
}

// Hello returns the server's handshake response.
func (r *Remote) Hello() HelloOK {
	return r.hello
}

// Call invokes method and decodes the response payload into out.
// Event frames received while waiting are discarded.
func (r *Remote) Call(ctx context.Context, method string, params, out any) error {
	return r.call(ctx, method, params, out)
}

func (r *Remote) call(ctx context.Context, method string, params, out any) error {
	id := uuid.New().String()
	req, err := NewRequest(id, method, params)
	if err != nil {
		return err
	}

	r.setDeadline(ctx)
	if err := r.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	for {
		var f Frame
		if err := r.conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("reading %s response: %w", method, err)
		}
		if f.Type != FrameTypeResponse || f.ID != id {
			continue
		}
		if f.OK == nil || !*f.OK {
			shape := ErrorShape{Code: "unknown", Message: "request failed"}
			if f.Error != nil {
				shape = *f.Error
			}
			return &RemoteError{Shape: shape}
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(f.Payload, out)
	}
}

func (r *Remote) setDeadline(ctx context.Context) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	r.conn.SetReadDeadline(deadline)
	r.conn.SetWriteDeadline(deadline)
}

// Close sends a close frame and closes the connection.
func (r *Remote) Close() error {
	r.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return r.conn.Close()
}
