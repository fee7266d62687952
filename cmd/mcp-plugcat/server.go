package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/soyeahso/plugcat/internal/calc"
	"github.com/soyeahso/plugcat/internal/logging"
	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/soyeahso/plugcat/internal/version"
)

const protocolVersion = "2024-11-05"

// MCPServer exposes every catalog plugin as an MCP tool over
// newline-delimited JSON-RPC.
type MCPServer struct {
	exec *calc.Executor
	log  *logging.Logger

	mu  sync.Mutex
	out *bufio.Writer
}

func NewMCPServer(exec *calc.Executor, log *logging.Logger, w io.Writer) *MCPServer {
	return &MCPServer{
		exec: exec,
		log:  log.Sub("mcp"),
		out:  bufio.NewWriter(w),
	}
}

// Serve handles requests from r until EOF or ctx is done.
func (s *MCPServer) Serve(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	s.log.Info().Msg("listening for requests on stdin")

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.log.Trace().Bytes("request", line).Msg("received")
		s.handleRequest(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	s.log.Info().Msg("input closed, shutting down")
	return nil
}

func (s *MCPServer) handleRequest(ctx context.Context, line []byte) {
	var req JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn().Err(err).Msg("parse error")
		s.sendError(nil, codeParseError, "Parse error", err.Error())
		return
	}

	// Notifications carry no id and are never answered.
	if req.ID == nil {
		s.log.Debug().Str("method", req.Method).Msg("notification")
		return
	}

	switch req.Method {
	case "initialize":
		s.sendResponse(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    Capabilities{Tools: map[string]any{}},
			ServerInfo:      ServerInfo{Name: "mcp-plugcat", Version: version.Version},
		})
	case "tools/list":
		s.sendResponse(req.ID, ListToolsResult{Tools: s.tools()})
	case "tools/call":
		s.handleCallTool(ctx, req)
	default:
		s.log.Debug().Str("method", req.Method).Msg("unknown method")
		s.sendError(req.ID, codeMethodNotFound, "Method not found", fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

func (s *MCPServer) tools() []Tool {
	lo, hi := int64(math.MinInt32), int64(math.MaxInt32)
	operand := func(desc string) Property {
		return Property{Type: "integer", Description: desc, Minimum: &lo, Maximum: &hi}
	}

	descs := s.exec.Registry().Descriptors()
	tools := make([]Tool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, Tool{
			Name:        d.ID,
			Description: fmt.Sprintf("%s (v%s): %s", d.Name, d.Version, d.Description),
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"a": operand("First 32-bit signed operand"),
					"b": operand("Second 32-bit signed operand"),
				},
				Required: []string{"a", "b"},
			},
		})
	}
	return tools
}

func (s *MCPServer) handleCallTool(ctx context.Context, req JSONRPCRequest) {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, codeInvalidParams, "Invalid params", err.Error())
		return
	}
	if !s.exec.Registry().Has(params.Name) {
		s.sendError(req.ID, codeInvalidParams, "Unknown tool", fmt.Sprintf("Tool not found: %s", params.Name))
		return
	}

	var args RunArguments
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			s.sendError(req.ID, codeInvalidParams, "Invalid arguments", err.Error())
			return
		}
	}
	if args.A == nil || args.B == nil {
		s.sendError(req.ID, codeInvalidParams, "Invalid arguments", "operands a and b are required")
		return
	}

	res, err := s.exec.Run(ctx, calc.Request{PluginID: params.Name, A: *args.A, B: *args.B, Source: "mcp"})
	if res == nil {
		s.sendResponse(req.ID, errorResult(err))
		return
	}
	if res.Err != nil {
		s.sendResponse(req.ID, errorResult(res.Err))
		return
	}
	s.sendResponse(req.ID, ToolResult{
		Content: []ContentItem{{Type: "text", Text: fmt.Sprint(res.Value)}},
	})
}

func errorResult(err error) ToolResult {
	code := plugin.Code(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = "cancelled"
	}
	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: fmt.Sprintf("%s: %v", code, err)}},
		IsError: true,
	}
}

func (s *MCPServer) sendResponse(id any, result any) {
	s.write(JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *MCPServer) sendError(id any, code int, message string, data any) {
	s.write(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func (s *MCPServer) write(resp JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("marshaling response")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Write(data)
	s.out.WriteByte('\n')
	if err := s.out.Flush(); err != nil {
		s.log.Error().Err(err).Msg("writing response")
	}
}
