// Package mcpbridge exposes the local tool registry to the backend
// agent over the realtime channel. The direction is inverted relative
// to normal requests: the remote backend is the client here, invoking
// capabilities on this process and receiving structured results.
//
// Two contracts hold at this boundary regardless of what happens
// inside a handler: every inbound request id gets exactly one
// response, and internal failure details never cross the channel.
package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alphahumanxyz/courier/internal/channel"
	"github.com/alphahumanxyz/courier/internal/events"
	"github.com/alphahumanxyz/courier/internal/tools"
)

// ContentBlock is one typed block of a tool result. Only text blocks
// exist today.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the outcome of one tool invocation.
type Result struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// textResult builds a single-block result.
func textResult(text string, isError bool) Result {
	return Result{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: isError,
	}
}

// listToolsRequest is the payload of an mcp:listTools frame.
type listToolsRequest struct {
	RequestID string `json:"requestId"`
}

// listToolsResponse is the payload of an mcp:listToolsResponse frame.
type listToolsResponse struct {
	RequestID string           `json:"requestId"`
	Tools     []map[string]any `json:"tools"`
}

// toolCallRequest is the payload of an mcp:toolCall frame.
type toolCallRequest struct {
	RequestID string       `json:"requestId"`
	ToolCall  toolEnvelope `json:"toolCall"`
}

type toolEnvelope struct {
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
}

// toolResultResponse is the payload of an mcp:toolResult frame.
type toolResultResponse struct {
	RequestID string `json:"requestId"`
	Result    Result `json:"result"`
}

// Server serves tool listings and invocations to the backend agent.
type Server struct {
	socket   *channel.Socket
	registry *tools.Registry
	bus      *events.Bus
	logger   *slog.Logger

	listSub int64
	callSub int64
}

// Config holds the dependencies for a Server.
type Config struct {
	Socket   *channel.Socket
	Registry *tools.Registry
	// Bus receives tool activity events; may be nil.
	Bus    *events.Bus
	Logger *slog.Logger
}

// New creates the bridge and attaches its listeners. Registrations
// survive socket rebinds, so one New per process is enough across
// reconnects.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		socket:   cfg.Socket,
		registry: cfg.Registry,
		bus:      cfg.Bus,
		logger:   logger,
	}
	s.listSub = s.socket.On(channel.EventListTools, s.handleListTools)
	s.callSub = s.socket.On(channel.EventToolCall, s.handleToolCall)
	return s
}

// Close detaches the bridge from the socket.
func (s *Server) Close() {
	s.socket.Off(channel.EventListTools, s.listSub)
	s.socket.Off(channel.EventToolCall, s.callSub)
}

// handleListTools answers a tool listing request. The response always
// carries a tools array: if the registry cannot be enumerated for any
// reason, the backend gets an empty list rather than an error or a
// missing field.
func (s *Server) handleListTools(data json.RawMessage) {
	var req listToolsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warn("malformed listTools request", "error", err)
		return
	}

	tl := s.listTools()
	s.logger.Debug("serving tool list", "request_id", req.RequestID, "count", len(tl))
	s.socket.Emit(channel.EventListToolsResponse, listToolsResponse{
		RequestID: req.RequestID,
		Tools:     tl,
	})
}

// listTools enumerates the registry, degrading to an empty slice (not
// nil, which would marshal as JSON null) on any internal failure.
func (s *Server) listTools() (tl []map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool listing panicked", "panic", r)
			tl = []map[string]any{}
		}
	}()
	tl = s.registry.List()
	if tl == nil {
		tl = []map[string]any{}
	}
	return tl
}

// handleToolCall dispatches one inbound invocation. Execution runs on
// its own goroutine so a slow handler never stalls the channel's read
// loop.
func (s *Server) handleToolCall(data json.RawMessage) {
	var req toolCallRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warn("malformed toolCall request", "error", err)
		return
	}
	go s.execute(req)
}

func (s *Server) execute(req toolCallRequest) {
	name := req.ToolCall.ToolName

	tool := s.registry.Get(name)
	if tool == nil {
		s.logger.Warn("unknown tool requested", "tool", name, "request_id", req.RequestID)
		s.respond(req.RequestID, textResult(fmt.Sprintf("Tool '%s' not found", name), true))
		return
	}

	s.publish(events.KindToolCall, map[string]any{
		"request_id": req.RequestID,
		"tool":       name,
	})
	s.logger.Info("tool call", "tool", name, "request_id", req.RequestID,
		"summary", tool.Describe(req.ToolCall.Arguments))

	start := time.Now()
	out, err := s.invoke(tool, req.ToolCall.Arguments)

	result := textResult(out, false)
	if err != nil {
		result = s.classify(name, err)
	}
	s.respond(req.RequestID, result)

	s.publish(events.KindToolDone, map[string]any{
		"request_id":  req.RequestID,
		"tool":        name,
		"ok":          err == nil,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// invoke runs a handler with panic recovery. A panicking handler must
// degrade to an error result, never crash the session.
func (s *Server) invoke(tool *tools.Tool, args map[string]any) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool handler panicked", "tool", tool.Name, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tool.Handler(context.Background(), args)
}

// classify converts a handler error into the result the backend sees.
// Validation messages are written for the remote agent and pass
// through verbatim; everything else is replaced by a generic message
// with a diagnostic code, and the real cause stays in the local log.
func (s *Server) classify(name string, err error) Result {
	var ve *tools.ValidationError
	if errors.As(err, &ve) {
		return textResult(ve.Message, true)
	}

	ee := &tools.ExecutionError{Tool: name, Err: err}
	s.logger.Error("tool execution failed", "tool", name,
		"code", tools.DiagnosticCode(name), "error", err)
	return textResult(ee.Message(), true)
}

func (s *Server) respond(requestID string, result Result) {
	s.socket.Emit(channel.EventToolResult, toolResultResponse{
		RequestID: requestID,
		Result:    result,
	})
}

func (s *Server) publish(kind string, data map[string]any) {
	s.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceBridge,
		Kind:      kind,
		Data:      data,
	})
}
