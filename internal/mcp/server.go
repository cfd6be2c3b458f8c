package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

const protocolVersion = "2024-11-05"

// maxMessage bounds one line of stdin.
const maxMessage = 1024 * 1024

// Brain is the subset of the knowledge brain exposed as tools.
type Brain interface {
	Think(ctx context.Context, question string) (models.QueryResult, error)
	Learn(ctx context.Context, req models.LearnRequest) (models.LearnResponse, error)
	IngestDocument(ctx context.Context, text, source string) (models.IngestResponse, error)
	Forget(ctx context.Context, id string) (bool, error)
	Stats() models.Stats
}

// Server implements an MCP stdio server backed by an in-process brain.
type Server struct {
	brain   Brain
	version string
	logger  *slog.Logger

	mu  sync.Mutex
	out io.Writer
}

// NewServer creates a new MCP server.
func NewServer(b Brain, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{brain: b, version: version, logger: logger}
}

// Run reads newline-delimited requests from r and writes responses to w.
// It returns when r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	s.out = w
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessage)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(errorResponse(nil, codeParseError, "parse error: "+err.Error()))
			continue
		}
		if resp := s.handleRequest(ctx, &req); resp != nil {
			s.write(resp)
		}
	}
	return scanner.Err()
}

func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	notification := len(req.ID) == 0
	switch req.Method {
	case "initialize":
		var res InitializeResult
		res.ProtocolVersion = protocolVersion
		res.ServerInfo.Name = "knowledge-brain"
		res.ServerInfo.Version = s.version
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: res}
	case "tools/list":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: ToolDefinitions()}}
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]string{}}
	}
	if notification {
		return nil
	}
	return errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method)
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid params: "+err.Error())
	}

	result, err := s.dispatchTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool call failed", "tool", params.Name, "error", err)
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		}}
	}

	text, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("encode result: %s", err))
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: string(text)}},
	}}
}

var errUnknownTool = errors.New("unknown tool")

func (s *Server) dispatchTool(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	switch name {
	case "brain_think":
		var args struct {
			Question string `json:"question"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return s.brain.Think(ctx, args.Question)
	case "brain_learn":
		var args struct {
			Question   string   `json:"question"`
			Answer     string   `json:"answer"`
			Confidence *float64 `json:"confidence"`
			Category   string   `json:"category"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return s.brain.Learn(ctx, models.LearnRequest{
			Question:   args.Question,
			Answer:     args.Answer,
			Confidence: args.Confidence,
			Category:   args.Category,
			Source:     "mcp",
		})
	case "brain_ingest":
		var args struct {
			Text   string `json:"text"`
			Source string `json:"source"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return s.brain.IngestDocument(ctx, args.Text, args.Source)
	case "brain_forget":
		var args struct {
			ID string `json:"id"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		ok, err := s.brain.Forget(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		return models.ForgetResponse{ID: args.ID, Forgotten: ok}, nil
	case "brain_stats":
		return s.brain.Stats(), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownTool, name)
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func (s *Server) write(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "%s\n", data)
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}
