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
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akrisanov/canvas-mcp/internal/canvas"
	"github.com/akrisanov/canvas-mcp/internal/config"
	"github.com/akrisanov/canvas-mcp/internal/logging"
	"github.com/akrisanov/canvas-mcp/internal/search"
	"github.com/akrisanov/canvas-mcp/internal/tools"
)

// ToolService is the operation surface the server exposes.
type ToolService interface {
	ListCourses(ctx context.Context, state string) (tools.Presentation, error)
	SearchAssignments(ctx context.Context, criteria search.Criteria) (tools.Presentation, error)
	GetAssignmentDetail(ctx context.Context, courseID, assignmentID, format string) (tools.Presentation, error)
	GetAssignmentContent(ctx context.Context, courseID, assignmentID string) (tools.Presentation, error)
}

type Server struct {
	cfg     config.Config
	svc     ToolService
	logger  *slog.Logger
	now     func() time.Time
	in      io.Reader
	out     io.Writer
	writeMu sync.Mutex
}

func NewServer(cfg config.Config, svc ToolService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
		now:    time.Now,
		in:     os.Stdin,
		out:    os.Stdout,
	}
}

// framing is how a stdio message was delimited; replies use the same one.
type framing int

const (
	framingHeader framing = iota
	framingLine
)

// Run serves JSON-RPC over stdio until EOF or ctx is done. Each message is
// either Content-Length framed or a single line of JSON.
func (s *Server) Run(ctx context.Context) error {
	reader := bufio.NewReader(s.in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		payload, fr, err := readMessage(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		resp, ok := s.handlePayload(ctx, payload, "stdio")
		if !ok {
			continue
		}
		if err := s.writeMessage(resp, fr); err != nil {
			return err
		}
	}
}

// handlePayload decodes one message and dispatches it. ok is false when no
// reply is due (notifications and client responses).
func (s *Server) handlePayload(ctx context.Context, payload []byte, transport string) (rpcResponse, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return errorResponse(nil, codeParseError, "parse error", nil), true
	}
	if trimmed[0] == '[' {
		return errorResponse(nil, codeInvalidRequest, "batch requests are not supported", nil), true
	}

	var req rpcRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return errorResponse(nil, codeParseError, "parse error", nil), true
	}
	if req.Method == "" {
		if req.isClientResponse() {
			return rpcResponse{}, false
		}
		return errorResponse(req.ID, codeInvalidRequest, "invalid request", nil), true
	}
	if !req.hasID() {
		s.handleNotification(req)
		return rpcResponse{}, false
	}
	return s.dispatch(ctx, req, transport), true
}

func (s *Server) handleNotification(req rpcRequest) {
	switch req.Method {
	case "notifications/initialized", "initialized":
		s.logger.Info("client initialized")
	default:
		s.logger.Debug("notification ignored", "method", req.Method)
	}
}

// dispatch runs one request. It is shared by the stdio and HTTP transports.
func (s *Server) dispatch(ctx context.Context, req rpcRequest, transport string) rpcResponse {
	requestID := uuid.NewString()
	ctx = canvas.WithRequestID(ctx, requestID)
	logger := s.logger.With("request_id", requestID, "rpc_id", req.idString(), "method", req.Method, "transport", transport)

	start := time.Now()
	defer func() {
		logger.Info("request handled", "duration_ms", time.Since(start).Milliseconds())
	}()

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, s.initializeResult())
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": ToolCatalog()})
	case "tools/call":
		return s.handleToolsCall(ctx, logger, req)
	case "resources/list":
		return resultResponse(req.ID, map[string]any{"resources": []any{}})
	case "resources/templates/list":
		return resultResponse(req.ID, map[string]any{"resourceTemplates": resourceTemplates()})
	case "resources/read":
		return s.handleResourcesRead(ctx, logger, req)
	case "prompts/list":
		return resultResponse(req.ID, map[string]any{"prompts": promptCatalog()})
	case "prompts/get":
		return s.handlePromptsGet(req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "method not found", nil)
	}
}

func (s *Server) initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": s.cfg.Protocol,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{"subscribe": false},
			"prompts":   map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.cfg.ServerName,
			"version": s.cfg.ServerVersion,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, logger *slog.Logger, req rpcRequest) rpcResponse {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid params", nil)
	}

	out, err := s.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		failure := tools.Describe(err)
		if tools.IsValidation(err) {
			logger.Debug("tool rejected input", "tool", params.Name, "error", err)
		} else {
			logger.Warn("tool failed", "tool", params.Name, "code", failure.Code, "error", err)
		}
		return resultResponse(req.ID, map[string]any{
			"isError":           true,
			"content":           []map[string]any{textContent(failure.Message)},
			"structuredContent": map[string]any{"error": failure},
		})
	}

	result := map[string]any{"content": []map[string]any{textContent(out.Text)}}
	if out.Data != nil {
		result["structuredContent"] = out.Data
	}
	return resultResponse(req.ID, result)
}

// CallTool runs the named tool with raw JSON arguments.
func (s *Server) CallTool(ctx context.Context, name string, args json.RawMessage) (tools.Presentation, error) {
	switch name {
	case ToolListCourses:
		var in struct {
			State string `json:"state"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return tools.Presentation{}, err
		}
		return s.svc.ListCourses(ctx, in.State)

	case ToolSearchAssignments:
		var in struct {
			Query            string     `json:"query"`
			DueBefore        string     `json:"dueBefore"`
			DueAfter         string     `json:"dueAfter"`
			IncludeCompleted bool       `json:"includeCompleted"`
			CourseID         flexibleID `json:"courseId"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return tools.Presentation{}, err
		}
		return s.svc.SearchAssignments(ctx, search.Criteria{
			Query:            in.Query,
			DueBefore:        in.DueBefore,
			DueAfter:         in.DueAfter,
			IncludeCompleted: in.IncludeCompleted,
			CourseID:         string(in.CourseID),
		})

	case ToolGetAssignment:
		var in struct {
			CourseID     flexibleID `json:"courseId"`
			AssignmentID flexibleID `json:"assignmentId"`
			FormatType   string     `json:"formatType"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return tools.Presentation{}, err
		}
		return s.svc.GetAssignmentDetail(ctx, string(in.CourseID), string(in.AssignmentID), in.FormatType)

	case ToolGetAssignmentContent:
		var in struct {
			CourseID     flexibleID `json:"courseId"`
			AssignmentID flexibleID `json:"assignmentId"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return tools.Presentation{}, err
		}
		return s.svc.GetAssignmentContent(ctx, string(in.CourseID), string(in.AssignmentID))

	default:
		return tools.Presentation{}, &tools.ValidationError{Message: "unknown tool: " + name}
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, logger *slog.Logger, req rpcRequest) rpcResponse {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid params", nil)
	}
	if strings.TrimSpace(params.URI) == "" {
		return errorResponse(req.ID, codeInvalidParams, "uri is required", nil)
	}
	ref, err := parseResourceURI(params.URI)
	if err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid resource uri", nil)
	}

	var (
		mime string
		text string
		out  tools.Presentation
	)
	switch ref.Kind {
	case kindContentMarkdown:
		mime = "text/markdown"
		out, err = s.svc.GetAssignmentContent(ctx, ref.CourseID, ref.AssignmentID)
		text = out.Text
	case kindContentText:
		mime = "text/plain"
		out, err = s.svc.GetAssignmentDetail(ctx, ref.CourseID, ref.AssignmentID, "plain")
		text = out.Text
	default:
		mime = "application/json"
		out, err = s.svc.GetAssignmentDetail(ctx, ref.CourseID, ref.AssignmentID, "full")
		text = mustJSON(out.Data)
	}
	if err != nil {
		failure := tools.Describe(err)
		logger.Warn("resource read failed", "uri", params.URI, "code", failure.Code, "error", err)
		return errorResponse(req.ID, codeServerError, failure.Message, map[string]any{"error": failure})
	}

	return resultResponse(req.ID, map[string]any{
		"contents": []map[string]any{{
			"uri":      params.URI,
			"mimeType": mime,
			"text":     text,
		}},
	})
}

func (s *Server) handlePromptsGet(req rpcRequest) rpcResponse {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid params", nil)
	}

	switch params.Name {
	case PromptWeeklyPlan:
		days, ok := argInt(params.Arguments, "days", defaultPlanDays)
		if !ok || days < 1 || days > maxPlanDays {
			return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("days must be between 1 and %d", maxPlanDays), nil)
		}
		return resultResponse(req.ID, weeklyPlanPrompt(s.now(), days))

	case PromptExplainAssignment:
		courseID := argString(params.Arguments, "course_id")
		assignmentID := argString(params.Arguments, "assignment_id")
		if courseID == "" {
			return errorResponse(req.ID, codeInvalidParams, "course_id is required", nil)
		}
		if assignmentID == "" {
			return errorResponse(req.ID, codeInvalidParams, "assignment_id is required", nil)
		}
		return resultResponse(req.ID, explainAssignmentPrompt(courseID, assignmentID))

	default:
		return errorResponse(req.ID, codeInvalidParams, "unknown prompt", nil)
	}
}

func (s *Server) writeMessage(resp rpcResponse, fr framing) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if fr == framingLine {
		payload = append(payload, '\n')
		_, err = s.out.Write(payload)
		return err
	}
	if _, err := fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	_, err = s.out.Write(payload)
	return err
}

// readMessage reads one stdio message. A line starting with '{' or '[' before
// any header is taken as a whole newline-delimited message.
func readMessage(reader *bufio.Reader) ([]byte, framing, error) {
	length := -1
	inHeaders := false
	for {
		line, err := reader.ReadString('\n')
		trimmed := strings.TrimSpace(line)
		if err != nil {
			if errors.Is(err, io.EOF) && !inHeaders && isJSONStart(trimmed) {
				return []byte(trimmed), framingLine, nil
			}
			return nil, framingHeader, err
		}
		if !inHeaders {
			if trimmed == "" {
				continue
			}
			if isJSONStart(trimmed) {
				return []byte(trimmed), framingLine, nil
			}
			inHeaders = true
		}
		if trimmed == "" {
			break
		}
		key, value, found := strings.Cut(trimmed, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "content-length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, framingHeader, errors.New("invalid content-length")
			}
			length = n
		}
	}
	if length < 0 {
		return nil, framingHeader, errors.New("missing content-length")
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, framingHeader, err
	}
	return payload, framingHeader, nil
}

func isJSONStart(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

func decodeArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &tools.ValidationError{Message: "invalid arguments"}
	}
	return nil
}

// flexibleID accepts identifiers sent as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// argInt reads an integer argument that may arrive as a number or a string.
// ok is false when the value is present but not an integer.
func argInt(args map[string]any, key string, fallback int) (int, bool) {
	raw, present := args[key]
	if !present || raw == nil {
		return fallback, true
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		if strings.TrimSpace(v) == "" {
			return fallback, true
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func textContent(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

func (r rpcRequest) hasID() bool {
	trimmed := strings.TrimSpace(string(r.ID))
	return trimmed != "" && trimmed != "null"
}

// isClientResponse reports whether the message answers a server request.
func (r rpcRequest) isClientResponse() bool {
	return len(r.Result) > 0 || len(r.Error) > 0
}

func (r rpcRequest) idString() string {
	if !r.hasID() {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.ID, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(r.ID))
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func resultResponse(id json.RawMessage, result any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message, Data: data}}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}
