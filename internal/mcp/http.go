package mcp

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxHTTPBodySize = 1 << 20

// RunHTTP serves the streamable HTTP transport until ctx is done.
func (s *Server) RunHTTP(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler returns the MCP endpoint mounted at the configured path.
func (s *Server) Handler() http.Handler {
	path := s.cfg.HTTPPath
	if path == "" {
		path = "/mcp"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleHTTPMCP)
	return mux
}

func (s *Server) handleHTTPMCP(w http.ResponseWriter, r *http.Request) {
	if !s.isHTTPAuthorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !s.isOriginAllowed(r) {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	mode, ok := replyMode(r.Header.Get("Accept"))
	if !ok {
		http.Error(w, "not acceptable", http.StatusNotAcceptable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxHTTPBodySize+1))
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxHTTPBodySize {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp, reply := s.handlePayload(r.Context(), body, "http")
	if !reply {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeHTTPRPCResponse(w, resp, mode)
}

type httpReplyMode int

const (
	replyJSON httpReplyMode = iota
	replyEventStream
)

// replyMode picks JSON unless the client accepts only event streams.
func replyMode(accept string) (httpReplyMode, bool) {
	accept = strings.ToLower(strings.TrimSpace(accept))
	switch {
	case accept == "",
		strings.Contains(accept, "*/*"),
		strings.Contains(accept, "application/json"):
		return replyJSON, true
	case strings.Contains(accept, "text/event-stream"):
		return replyEventStream, true
	default:
		return replyJSON, false
	}
}

func writeHTTPRPCResponse(w http.ResponseWriter, resp rpcResponse, mode httpReplyMode) {
	payload, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}

	if mode == replyEventStream {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		var frame bytes.Buffer
		frame.WriteString("event: message\ndata: ")
		frame.Write(payload)
		frame.WriteString("\n\n")
		_, _ = w.Write(frame.Bytes())
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) isHTTPAuthorized(r *http.Request) bool {
	expected := s.cfg.HTTPAuthToken
	if expected == "" {
		return true
	}
	provided, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// isOriginAllowed admits requests without an Origin header (non-browser
// clients) and browser requests whose origin is on the allow-list.
func (s *Server) isOriginAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
