package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lexindex/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Path is where RunHTTP serves the streamable HTTP transport.
const Path = "/mcp"

const shutdownTimeout = 5 * time.Second

// Server exposes the knowledge base to MCP clients.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer registers the tools and resources the ports can back.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "lexindex",
		Title:   "lexindex legal knowledge base",
		Version: Version,
	}
	s := &Server{
		ports:  ports,
		server: mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions(ports)}),
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// instructions tells the client what this server can answer.
func instructions(p *Ports) string {
	var b strings.Builder
	b.WriteString("Searches a legal knowledge base of codes, legislation, case law and doctrine.\n")
	b.WriteString("Ask hybrid_search in French or Arabic. Narrow with category (e.g. codes, jurisprudence) ")
	b.WriteString("or doc_type (TEXTES, JURIS, PROC, TEMPLATES, DOCTRINE) and cite the returned titles.\n")
	if p.Monitor != nil {
		b.WriteString("can_crawl and crawler_health report whether a source may be crawled and its recent health.\n")
	}
	if p.Source != nil {
		b.WriteString("Resource lexindex://sources lists the configured sources.\n")
	}
	if p.Documents != nil {
		b.WriteString("Read lexindex://documents/{id} for the full text of a search hit.\n")
	}
	return b.String()
}

// Run serves MCP over stdio until ctx is cancelled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the HTTP handler: the streamable transport at Path and
// a liveness probe at /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// RunHTTP serves Handler on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp: shutdown: %v", err)
		}
	}()

	logger.Info("mcp: serving streamable HTTP on %s%s", addr, Path)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
