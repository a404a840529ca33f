// Package server exposes formatted books over HTTP: page geometry, rendered
// pages, text, table of contents and link resolution.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"reflow/reader"
	"reflow/state"
)

// Server serves books found under root directory. Books are addressed by
// slash separated path relative to root (archives included, see book.Open).
type Server struct {
	ctx    context.Context // carries program environment for book loading
	root   string
	router chi.Router
	cache  *sessionCache
	log    *zap.Logger
}

// New creates server for books under root.
func New(ctx context.Context, root string, log *zap.Logger) (*Server, error) {
	env := state.EnvFromContext(ctx)

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if fi, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("unable to access books directory: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("books root is not a directory: %s", root)
	}

	s := &Server{ctx: ctx, root: root, log: log}
	s.cache = newSessionCache(env.Cfg.Server.CacheSize, s.openBook)
	s.setupRoutes(env.Cfg.Server.Token.Reveal())
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes(token string) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if len(token) > 0 {
			r.Use(requireToken(token, s.log))
		}
		r.Route("/api/book", func(r chi.Router) {
			r.Get("/", s.handleBook)
			r.Get("/toc", s.handleToc)
			r.Get("/resolve", s.handleResolve)
			r.Get("/reparse", s.handleReparse)
			r.Route("/pages/{page}", func(r chi.Router) {
				r.Get("/", s.handlePage)
				r.Get("/image", s.handlePageImage)
				r.Get("/text", s.handlePageText)
			})
		})
	})
	s.router = r
}

// bookPath maps request path of a book into file system, refusing paths
// leaving root.
func (s *Server) bookPath(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if len(rel) == 0 {
		return "", errors.New("book path is required")
	}
	clean := filepath.Join(s.root, filepath.FromSlash(rel))
	if r, err := filepath.Rel(s.root, clean); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("book path is outside of library: %s", rel)
	}
	return clean, nil
}

func (s *Server) openBook(path string) (*reader.Session, error) {
	return reader.Open(s.ctx, path, s.log)
}

// Close releases cached books.
func (s *Server) Close() {
	s.cache.close()
}

// Run serves books under root until ctx is canceled.
func Run(ctx context.Context, root string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)
	conf := env.Cfg.Server

	s, err := New(ctx, root, log)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:         conf.Listen,
		Handler:      s,
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
		ErrorLog:     zap.NewStdLog(log),
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("listen", conf.Listen), zap.String("root", s.root), zap.Bool("auth", len(conf.Token) > 0))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return fmt.Errorf("unable to stop server: %w", err)
	}
	log.Info("Server stopped", zap.Duration("uptime", env.Uptime()))
	return nil
}
