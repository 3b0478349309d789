package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0xTanzim/rushtpl"
)

type Server struct {
	engine *rushtpl.Engine
}

func NewServer(engine *rushtpl.Engine) *Server {
	return &Server{engine: engine}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Path
	if page == "/" {
		page = "/index"
	}

	data := map[string]any{
		"title":       "rushtpl Auto-Reload Demo",
		"currentTime": time.Now(),
		"year":        time.Now().Year(),
		"user": map[string]any{
			"name":     "Admin User",
			"loggedIn": true,
		},
		"posts": []map[string]any{
			{"title": "Getting Started", "author": "Docs Team", "date": "2025-01-15"},
			{"title": "Components and Slots", "author": "Docs Team", "date": "2025-01-20"},
			{"title": "Layouts in Frontmatter", "author": "Docs Team", "date": "2025-01-25"},
		},
	}

	var opts []rushtpl.RenderOption
	if locale := r.URL.Query().Get("locale"); locale != "" {
		opts = append(opts, rushtpl.WithLocale(locale))
	}

	out, err := s.engine.RenderTemplateString(r.Context(), page[1:], data, opts...)
	if errors.Is(err, rushtpl.ErrNotFound) && page != "/index" {
		out, err = s.engine.RenderTemplateString(r.Context(), "index", data, opts...)
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.engine.Stats()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"running","parses":%d,"hits":%d,"misses":%d}`, st.Parses, st.Hits, st.Misses)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := rushtpl.ConfigFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	cfg.WatchInterval = 500 * time.Millisecond
	engine, err := rushtpl.New(cfg, rushtpl.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	server := NewServer(engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		if err := engine.Watch(ctx); err != nil {
			logger.Warn("watch stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", server.handlePage)
	mux.HandleFunc("/status", server.handleStatus)
	srv := &http.Server{Addr: ":8080", Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	fmt.Println("rushtpl server running at http://localhost:8080")
	fmt.Printf("Templates directory: %s (edits are picked up automatically)\n", cfg.TemplatesDir)

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
