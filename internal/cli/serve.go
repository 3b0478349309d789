package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/0xTanzim/rushtpl"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve templates over HTTP for previewing",
		Long: `serve renders GET /{name} with the query parameters as data, so
/blog/post?title=Hello renders the "blog/post" template with title=Hello.
Use ?locale=xx to pick a locale.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, cleanup, err := g.engine(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			log := g.logger(cmd.ErrOrStderr())

			if watch {
				go func() {
					if err := e.Watch(ctx); err != nil {
						log.Warn("watcher stopped", "error", err)
					}
				}()
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           newPreviewRouter(e),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.Info("preview server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&watch, "watch", false, "drop cached templates when their files change")
	return cmd
}

func newPreviewRouter(e *rushtpl.Engine) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/_stats", func(w http.ResponseWriter, req *http.Request) {
		st := e.Stats()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(
			"parses " + itoa(st.Parses) + "\nhits " + itoa(st.Hits) + "\nmisses " + itoa(st.Misses) + "\n"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/{name:.+}", func(w http.ResponseWriter, req *http.Request) {
		name := mux.Vars(req)["name"]
		data := make(map[string]any)
		var opts []rushtpl.RenderOption
		for k, v := range req.URL.Query() {
			if k == "locale" && len(v) > 0 {
				opts = append(opts, rushtpl.WithLocale(v[0]))
				continue
			}
			if len(v) == 1 {
				data[k] = v[0]
			} else {
				data[k] = v
			}
		}

		out, err := e.RenderTemplateString(req.Context(), name, data, opts...)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, rushtpl.ErrNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(out))
	}).Methods(http.MethodGet)
	return r
}
