package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/report"
	"github.com/ginjaninja78/donation-ledger/internal/runner"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server",
	Long: `The serve command accepts run triggers over HTTP:

  POST /runs/import
  POST /runs/acknowledge
  POST /runs/rollup?year=2024
  GET  /runs        last outcome of each run
  GET  /health

Triggered runs email their summary to report.recipients. A trigger that
arrives while another run is in progress is answered with 409 Conflict.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		r := runner.New(zap.L())
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(ctx, r, env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		err = srv.ListenAndServe()

		// The ledger closes when this returns; triggered runs must finish first.
		zap.L().Info("waiting for in-flight run", zap.String("job", r.Current()))
		r.Wait()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// jobSource builds the job for a trigger request.
type jobSource interface {
	runImport(ctx context.Context, opts report.Options) error
	runAcknowledge(ctx context.Context, opts report.Options) error
	runRollup(ctx context.Context, year int, opts report.Options) error
}

// newRouter builds the trigger API. Runs use baseCtx, not the request
// context, so they outlive the request that started them.
func newRouter(baseCtx context.Context, r *runner.Runner, src jobSource) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)

	mux.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "running": r.Current()})
	})

	mux.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, r.Last())
	})

	mux.Post("/runs/{job}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "job")

		var job runner.Job
		switch name {
		case "import":
			job = func(ctx context.Context) error { return src.runImport(ctx, scheduledOptions) }
		case "acknowledge":
			job = func(ctx context.Context) error { return src.runAcknowledge(ctx, scheduledOptions) }
		case "rollup":
			year := 0
			if y := req.URL.Query().Get("year"); y != "" {
				n, err := strconv.Atoi(y)
				if err != nil || n < 1900 {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "year must be a four digit year"})
					return
				}
				year = n
			}
			job = func(ctx context.Context) error { return src.runRollup(ctx, year, scheduledOptions) }
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown run " + name})
			return
		}

		if err := r.Start(baseCtx, name, job); err != nil {
			if errors.Is(err, runner.ErrBusy) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "busy", "running": r.Current()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		zap.L().Info("run triggered", zap.String("job", name), zap.String("request_id", middleware.GetReqID(req.Context())))
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "job": name})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
