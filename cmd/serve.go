package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/acquire-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pipeline HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := newServeMux(env.Pipeline)

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// stageRunner is the pipeline surface the HTTP handlers need.
type stageRunner interface {
	Canonicalize(ctx context.Context, businessID string) (*pipeline.CanonicalizeResult, error)
	Score(ctx context.Context, businessID string) (*pipeline.ScoreResult, error)
	FollowUps(ctx context.Context, businessID string) (*pipeline.FollowUpResult, error)
	Run(ctx context.Context, businessID string) (*pipeline.RunResult, error)
}

func newServeMux(p stageRunner) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/run", stageHandler(func(ctx context.Context, businessID string) (any, error) {
		return p.Run(ctx, businessID)
	}))
	mux.HandleFunc("POST /api/run/canonicalize", stageHandler(func(ctx context.Context, businessID string) (any, error) {
		return p.Canonicalize(ctx, businessID)
	}))
	mux.HandleFunc("POST /api/run/score", stageHandler(func(ctx context.Context, businessID string) (any, error) {
		return p.Score(ctx, businessID)
	}))
	mux.HandleFunc("POST /api/run/follow-ups", stageHandler(func(ctx context.Context, businessID string) (any, error) {
		return p.FollowUps(ctx, businessID)
	}))

	return mux
}

// stageHandler decodes the request, runs one pipeline stage, and maps stage
// error kinds onto HTTP status codes.
func stageHandler(run func(ctx context.Context, businessID string) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BusinessID string `json:"business_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.BusinessID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "business_id is required"})
			return
		}

		result, err := run(r.Context(), req.BusinessID)
		if err != nil {
			status := statusForKind(pipeline.KindOf(err))
			zap.L().Error("stage request failed",
				zap.String("business_id", req.BusinessID),
				zap.Int("status", status),
				zap.Error(err),
			)
			writeJSON(w, status, map[string]string{
				"error": err.Error(),
				"kind":  string(pipeline.KindOf(err)),
			})
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func statusForKind(kind pipeline.ErrorKind) int {
	switch kind {
	case pipeline.KindNoRecord:
		return http.StatusBadRequest
	case pipeline.KindSchemaValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
