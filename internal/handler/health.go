package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/avasquez/leadqual/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthzHandler probes the dependencies concurrently. The store probe is
// a cheap list; the scoring service is not probed (one qualification call
// per record is the only traffic the completion API should see).
func healthzHandler(store port.CustomerStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			if store == nil {
				checks["store"] = "not configured"
				return nil
			}
			if _, err := store.List(gCtx); err != nil {
				checks["store"] = "error: " + err.Error()
				return err
			}
			checks["store"] = "ok"
			return nil
		})

		if err := g.Wait(); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Checks: checks})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Checks: checks})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
	}
}
