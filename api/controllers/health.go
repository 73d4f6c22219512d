package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/circularlabs/rfid-trace/api/responses"
	"github.com/circularlabs/rfid-trace/pkg/config"
	pkgerrors "github.com/circularlabs/rfid-trace/pkg/errors"
	"github.com/circularlabs/rfid-trace/pkg/logger"
)

// Pinger is any dependency the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RFIDTrace-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every wired dependency answers a ping.
// Nil pingers are treated as not configured and skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RFIDTrace-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]Pinger{
			"db":    dbP,
			"redis": redisP,
		}
		status := map[string]string{}
		for name, pinger := range checks {
			if pinger == nil {
				status[name] = "skipped"
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				status[name] = "down"
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unreachable").WithDetails(status))
				return
			}
			status[name] = "ok"
		}
		responses.WriteSuccess(w, status)
	}
}
