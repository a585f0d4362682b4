package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/domeo/backoffice/api/responses"
	"github.com/domeo/backoffice/pkg/config"
	pkgerrors "github.com/domeo/backoffice/pkg/errors"
	"github.com/domeo/backoffice/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is anything the readiness probe can check.
type Pinger interface {
	Ping(context.Context) error
}

// ReadinessCheck names a dependency; a nil Pinger is reported as "disabled".
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Domeo-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Domeo-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		statuses := make(map[string]string, len(checks))
		for _, check := range checks {
			if check.Pinger == nil {
				statuses[check.Name] = "disabled"
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable").
						WithDetails(map[string]string{"dependency": check.Name}))
				return
			}
			statuses[check.Name] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": statuses})
	}
}
