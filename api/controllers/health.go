package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/crushlink-backend/api/responses"
	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

const envHeader = "X-Crushlink-Env"

type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and reports 503 naming the ones that
// failed.
func HealthReady(env string, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		failed := map[string]string{}
		for _, name := range names {
			pinger := deps[name]
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				failed[name] = "unavailable"
			}
		}
		if len(failed) > 0 {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "not ready").WithDetails(failed))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
