package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/crushlink-backend/api/controllers"
	"github.com/angelmondragon/crushlink-backend/api/middleware"
	"github.com/angelmondragon/crushlink-backend/internal/crushes"
	"github.com/angelmondragon/crushlink-backend/pkg/config"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

// RedisStore is the Redis surface the HTTP layer needs.
type RedisStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// NewRouter builds the API. redisStore may be nil, which disables the
// Redis-backed middleware; metricsHandler may be nil to omit /metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisStore RedisStore,
	crushService crushes.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSAllowedOrigins),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisStore != nil {
		readiness["redis"] = redisStore
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, readiness))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Post("/validate", controllers.PublicValidate(cfg.Submission.MaxDisplayName, logg))
	})

	var (
		limiter     func(http.Handler) http.Handler
		idempotency func(http.Handler) http.Handler
	)
	if redisStore != nil {
		policy := middleware.NewRateLimitPolicy(
			"submit",
			cfg.RateLimit.SubmitWindow,
			cfg.RateLimit.SubmitIPLimit,
			cfg.RateLimit.SubmitContactLimit,
		)
		limiter = middleware.RateLimit(policy, redisStore, logg)
		idempotency = middleware.Idempotency(redisStore, cfg.Submission.IdempotencyTTL, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter, idempotency)
			}
			r.Post("/crushes", controllers.SubmitCrush(crushService, logg))
		})
	})

	return r
}
