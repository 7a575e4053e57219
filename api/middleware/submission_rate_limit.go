package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/crushlink-backend/api/responses"
	"github.com/angelmondragon/crushlink-backend/api/validators"
	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/identity"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles one traffic surface per client IP and per
// submitted contact address.
type RateLimitPolicy struct {
	name         string
	window       time.Duration
	ipLimit      int
	contactLimit int
}

func NewRateLimitPolicy(name string, window time.Duration, ipLimit, contactLimit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:         strings.ToLower(strings.TrimSpace(name)),
		window:       window,
		ipLimit:      ipLimit,
		contactLimit: contactLimit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.contactLimit > 0)
}

func (p RateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "submit"
	}
	return p.name
}

func (p RateLimitPolicy) scope(kind, value string) string {
	return p.normalizedName() + ":" + kind + ":" + value
}

// RateLimit enforces the policy's fixed-window counters. Contacts are keyed
// by fingerprint so raw addresses never reach Redis.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.ipLimit > 0 {
				if ip := clientIP(r); ip != "" {
					if !checkLimit(ctx, w, logg, store, policy, "ip", ip, policy.ipLimit) {
						return
					}
				}
			}

			if policy.contactLimit > 0 {
				body, err := validators.ReadBody(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}

				if contact := identity.NormalizeContact(extractContact(body)); contact != "" {
					if !checkLimit(ctx, w, logg, store, policy, "contact", identity.Fingerprint(contact), policy.contactLimit) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func checkLimit(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, store rateLimiterStore, policy RateLimitPolicy, kind, value string, limit int) bool {
	allowed, count, err := store.FixedWindowAllow(ctx, policy.scope(kind, value), int64(limit), policy.window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable, please try again"))
		return false
	}
	if allowed {
		return true
	}
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":          kind,
			"policy":         policy.normalizedName(),
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(policy.window.Seconds()),
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many submissions, slow down"))
	return false
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractContact(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Email
}
