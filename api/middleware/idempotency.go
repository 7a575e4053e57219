package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/crushlink-backend/api/responses"
	"github.com/angelmondragon/crushlink-backend/api/validators"
	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/crushlink-backend/pkg/redis"
)

const (
	idempotencyHeader     = "Idempotency-Key"
	defaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKeyLen  = 128
)

type routeMatcher func(string) bool

type idempotencyRule struct {
	method  string
	matcher routeMatcher
}

var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, matcher: matchExact("/api/v1/crushes")},
}

type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency replays the stored response when a client retries a covered
// request with the same Idempotency-Key. The header is optional; requests
// without it pass straight through. Server failures are never stored so a
// retry after a 5xx reaches the handler again.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempotencyKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if idempotencyKey == "" || !covered(r.Method, routePattern(r)) {
				next.ServeHTTP(w, r)
				return
			}
			if len(idempotencyKey) > maxIdempotencyKeyLen {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := validators.ReadBody(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			requestHash := hashBody(body)
			key := store.IdempotencyKey(r.Method+"|"+r.URL.Path, idempotencyKey)

			stored, getErr := store.Get(r.Context(), key)
			if getErr != nil && !errors.Is(getErr, redis.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "idempotency store unavailable, please try again"))
				return
			}
			if stored != "" {
				record, decodeErr := decodeRecord(stored)
				if decodeErr != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "idempotency store unavailable, please try again"))
					return
				}
				if record.RequestHash != requestHash {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				w.Header().Set("Idempotent-Replayed", "true")
				writeStoredResponse(w, record)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := defaultStatus(rec.status)
			if status >= http.StatusInternalServerError {
				return
			}
			record := idempotencyRecord{
				Status:      status,
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: requestHash,
			}
			if ct := rec.Header().Get("Content-Type"); ct != "" {
				record.Headers = map[string]string{"Content-Type": ct}
			}

			payload, marshalErr := json.Marshal(record)
			if marshalErr != nil {
				logError(r.Context(), logg, "marshal idempotency record", marshalErr)
				return
			}
			if _, setErr := store.SetNX(r.Context(), key, string(payload), ttl); setErr != nil {
				logError(r.Context(), logg, "persist idempotency record", setErr)
			}
		})
	}
}

func decodeRecord(payload string) (*idempotencyRecord, error) {
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func writeStoredResponse(w http.ResponseWriter, record *idempotencyRecord) {
	if ct, ok := record.Headers["Content-Type"]; ok && ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func covered(method, pattern string) bool {
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.matcher(pattern) {
			return true
		}
	}
	return false
}

func matchExact(path string) routeMatcher {
	return func(pattern string) bool {
		return pattern == path
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
