package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/trydo/wts-backend/api/responses"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
)

const maxRateLimitBody = 64 << 10

// RateLimiterStore counts hits per key inside a fixed window.
type RateLimiterStore interface {
	CountInWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	RateLimitKey(parts ...string) string
}

// RateLimitPolicy throttles one route family. PerIP and PerEmail are hit
// budgets per Window; zero disables that dimension.
type RateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func (p RateLimitPolicy) active() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

type rateLimitHit struct {
	dimension string
	subject   string
	limit     int
}

// RateLimit rejects requests over either budget with 429 and a Retry-After
// of one window. The email budget keys on a hash of the JSON "email" field so
// raw addresses never reach Redis.
func RateLimit(policy RateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !policy.active() {
			return next
		}
		name := strings.ToLower(strings.TrimSpace(policy.Name))
		if name == "" {
			name = "default"
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			hits := make([]rateLimitHit, 0, 2)
			if ip := ClientIP(r); policy.PerIP > 0 && ip != "" {
				hits = append(hits, rateLimitHit{dimension: "ip", subject: ip, limit: policy.PerIP})
			}
			if policy.PerEmail > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), r.Body), Closer: r.Body}
				if email := emailFromBody(body); email != "" {
					hits = append(hits, rateLimitHit{dimension: "email", subject: sha256Hex(email), limit: policy.PerEmail})
				}
			}

			for _, hit := range hits {
				count, err := store.CountInWindow(ctx, store.RateLimitKey(name, hit.dimension, hit.subject), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if count > int64(hit.limit) {
					rejectRateLimited(ctx, logg, w, name, policy.Window, hit, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy string, window time.Duration, hit rateLimitHit, count int64) {
	fields := map[string]any{
		"policy":    policy,
		"dimension": hit.dimension,
		"attempts":  count,
		"limit":     hit.limit,
	}
	if hit.dimension == "ip" {
		fields["ip"] = hit.subject
	} else {
		fields["email_hash"] = hit.subject
	}
	logg.Warn(logg.WithFields(ctx, fields), "rate_limit.blocked")

	w.Header().Set("Retry-After", strconv.Itoa(int(window.Round(time.Second).Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

type readCloser struct {
	io.Reader
	io.Closer
}

func emailFromBody(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
