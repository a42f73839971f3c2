package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/seedfund-backend/api/responses"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/seedfund-backend/pkg/redis"
)

const (
	actionReplayTTL = 24 * time.Hour
	moneyReplayTTL  = 7 * 24 * time.Hour
	// in-flight marker lifetime; a crashed handler frees the key after this
	inFlightTTL = 2 * time.Minute
)

// idempotentRoutes maps POST path globs to how long their responses replay.
// Money movement replays for a week, everything else for a day.
var idempotentRoutes = []struct {
	glob string
	ttl  time.Duration
}{
	{"/api/v1/purchase-requests", actionReplayTTL},
	{"/api/v1/donations", actionReplayTTL},
	{"/api/v1/notifications/read-all", actionReplayTTL},
	{"/api/v1/notifications/*/read", actionReplayTTL},
	{"/api/v1/partner/purchase-requests/*/approve", actionReplayTTL},
	{"/api/v1/partner/purchase-requests/*/reject", actionReplayTTL},
	{"/api/admin/v1/purchase-requests/*/approve", actionReplayTTL},
	{"/api/admin/v1/purchase-requests/*/reject", actionReplayTTL},
	{"/api/v1/partner/purchases/*/remittance", moneyReplayTTL},
	{"/api/v1/partner/remittances/*/pay", moneyReplayTTL},
	{"/api/admin/v1/remittances/*/approve", moneyReplayTTL},
	{"/api/admin/v1/remittances/*/reject", moneyReplayTTL},
	{"/api/admin/v1/funds/*/distribute", moneyReplayTTL},
}

// storedResponse is what a key resolves to. Status 0 marks a request that is
// still being handled.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency makes the listed POST routes safe to retry. The first request
// for an Idempotency-Key runs the handler and stores its response; repeats
// with the same body replay it, repeats with a different body get 409. 5xx
// responses are not stored so the client can retry them.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(requestScope(r), clientKey)

			marker, _ := json.Marshal(storedResponse{RequestHash: hash})
			claimed, err := store.SetNX(ctx, key, string(marker), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replay(ctx, store, key, hash, w, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode() >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			record, _ := json.Marshal(storedResponse{
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			if err := store.Set(ctx, key, string(record), ttl); err != nil && logg != nil {
				logg.Error(ctx, "store idempotent response", err)
			}
		})
	}
}

func replay(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, w http.ResponseWriter, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// expired between the claim and the read
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case stored.Status == 0:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// requestScope keeps keys from different callers and routes apart.
func requestScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		PartnerIDFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

// replayTTL matches the concrete path. Group middleware runs before chi has
// resolved the final pattern, so the route pattern is only a second guess.
func replayTTL(r *http.Request) (time.Duration, bool) {
	if r.Method != http.MethodPost {
		return 0, false
	}
	if ttl, ok := routeTTL(r.URL.Path); ok {
		return ttl, true
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return routeTTL(rc.RoutePattern())
	}
	return 0, false
}

func routeTTL(p string) (time.Duration, bool) {
	if p == "" {
		return 0, false
	}
	p = strings.TrimSuffix(p, "/")
	for _, route := range idempotentRoutes {
		if ok, _ := path.Match(route.glob, p); ok {
			return route.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
