// Package idempotency implements the Idempotency-Key middleware (spec
// §4.8): a PROCESSING→cached state machine over the idempotency_records
// table, returning 409 on a collision and replaying the original 2xx
// response verbatim for a repeated key. Grounded on the teacher's
// middleware-factory idiom (pkg/api/middleware.go's
// `func() echo.MiddlewareFunc`), with claim-by-conditional-update backed
// by internal/storage's INSERT ... ON CONFLICT DO NOTHING analogue of
// pkg/queue/worker.go's row claim pattern.
package idempotency

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/missionctl/internal/storage"
)

const (
	headerName = "Idempotency-Key"

	// DefaultProcessingTTL bounds how long a claim blocks a duplicate
	// before the original request is presumed dead.
	DefaultProcessingTTL = 60 * time.Second
	// DefaultCachedTTL bounds how long a completed response stays
	// replayable for a repeated key.
	DefaultCachedTTL = 24 * time.Hour
)

// Config tunes the middleware's TTLs.
type Config struct {
	ProcessingTTL time.Duration
	CachedTTL     time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProcessingTTL <= 0 {
		c.ProcessingTTL = DefaultProcessingTTL
	}
	if c.CachedTTL <= 0 {
		c.CachedTTL = DefaultCachedTTL
	}
	return c
}

// Middleware returns the echo middleware factory enforcing at-most-one-
// effect semantics for any request carrying an Idempotency-Key header.
func Middleware(q *storage.Queries, cfg Config) echo.MiddlewareFunc {
	cfg = cfg.withDefaults()
	log := slog.With("component", "idempotency")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			key := c.Request().Header.Get(headerName)
			if key == "" {
				return next(c)
			}

			method := c.Request().Method
			path := c.Request().URL.Path
			ctx := c.Request().Context()

			err := q.InsertProcessingIdempotencyRecord(ctx, key, method, path, time.Now().Add(cfg.ProcessingTTL))
			if err == nil {
				return runAndCache(c, next, q, key, method, path, cfg)
			}
			if !errors.Is(err, storage.ErrIdempotencyCollision) {
				log.Error("failed to claim idempotency record", "key", key, "error", err)
				return next(c)
			}

			return respondFromExisting(c, q, key, method, path)
		}
	}
}

// runAndCache executes the handler behind a response-capturing writer and
// transitions the claim to cached (2xx) or deletes it (anything else),
// letting the client retry with the same key.
func runAndCache(c *echo.Context, next echo.HandlerFunc, q *storage.Queries, key, method, path string, cfg Config) error {
	capture := &responseCapture{ResponseWriter: c.Response().Writer}
	c.Response().Writer = capture

	ctx := c.Request().Context()
	handlerErr := next(c)

	if handlerErr != nil || capture.status == 0 || capture.status < 200 || capture.status >= 300 {
		if delErr := q.DeleteIdempotencyRecord(ctx, key, method, path); delErr != nil {
			slog.With("component", "idempotency").Error("failed to release idempotency claim after failed request", "key", key, "error", delErr)
		}
		return handlerErr
	}

	headers, _ := json.Marshal(c.Response().Header())
	if err := q.CacheIdempotencyResponse(ctx, key, method, path, capture.status, capture.body.Bytes(), headers, time.Now().Add(cfg.CachedTTL)); err != nil {
		slog.With("component", "idempotency").Error("failed to cache idempotent response", "key", key, "error", err)
	}
	return nil
}

// respondFromExisting handles the collision branch: replay a cached
// response verbatim, report 409 while still processing, or 409 asking
// for a retry if the row expired mid-flight (spec §4.8 step 4).
func respondFromExisting(c *echo.Context, q *storage.Queries, key, method, path string) error {
	ctx := c.Request().Context()
	rec, err := q.GetIdempotencyRecord(ctx, key, method, path)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusConflict, map[string]string{
			"message": "idempotency key expired mid-flight, please retry",
		})
	}
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{
			"message": "could not resolve idempotency state, please retry",
		})
	}

	switch rec.State {
	case storage.IdempotencyProcessing:
		return c.JSON(http.StatusConflict, map[string]string{
			"message": "request with this idempotency key is still processing",
		})
	case storage.IdempotencyCached:
		var headers map[string][]string
		_ = json.Unmarshal(rec.ResponseHeaders, &headers)
		for name, values := range headers {
			for _, v := range values {
				c.Response().Header().Add(name, v)
			}
		}
		return c.Blob(rec.ResponseStatus, "application/json", rec.ResponseBody)
	default:
		return c.JSON(http.StatusConflict, map[string]string{
			"message": "please retry",
		})
	}
}

// responseCapture tees everything written to the real ResponseWriter
// into a buffer so a 2xx body can be cached verbatim for replay.
type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *responseCapture) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseCapture) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
