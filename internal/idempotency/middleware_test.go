package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/missionctl/internal/storage"
)

func newTestQueries(t *testing.T) *storage.Queries {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("missionctl_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := storage.NewClient(ctx, storage.Config{
		Host:            host,
		Port:            port.Int(),
		User:            "test",
		Password:        "test",
		Database:        "missionctl_test",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return storage.NewQueries(client.DB())
}

func TestMiddleware_SecondRequestWithSameKeyReplaysCachedResponse(t *testing.T) {
	q := newTestQueries(t)

	var calls atomic.Int32
	e := echo.New()
	e.Use(Middleware(q, Config{}))
	e.POST("/missions", func(c *echo.Context) error {
		calls.Add(1)
		return c.JSON(http.StatusCreated, map[string]string{"id": "mission-1"})
	})

	req1 := httptest.NewRequest(http.MethodPost, "/missions", nil)
	req1.Header.Set("Idempotency-Key", "k-1")
	rec1 := httptest.NewRecorder()
	e.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusCreated, rec1.Code)
	require.Contains(t, rec1.Body.String(), "mission-1")

	req2 := httptest.NewRequest(http.MethodPost, "/missions", nil)
	req2.Header.Set("Idempotency-Key", "k-1")
	rec2 := httptest.NewRecorder()
	e.ServeHTTP(rec2, req2)

	require.Equal(t, http.StatusCreated, rec2.Code)
	require.Equal(t, rec1.Body.String(), rec2.Body.String())
	require.Equal(t, int32(1), calls.Load(), "handler must run exactly once for the repeated key")
}

func TestMiddleware_ConcurrentDuplicateWhileProcessingReturns409(t *testing.T) {
	q := newTestQueries(t)

	release := make(chan struct{})
	e := echo.New()
	e.Use(Middleware(q, Config{}))
	e.POST("/missions", func(c *echo.Context) error {
		<-release
		return c.JSON(http.StatusCreated, map[string]string{"id": "mission-2"})
	})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/missions", nil)
		req.Header.Set("Idempotency-Key", "k-2")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		done <- rec
	}()

	require.Eventually(t, func() bool {
		rec, err := q.GetIdempotencyRecord(context.Background(), "k-2", http.MethodPost, "/missions")
		return err == nil && rec.State == storage.IdempotencyProcessing
	}, 2*time.Second, 10*time.Millisecond)

	req2 := httptest.NewRequest(http.MethodPost, "/missions", nil)
	req2.Header.Set("Idempotency-Key", "k-2")
	rec2 := httptest.NewRecorder()
	e.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusConflict, rec2.Code)

	close(release)
	rec1 := <-done
	require.Equal(t, http.StatusCreated, rec1.Code)
}

func TestMiddleware_FailedHandlerDeletesClaimAllowingRetry(t *testing.T) {
	q := newTestQueries(t)

	var calls atomic.Int32
	e := echo.New()
	e.Use(Middleware(q, Config{}))
	e.POST("/missions", func(c *echo.Context) error {
		n := calls.Add(1)
		if n == 1 {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "boom"})
		}
		return c.JSON(http.StatusCreated, map[string]string{"id": "mission-3"})
	})

	req1 := httptest.NewRequest(http.MethodPost, "/missions", nil)
	req1.Header.Set("Idempotency-Key", "k-3")
	rec1 := httptest.NewRecorder()
	e.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusInternalServerError, rec1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/missions", nil)
	req2.Header.Set("Idempotency-Key", "k-3")
	rec2 := httptest.NewRecorder()
	e.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusCreated, rec2.Code)
	require.Equal(t, int32(2), calls.Load())
}

func TestMiddleware_NoIdempotencyKeyPassesThrough(t *testing.T) {
	q := newTestQueries(t)

	var calls atomic.Int32
	e := echo.New()
	e.Use(Middleware(q, Config{}))
	e.GET("/missions", func(c *echo.Context) error {
		calls.Add(1)
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/missions", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, int32(3), calls.Load())
}
