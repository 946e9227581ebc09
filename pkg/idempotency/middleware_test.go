package idempotency

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type mockKeyRepository struct {
	acquireLockFunc   func(ctx context.Context, key *Key) (*Key, bool, error)
	storeResponseFunc func(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error
}

func (m *mockKeyRepository) AcquireLock(ctx context.Context, key *Key) (*Key, bool, error) {
	if m.acquireLockFunc != nil {
		return m.acquireLockFunc(ctx, key)
	}
	return key, true, nil
}

func (m *mockKeyRepository) ReleaseLock(ctx context.Context, keyID string) error {
	return nil
}

func (m *mockKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	if m.storeResponseFunc != nil {
		return m.storeResponseFunc(ctx, keyID, responseCode, responseBody, headers)
	}
	return nil
}

func (m *mockKeyRepository) Get(ctx context.Context, key, serviceID string) (*Key, error) {
	return nil, ErrNotFound
}

func (m *mockKeyRepository) Clean(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (m *mockKeyRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

func newTestRouter(config *Config, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(config))
	router.POST("/api/v1/reservations", handler)
	return router
}

func postReservation(router *gin.Engine, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_NoKey_Optional(t *testing.T) {
	config := DefaultConfig("stock-service", &mockKeyRepository{})

	router := newTestRouter(config, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"reservationId": "RES-001"})
	})

	w := postReservation(router, `{"quantity":4}`, "")

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
}

func TestMiddleware_NoKey_Required(t *testing.T) {
	config := DefaultConfig("stock-service", &mockKeyRepository{})
	config.RequireKey = true

	router := newTestRouter(config, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"reservationId": "RES-001"})
	})

	w := postReservation(router, `{"quantity":4}`, "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestMiddleware_InvalidKey(t *testing.T) {
	config := DefaultConfig("stock-service", &mockKeyRepository{})

	router := newTestRouter(config, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"reservationId": "RES-001"})
	})

	w := postReservation(router, `{"quantity":4}`, "invalid key with spaces")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestMiddleware_NewRequest(t *testing.T) {
	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *Key) (*Key, bool, error) {
			key.ID = [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
			return key, true, nil
		},
	}
	config := DefaultConfig("stock-service", repo)

	router := newTestRouter(config, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"reservationId": "RES-001"})
	})

	w := postReservation(router, `{"quantity":4}`, "retry-safe-key-123")

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
}

func TestMiddleware_CachedResponse(t *testing.T) {
	completedAt := time.Now().UTC()
	cachedResponse := []byte(`{"reservationId":"RES-001"}`)

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *Key) (*Key, bool, error) {
			existing := &Key{
				ID:                 [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestPath:        key.RequestPath,
				RequestMethod:      key.RequestMethod,
				RequestFingerprint: key.RequestFingerprint,
				ResponseCode:       http.StatusCreated,
				ResponseBody:       cachedResponse,
				ResponseHeaders:    map[string]string{"Content-Type": "application/json"},
				CompletedAt:        &completedAt,
			}
			return existing, false, nil
		},
	}
	config := DefaultConfig("stock-service", repo)

	router := newTestRouter(config, func(c *gin.Context) {
		t.Error("Handler should not be called for cached response")
		c.JSON(http.StatusCreated, gin.H{"reservationId": "RES-002"})
	})

	w := postReservation(router, `{"quantity":4}`, "retry-safe-key-123")

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if w.Body.String() != string(cachedResponse) {
		t.Errorf("Expected cached response, got %s", w.Body.String())
	}
}

func TestMiddleware_ParameterMismatch(t *testing.T) {
	completedAt := time.Now().UTC()
	originalFingerprint := ComputeFingerprint([]byte(`{"quantity":4}`))

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *Key) (*Key, bool, error) {
			existing := &Key{
				ID:                 [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestPath:        key.RequestPath,
				RequestMethod:      key.RequestMethod,
				RequestFingerprint: originalFingerprint,
				ResponseCode:       http.StatusCreated,
				ResponseBody:       []byte(`{"reservationId":"RES-001"}`),
				CompletedAt:        &completedAt,
			}
			return existing, false, nil
		},
	}
	config := DefaultConfig("stock-service", repo)

	router := newTestRouter(config, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"reservationId": "RES-002"})
	})

	// Same key, different quantity.
	w := postReservation(router, `{"quantity":9}`, "retry-safe-key-123")

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", w.Code)
	}
}

func TestMiddleware_ConcurrentRequest(t *testing.T) {
	lockedAt := time.Now().UTC()

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *Key) (*Key, bool, error) {
			existing := &Key{
				ID:                 [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestPath:        key.RequestPath,
				RequestMethod:      key.RequestMethod,
				RequestFingerprint: key.RequestFingerprint,
				LockedAt:           &lockedAt,
			}
			return existing, false, nil
		},
	}
	config := DefaultConfig("stock-service", repo)

	router := newTestRouter(config, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"reservationId": "RES-001"})
	})

	w := postReservation(router, `{"quantity":4}`, "retry-safe-key-123")

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestMiddleware_StaleLockProceeds(t *testing.T) {
	lockedAt := time.Now().UTC().Add(-10 * time.Minute)

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *Key) (*Key, bool, error) {
			existing := &Key{
				ID:                 [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
				Key:                key.Key,
				ServiceID:          key.ServiceID,
				RequestPath:        key.RequestPath,
				RequestMethod:      key.RequestMethod,
				RequestFingerprint: key.RequestFingerprint,
				LockedAt:           &lockedAt,
			}
			return existing, false, nil
		},
	}
	config := DefaultConfig("stock-service", repo)

	handlerCalled := false
	router := newTestRouter(config, func(c *gin.Context) {
		handlerCalled = true
		c.JSON(http.StatusCreated, gin.H{"reservationId": "RES-001"})
	})

	w := postReservation(router, `{"quantity":4}`, "retry-safe-key-123")

	if !handlerCalled {
		t.Error("Handler should run once the lock is stale")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
}

func TestMiddleware_StorageFailure(t *testing.T) {
	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *Key) (*Key, bool, error) {
			return nil, false, errors.New("database connection failed")
		},
	}
	config := DefaultConfig("stock-service", repo)

	router := newTestRouter(config, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"reservationId": "RES-001"})
	})

	w := postReservation(router, `{"quantity":4}`, "retry-safe-key-123")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestMiddleware_SkipGETRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := &mockKeyRepository{
		acquireLockFunc: func(ctx context.Context, key *Key) (*Key, bool, error) {
			t.Error("AcquireLock should not be called for GET request")
			return nil, false, errors.New("should not be called")
		},
	}
	config := DefaultConfig("stock-service", repo)

	router := gin.New()
	router.Use(Middleware(config))
	router.GET("/api/v1/stock", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"records": []string{}})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil)
	req.Header.Set(HeaderIdempotencyKey, "retry-safe-key-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
