package idempotency

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderIdempotencyKey is the HTTP header carrying the idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// ContextKeyID is the gin context key holding the stored key's ID
	ContextKeyID = "idempotency_key_id"
)

// responseWriter wraps gin.ResponseWriter to capture the response for replay.
type responseWriter struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware returns a gin middleware that deduplicates mutating requests
// by their Idempotency-Key header. A completed request's response is
// replayed on retry; a concurrent retry while the original is still in
// flight gets 409.
func Middleware(config *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// GET and HEAD are idempotent by definition.
		if !isMutatingMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "Idempotency-Key header is required for this operation",
					"code":  "IDEMPOTENCY_KEY_REQUIRED",
				})
				return
			}
			c.Next()
			return
		}

		if err := ValidateKeyWithMaxLength(key, config.MaxKeyLength); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid idempotency key: %v", err),
				"code":  "IDEMPOTENCY_KEY_INVALID",
			})
			return
		}

		var actorID string
		if config.ActorIDExtractor != nil {
			actorID = config.ActorIDExtractor(c)
		}

		// Fingerprint the body so retries with different parameters are
		// rejected rather than silently replayed.
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}
		fingerprint := ComputeFingerprint(requestBody)

		processIdempotency(c, config, key, actorID, fingerprint)
	}
}

func processIdempotency(c *gin.Context, config *Config, key, actorID, fingerprint string) {
	ctx := c.Request.Context()
	startTime := time.Now()

	stored := &Key{
		Key:                key,
		ActorID:            actorID,
		ServiceID:          config.ServiceName,
		RequestPath:        c.Request.URL.Path,
		RequestMethod:      c.Request.Method,
		RequestFingerprint: fingerprint,
		CreatedAt:          time.Now().UTC(),
		ExpiresAt:          time.Now().UTC().Add(config.RetentionPeriod),
	}

	existing, isNew, err := config.Repository.AcquireLock(ctx, stored)
	if err != nil {
		slog.Error("Failed to acquire idempotency lock",
			"error", err,
			"key", key,
			"path", c.Request.URL.Path,
		)
		if config.Metrics != nil {
			config.Metrics.RecordStorageError(config.ServiceName, "acquire_lock")
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "Idempotency storage is temporarily unavailable",
			"code":  "IDEMPOTENCY_STORAGE_UNAVAILABLE",
		})
		return
	}

	if config.Metrics != nil {
		config.Metrics.RecordLockAcquisitionDuration(
			config.ServiceName,
			c.Request.URL.Path,
			c.Request.Method,
			time.Since(startTime).Seconds(),
		)
	}

	if existing.IsCompleted() {
		if existing.RequestFingerprint != fingerprint {
			slog.Warn("Idempotency parameter mismatch",
				"key", key,
				"path", c.Request.URL.Path,
			)
			if config.Metrics != nil {
				config.Metrics.RecordParameterMismatch(config.ServiceName, c.Request.URL.Path, c.Request.Method)
			}
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Request parameters differ from original request with this idempotency key",
				"code":  "IDEMPOTENCY_PARAMETER_MISMATCH",
			})
			return
		}

		slog.Debug("Idempotency cache hit",
			"key", key,
			"path", c.Request.URL.Path,
			"statusCode", existing.ResponseCode,
		)
		if config.Metrics != nil {
			config.Metrics.RecordHit(config.ServiceName, c.Request.URL.Path, c.Request.Method)
		}

		for k, v := range existing.ResponseHeaders {
			c.Header(k, v)
		}
		c.Data(existing.ResponseCode, "application/json", existing.ResponseBody)
		c.Abort()
		return
	}

	if !isNew && existing.IsLocked() {
		lockAge := time.Since(*existing.LockedAt)
		if lockAge < config.LockTimeout {
			slog.Warn("Concurrent idempotency request",
				"key", key,
				"path", c.Request.URL.Path,
				"lockAge", lockAge,
			)
			if config.Metrics != nil {
				config.Metrics.RecordConcurrentCollision(config.ServiceName, c.Request.URL.Path, c.Request.Method)
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "A request with this idempotency key is currently being processed",
				"code":  "IDEMPOTENCY_CONCURRENT_REQUEST",
			})
			return
		}

		// Stale lock, the original holder likely crashed. Take over.
		slog.Info("Stale idempotency lock detected, proceeding",
			"key", key,
			"path", c.Request.URL.Path,
			"lockAge", lockAge,
		)
	}

	c.Set(ContextKeyID, existing.ID.Hex())

	if config.Metrics != nil {
		config.Metrics.RecordMiss(config.ServiceName, c.Request.URL.Path, c.Request.Method)
	}

	writer := &responseWriter{
		ResponseWriter: c.Writer,
		body:           &bytes.Buffer{},
		statusCode:     http.StatusOK,
	}
	c.Writer = writer

	c.Next()

	responseBody := writer.body.Bytes()
	if len(responseBody) > config.MaxResponseSize {
		slog.Warn("Response too large to cache for replay",
			"key", key,
			"path", c.Request.URL.Path,
			"size", len(responseBody),
		)
		responseBody = []byte(fmt.Sprintf(`{"error":"Response too large to cache","size":%d}`, len(responseBody)))
	}

	err = config.Repository.StoreResponse(
		ctx,
		existing.ID.Hex(),
		writer.statusCode,
		responseBody,
		extractResponseHeaders(c),
	)
	if err != nil {
		slog.Error("Failed to store idempotency response",
			"error", err,
			"key", key,
			"path", c.Request.URL.Path,
		)
		if config.Metrics != nil {
			config.Metrics.RecordStorageError(config.ServiceName, "store_response")
		}
	}
}

func isMutatingMethod(method string) bool {
	return method == http.MethodPost ||
		method == http.MethodPut ||
		method == http.MethodPatch ||
		method == http.MethodDelete
}

func extractResponseHeaders(c *gin.Context) map[string]string {
	headers := make(map[string]string)
	for k, v := range c.Writer.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return headers
}
