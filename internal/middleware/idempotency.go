package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	IdempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "X-Idempotency-Replayed"
	idempotencyProcessing   = "PROCESSING"
)

// storedResponse is the cached outcome of a completed request
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// captureWriter tees the response body so it can be cached
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// A key is claimed with SETNX while the first request runs; a concurrent
// duplicate gets 409. Responses with status >= 500 are not cached so the
// client may retry. Redis failures let the request through.
// lockTTL bounds the in-progress claim and must outlive the request timeout;
// ttl is how long a completed response is replayed.
func Idempotency(rdb *redis.Client, ttl, lockTTL time.Duration, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > 255 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Idempotency-Key must be at most 255 characters",
				"code":  "INVALID_REQUEST",
			})
			return
		}

		ctx := c.Request.Context()
		redisKey := fmt.Sprintf("idempotency:%s:%s", c.FullPath(), key)

		val, err := rdb.Get(ctx, redisKey).Result()
		switch {
		case err == nil:
			replay(c, val)
			return
		case err != redis.Nil:
			logger.WithError(err).Warn("Idempotency lookup failed, processing request")
			c.Next()
			return
		}

		acquired, err := rdb.SetNX(ctx, redisKey, idempotencyProcessing, lockTTL).Result()
		if err != nil {
			logger.WithError(err).Warn("Idempotency lock failed, processing request")
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "a request with this Idempotency-Key is in progress",
				"code":  "IDEMPOTENCY_CONFLICT",
			})
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		c.Next()

		ctx = context.WithoutCancel(ctx)
		status := writer.Status()
		if status >= http.StatusInternalServerError {
			rdb.Del(ctx, redisKey)
			return
		}

		stored, err := json.Marshal(storedResponse{
			Status:      status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		})
		if err == nil {
			err = rdb.Set(ctx, redisKey, stored, ttl).Err()
		}
		if err != nil {
			logger.WithFields(logrus.Fields{
				"idempotency_key": key,
				"error":           err.Error(),
			}).Warn("Failed to store idempotent response")
			rdb.Del(ctx, redisKey)
		}
	}
}

func replay(c *gin.Context, val string) {
	if val == idempotencyProcessing {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error": "a request with this Idempotency-Key is in progress",
			"code":  "IDEMPOTENCY_CONFLICT",
		})
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error": "stored response for this Idempotency-Key is unreadable",
			"code":  "IDEMPOTENCY_CONFLICT",
		})
		return
	}

	c.Header(idempotencyReplayHeader, "true")
	c.Data(stored.Status, stored.ContentType, stored.Body)
	c.Abort()
}
