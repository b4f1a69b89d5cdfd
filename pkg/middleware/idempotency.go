package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
	redisClient "github.com/mishwari/taxi-dispatch/pkg/redis"
)

const (
	// IdempotencyKeyHeader is the HTTP header for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// idempotencyTTL is how long cached results are replayed.
	idempotencyTTL    = 24 * time.Hour
	idempotencyPrefix = "idempotency:"
)

// idempotencyEntry is the cached response for a key.
type idempotencyEntry struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
	RequestHash string          `json:"request_hash"`
}

type idempotencyWriter struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

func (w *idempotencyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *idempotencyWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Idempotency replays the stored response for a repeated Idempotency-Key
// instead of re-executing the handler. Retried trip requests and cash
// confirmations must not execute twice.
func Idempotency(redis redisClient.ClientInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPatch && c.Request.Method != http.MethodPut {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			common.ErrorResponseWithKind(c, http.StatusBadRequest, common.KindInvalidArgument, "failed to read request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		requestHash := hashRequest(c.Request.Method, c.FullPath(), bodyBytes)

		// Scope keys per caller so two users cannot collide.
		userID := ""
		if uid, err := GetUserID(c); err == nil {
			userID = uid.String()
		}
		redisKey := fmt.Sprintf("%s%s:%s", idempotencyPrefix, userID, idempotencyKey)

		cached, err := redis.GetString(c.Request.Context(), redisKey)
		if err == nil && cached != "" {
			var entry idempotencyEntry
			if err := json.Unmarshal([]byte(cached), &entry); err == nil {
				if entry.RequestHash != requestHash {
					common.ErrorResponseWithKind(c, http.StatusUnprocessableEntity, common.KindInvalidArgument,
						"Idempotency-Key has already been used with a different request")
					c.Abort()
					return
				}

				c.Header("Idempotent-Replayed", "true")
				c.Data(entry.StatusCode, entry.ContentType, entry.Body)
				c.Abort()
				return
			}
		}

		writer := &idempotencyWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		c.Writer = writer

		c.Next()

		// Only successful outcomes are replayable.
		if writer.statusCode < 200 || writer.statusCode >= 300 {
			return
		}

		entry := idempotencyEntry{
			StatusCode:  writer.statusCode,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
			RequestHash: requestHash,
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		if err := redis.SetWithExpiration(c.Request.Context(), redisKey, data, idempotencyTTL); err != nil {
			logger.WarnContext(c.Request.Context(), "failed to cache idempotency response",
				zap.String("key", idempotencyKey),
				zap.Error(err),
			)
		}
	}
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
