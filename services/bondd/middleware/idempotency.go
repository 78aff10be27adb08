package middleware

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"lukechampine.com/blake3"

	"github.com/elysia-dev/elysia-korea-pf/services/bondd/auth"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/models"
)

const (
	// HeaderIdempotencyKey names the request header carrying the client key.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplayed marks responses served from the idempotency store.
	HeaderReplayed = "Idempotent-Replayed"

	maxIdempotentBody = 1 << 20
	maxKeyLength      = 128
)

// WithIdempotency ensures requests with the same key are executed once. A key
// reused for a different request is rejected with 422. Server errors are not
// recorded so the client may retry them.
func WithIdempotency(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if key == "" || db == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				http.Error(w, "idempotency key too long", http.StatusBadRequest)
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
			if err != nil {
				http.Error(w, "unable to read body", http.StatusBadRequest)
				return
			}
			if len(body) > maxIdempotentBody {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := Fingerprint(r, body)

			var record models.IdempotencyKey
			err = db.WithContext(r.Context()).First(&record, "key = ?", key).Error
			switch {
			case err == nil:
				if record.Fingerprint != fingerprint {
					http.Error(w, "idempotency key reused with a different request", http.StatusUnprocessableEntity)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(record.Status)
				_, _ = io.WriteString(w, record.Response)
				return
			case !errors.Is(err, gorm.ErrRecordNotFound):
				http.Error(w, "idempotency store unavailable", http.StatusServiceUnavailable)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				return
			}
			requestID := chimw.GetReqID(r.Context())
			if requestID == "" {
				requestID = uuid.NewString()
			}
			payload := models.IdempotencyKey{
				Key:         key,
				RequestID:   requestID,
				Fingerprint: fingerprint,
				Method:      r.Method,
				Path:        r.URL.Path,
				Status:      status,
				Response:    recorder.buf.String(),
				CreatedAt:   time.Now(),
			}
			_ = db.WithContext(r.Context()).Create(&payload).Error
		})
	}
}

// Fingerprint digests the parts of a request that must match on replay.
func Fingerprint(r *http.Request, body []byte) string {
	h := blake3.New(32, nil)
	_, _ = io.WriteString(h, r.Method)
	_, _ = h.Write([]byte{0})
	_, _ = io.WriteString(h, r.URL.Path)
	_, _ = h.Write([]byte{0})
	if caller, ok := auth.CallerFromContext(r.Context()); ok {
		_, _ = h.Write(caller.Bytes())
	}
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// responseRecorder captures the response for idempotent operations.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	if rr.status == 0 {
		rr.status = status
	}
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
