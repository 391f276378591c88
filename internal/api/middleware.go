package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"

	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/internal/metrics"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs information about each request
func LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", RequestID(r.Context()),
			"duration", time.Since(start),
		)
	}
}

// MetricsMiddleware counts responses of a proxy route by status code.
func MetricsMiddleware(route string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			metrics.ProxyRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
	}
}

// JSONContentTypeMiddleware ensures that requests have the correct content type
func JSONContentTypeMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	}
}

// RecoveryMiddleware turns a panicking handler into a 500.
func RecoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic occurred", "error", err, "path", r.URL.Path, "request_id", RequestID(r.Context()))
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// RequestID returns the id assigned by RequestIDMiddleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ApplyMiddleware applies a list of middleware to a handler. The last one
// listed runs first.
func ApplyMiddleware(h http.HandlerFunc, middleware ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

func (s *Server) CORSMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.opts.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (s *Server) JWTMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized: Authorization header missing")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Unauthorized: Invalid token format")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return s.jwtKey, nil
		})

		if err != nil {
			var validationErr *jwt.ValidationError
			if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
				writeError(w, http.StatusUnauthorized, "Token expired")
				return
			}
			logger.Warn("Invalid token", "error", err, "request_id", RequestID(r.Context()))
			writeError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		if !token.Valid {
			writeError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	}
}

// newRateLimiter returns a per-client GCRA limiter.
func newRateLimiter(perSec, burst int) (*throttled.HTTPRateLimiter, error) {
	store, err := memstore.New(65536)
	if err != nil {
		return nil, err
	}
	quota := throttled.RateQuota{MaxRate: throttled.PerSec(perSec), MaxBurst: burst}
	limiter, err := throttled.NewGCRARateLimiter(store, quota)
	if err != nil {
		return nil, err
	}
	return &throttled.HTTPRateLimiter{
		RateLimiter: limiter,
		VaryBy:      &throttled.VaryBy{RemoteAddr: true},
	}, nil
}

// RateLimitMiddleware rejects clients above the configured rate with 429.
func (s *Server) RateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return s.limiter.RateLimit(next).ServeHTTP
}

func GenerateJWTKey() ([]byte, error) {
	key := make([]byte, 32) // 256 bits
	_, err := rand.Read(key)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT key: %w", err)
	}
	return key, nil
}

func jwtKeyPath(dir string) string {
	return filepath.Join(dir, "jwt_key")
}

func SaveJWTKey(key []byte, dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory for JWT key: %w", err)
	}
	encodedKey := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(jwtKeyPath(dir), []byte(encodedKey), 0600); err != nil {
		return fmt.Errorf("failed to save JWT key: %w", err)
	}
	logger.Info("JWT key saved", "path", jwtKeyPath(dir))
	return nil
}

func LoadJWTKey(dir string) ([]byte, error) {
	encodedKey, err := os.ReadFile(jwtKeyPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT key: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encodedKey)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT key: %w", err)
	}
	return key, nil
}

// InitJWTKey loads the key stored in dir, creating one on first use.
func InitJWTKey(dir string) ([]byte, error) {
	key, err := LoadJWTKey(dir)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	logger.Info("Generating a new JWT key", "dir", dir)
	key, err = GenerateJWTKey()
	if err != nil {
		return nil, err
	}
	if err := SaveJWTKey(key, dir); err != nil {
		return nil, err
	}
	return key, nil
}
