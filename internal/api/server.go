package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"github.com/throttled/throttled/v2"

	opsdb "github.com/Maphikza/iqube-ops/internal/database"
	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/lib/anchoring"
	"github.com/Maphikza/iqube-ops/lib/explorer"
	"github.com/Maphikza/iqube-ops/lib/status"
)

// Options configures a Server. ChallengeTTL bounds how long a login
// challenge stays valid.
type Options struct {
	AllowedOrigin string
	UserPubKey    string
	JWTKey        []byte
	RatePerSec    int
	RateBurst     int
	ChallengeTTL  time.Duration
	TokenTTL      time.Duration
}

// OptionsFromConfig reads server options from viper. The JWT key is loaded
// separately.
func OptionsFromConfig() Options {
	return Options{
		AllowedOrigin: viper.GetString("allowed_origin"),
		UserPubKey:    viper.GetString("user_pubkey"),
		RatePerSec:    viper.GetInt("rate_limit.per_sec"),
		RateBurst:     viper.GetInt("rate_limit.burst"),
	}
}

// Server hosts the explorer proxy routes and the ops API.
type Server struct {
	explorer   *explorer.Esplora
	reconciler *status.Reconciler
	ops        *anchoring.Service
	store      *opsdb.Store
	opts       Options
	jwtKey     []byte
	limiter    *throttled.HTTPRateLimiter
}

func NewServer(esplora *explorer.Esplora, reconciler *status.Reconciler, ops *anchoring.Service, store *opsdb.Store, opts Options) (*Server, error) {
	if opts.ChallengeTTL == 0 {
		opts.ChallengeTTL = 2 * time.Minute
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 15 * time.Minute
	}
	s := &Server{
		explorer:   esplora,
		reconciler: reconciler,
		ops:        ops,
		store:      store,
		opts:       opts,
		jwtKey:     opts.JWTKey,
	}
	if opts.RatePerSec > 0 {
		limiter, err := newRateLimiter(opts.RatePerSec, opts.RateBurst)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		s.limiter = limiter
	}
	return s, nil
}

// Router wires every route with its middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	base := []func(http.HandlerFunc) http.HandlerFunc{s.CORSMiddleware, LoggingMiddleware, RecoveryMiddleware, RequestIDMiddleware}
	with := func(h http.HandlerFunc, extra ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
		return ApplyMiddleware(ApplyMiddleware(h, extra...), base...)
	}
	proxy := func(route string, h http.HandlerFunc) http.HandlerFunc {
		return with(h, MetricsMiddleware(route), s.RateLimitMiddleware)
	}
	write := func(h http.HandlerFunc) http.HandlerFunc {
		return with(h, JSONContentTypeMiddleware, s.JWTMiddleware)
	}

	// Explorer proxy
	r.HandleFunc("/api/btc/fee", proxy("fee", s.HandleFee)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/btc/txhex", proxy("txhex", s.HandleTxHex)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/btc/utxos", proxy("utxos", s.HandleUTXOs)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/btc/broadcast", proxy("broadcast", s.HandleBroadcast)).Methods(http.MethodPost, http.MethodOptions)

	// Status reads
	r.HandleFunc("/api/status/anchor/{id}", with(s.HandleAnchorStatus)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/status/dual-lock/{id}", with(s.HandleDualLockStatus)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/chains", with(s.HandleChains)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/dvn/pending", with(s.HandlePendingMessages)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/dvn/ready", with(s.HandleReadyMessages)).Methods(http.MethodGet, http.MethodOptions)

	// Write paths
	r.HandleFunc("/api/anchor/submit", write(s.HandleSubmit)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/dvn/submit", write(s.HandleDVNSubmit)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/dvn/{id}/attest", write(s.HandleAttest)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/results", with(s.HandleResults, s.JWTMiddleware)).Methods(http.MethodGet, http.MethodOptions)

	// Operator login
	r.HandleFunc("/challenge", with(s.HandleChallengeRequest)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/verify", with(s.VerifyChallenge, JSONContentTypeMiddleware)).Methods(http.MethodPost, http.MethodOptions)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)
	return r
}

// ListenAndServe runs the server on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
