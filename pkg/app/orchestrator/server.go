// Package orchestrator implements app.Runner for the orchestrator process:
// the intake API and the scheduler share one process and one store.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/xchain-orchestrator/pkg/app/http"
	"github.com/chainsafe/xchain-orchestrator/pkg/auth"
	"github.com/chainsafe/xchain-orchestrator/pkg/bridge"
	"github.com/chainsafe/xchain-orchestrator/pkg/chain"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/executor"
	"github.com/chainsafe/xchain-orchestrator/pkg/keys"
	"github.com/chainsafe/xchain-orchestrator/pkg/orchestrator"
	"github.com/chainsafe/xchain-orchestrator/pkg/pgutil"
	"github.com/chainsafe/xchain-orchestrator/pkg/price"
	"github.com/chainsafe/xchain-orchestrator/pkg/quote"
	"github.com/chainsafe/xchain-orchestrator/pkg/signer"
	"github.com/chainsafe/xchain-orchestrator/pkg/statesync"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/service"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store/memstore"
	"github.com/chainsafe/xchain-orchestrator/pkg/verifier"
)

// Server holds the configuration of the orchestrator process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new orchestrator Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the scheduler and the HTTP API. It blocks until an OS shutdown
// signal is received or the HTTP server fails.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cross-chain orchestrator",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver))

	st, closeStore, err := s.openStore(logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry, err := s.openRegistry(logger)
	if err != nil {
		return err
	}

	prices, err := s.openPrices(logger)
	if err != nil {
		return err
	}

	syncer, err := s.openStateSync(ctx, logger)
	if err != nil {
		return err
	}
	syncer.Start(ctx)
	defer func() {
		if err := syncer.Stop(); err != nil {
			logger.Warn("State sync shutdown error", zap.Error(err))
		}
	}()

	selector := bridge.NewSelector(registry)
	quoter := quote.New(registry, selector, prices, cfg.Quote, logger)
	exec := executor.New(registry, executor.NewConfig(cfg.Quote, cfg.Verifier), logger)
	v := verifier.New(registry, st, cfg.Verifier, logger)

	engine := orchestrator.New(orchestrator.NewConfig(cfg), st, v, selector, quoter, exec, syncer, logger)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	// Stopped explicitly after the HTTP server so shutdown order is
	// deterministic; the defer covers early returns.
	defer engine.Stop()

	svc := service.NewService(st, registry, quoter, syncer, service.NewConfig(cfg), logger)
	router := s.newRouter(service.NewLog(svc, logger), engine, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
	engine.Stop()
	return err
}

func (s *Server) openStore(logger *zap.Logger) (store.Store, func(), error) {
	if s.cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory transfer store; records do not survive restarts")
		return memstore.New(), func() {}, nil
	}

	db, err := pgutil.ConnectDB(&s.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("host", s.cfg.Database.Host),
		zap.String("database", s.cfg.Database.Database))
	return store.NewStore(db), func() { _ = db.Close() }, nil
}

func (s *Server) openRegistry(logger *zap.Logger) (*chain.Registry, error) {
	opts := []chain.Option{chain.WithLogger(logger)}
	sgn, err := s.loadSigner()
	if err != nil {
		return nil, fmt.Errorf("load signer: %w", err)
	}
	if sgn != nil {
		logger.Info("Signer loaded", zap.String("address", sgn.Address().Hex()))
		opts = append(opts, chain.WithSigner(sgn))
	} else {
		logger.Warn("No signer configured; destination transactions cannot be submitted")
	}

	registry, err := chain.NewRegistry(s.cfg.Chains, s.cfg.Assets, opts...)
	if err != nil {
		return nil, fmt.Errorf("build chain registry: %w", err)
	}
	logger.Info("Chain registry ready", zap.Strings("chains", registry.IDs()))
	return registry, nil
}

func (s *Server) loadSigner() (*signer.KeyedSigner, error) {
	sc := s.cfg.Signer
	switch {
	case sc.EncryptedPrivateKey != "":
		masterKey, err := keys.MasterKeyFromEnv(sc.MasterKeyEnv)
		if err != nil {
			return nil, err
		}
		key, err := keys.DecryptSignerKey(sc.EncryptedPrivateKey, masterKey)
		if err != nil {
			return nil, err
		}
		return signer.NewKeyedSigner(key)
	case sc.PrivateKey != "":
		return signer.NewKeyedSignerFromHex(sc.PrivateKey)
	}
	return nil, nil
}

func (s *Server) openPrices(logger *zap.Logger) (price.Source, error) {
	pc := s.cfg.Price
	var live price.Source
	if pc.URL != "" {
		live = price.NewHTTPSource(pc.URL, pc.Timeout, logger)
		logger.Info("Using HTTP price feed", zap.String("url", pc.URL))
	} else {
		live = price.NewStaticSource(pc.Static)
		logger.Info("Using static prices", zap.Int("symbols", len(pc.Static)))
	}

	cached, err := price.NewCachedSource(live, pc.CacheSize, pc.MaxStale, logger)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func (s *Server) openStateSync(ctx context.Context, logger *zap.Logger) (*statesync.Synchronizer, error) {
	sinks := []statesync.Sink{statesync.NewLogSink(logger)}
	if s.cfg.Redis.Enabled {
		redisSink, err := statesync.NewRedisSink(ctx, s.cfg.Redis.URL, s.cfg.Redis.Channel)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("Publishing status updates to redis", zap.String("channel", s.cfg.Redis.Channel))
		sinks = append(sinks, redisSink)
	}
	return statesync.New(s.cfg.StateSync.BufferSize, logger, sinks...), nil
}

func (s *Server) newRouter(svc service.Service, engine *orchestrator.Orchestrator, logger *zap.Logger) http.Handler {
	cfg := s.cfg

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !engine.IsReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)))
		service.RegisterRoutes(r, svc, logger)
	})

	return r
}
