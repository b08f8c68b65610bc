package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/xorcism-go/internal/auth"
	"github.com/xorcism-go/internal/cache"
	"github.com/xorcism-go/internal/config"
	"github.com/xorcism-go/internal/dao"
	"github.com/xorcism-go/internal/handler"
	"github.com/xorcism-go/internal/metrics"
	"github.com/xorcism-go/internal/storage"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	store      *storage.Store
	keyCache   *cache.Cache[[]byte]
	keyDAO     *dao.KeyDAO
	sessionDAO *dao.SessionDAO
	jwtAuth    *auth.JWTAuth
	router     *gin.Engine
	httpServer *http.Server
}

// New creates a new server instance
func New(cfg *config.Config) (*Server, error) {
	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	var keyCache *cache.Cache[[]byte]
	if cfg.Cache.Enable {
		keyCache = cache.New[[]byte](
			time.Duration(cfg.Cache.Expiration)*time.Minute,
			cfg.Cache.MaxSize,
			time.Minute,
		)
	}

	s := &Server{
		cfg:        cfg,
		store:      store,
		keyCache:   keyCache,
		keyDAO:     dao.NewKeyDAO(store, keyCache),
		sessionDAO: dao.NewSessionDAO(store),
		jwtAuth:    auth.NewJWTAuth(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpire)*time.Hour),
	}

	if err := s.seedKeys(); err != nil {
		s.close()
		return nil, err
	}

	s.setupRoutes()
	return s, nil
}

// seedKeys stores the keys listed in config, replacing same-named profiles
func (s *Server) seedKeys() error {
	for _, k := range s.cfg.Keys {
		if _, err := s.keyDAO.Put(dao.KeyProfile{Name: k.Name, Source: k.Source, Material: k.Material}); err != nil {
			return fmt.Errorf("seed key %q: %w", k.Name, err)
		}
		log.Info().Str("key", k.Name).Msg("Seeded key from config")
	}
	return nil
}

func (s *Server) setupRoutes() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	s.router = r

	r.Use(TraceMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(RecoveryMiddleware())
	if s.cfg.Server.EnableCORS {
		r.Use(CORSMiddleware())
	}
	r.Use(GzipMiddleware())

	r.GET("/health", HealthHandler)
	r.GET("/ready", ReadyHandler(s.store))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	keyHandler := handler.NewKeyHandler(s.keyDAO)
	mungeHandler := handler.NewMungeHandler(s.cfg, s.keyDAO)
	sessionHandler := handler.NewSessionHandler(s.cfg, s.keyDAO, s.sessionDAO)

	api := r.Group("/api")
	if s.cfg.Auth.Enable {
		api.Use(AuthMiddleware(s.jwtAuth))
	}

	api.POST("/keys", keyHandler.Create)
	api.GET("/keys", keyHandler.List)
	api.GET("/keys/:name", keyHandler.Get)
	api.DELETE("/keys/:name", keyHandler.Delete)

	api.POST("/munge/:key", mungeHandler.Munge)

	api.POST("/sessions", sessionHandler.Create)
	api.GET("/sessions/:id", sessionHandler.Get)
	api.PUT("/sessions/:id", sessionHandler.Munge)
	api.DELETE("/sessions/:id", sessionHandler.Delete)
}

// Handler returns the root HTTP handler, with h2c when enabled
func (s *Server) Handler() http.Handler {
	if !s.cfg.Server.EnableH2C {
		return s.router
	}
	h2s := &http2.Server{
		MaxConcurrentStreams: 1000,
		IdleTimeout:          120 * time.Second,
	}
	return h2c.NewHandler(s.router, h2s)
}

// Run listens on the configured address and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.GetHTTPAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       0, // No timeout for streaming
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", ln.Addr().String()).
			Bool("h2c", s.cfg.Server.EnableH2C).
			Bool("auth", s.cfg.Auth.Enable).
			Msg("Starting HTTP server")
		if err := s.httpServer.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the server and closes the store
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server...")

	var lastErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			lastErr = err
		}
	}
	if err := s.close(); err != nil {
		lastErr = err
	}
	return lastErr
}

func (s *Server) close() error {
	if s.keyCache != nil {
		s.keyCache.Close()
	}
	return s.store.Close()
}
