package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onboardly/onboardly/internal/config"
	"github.com/onboardly/onboardly/internal/errors"
	"github.com/onboardly/onboardly/internal/logging"
	"github.com/onboardly/onboardly/internal/metrics"
	"github.com/onboardly/onboardly/internal/models"
	"github.com/onboardly/onboardly/internal/platform"
	"github.com/onboardly/onboardly/internal/provision"
	"github.com/onboardly/onboardly/internal/refresh"
	"github.com/onboardly/onboardly/internal/store"
)

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	cfg         config.Config
	store       store.Store
	workflow    *provision.Workflow
	platform    platform.Client
	scheduler   *refresh.Scheduler
	metrics     *metrics.Metrics
	logger      *logging.Logger
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new API server
func NewServer(cfg config.Config, st store.Store, wf *provision.Workflow, pc platform.Client, sched *refresh.Scheduler, logger *logging.Logger, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)

	requestsPerMinute := cfg.API.RateLimit.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1000
	}
	burst := cfg.API.RateLimit.Burst
	if burst <= 0 {
		burst = 100
	}
	rateLimiter := newIPRateLimiter(time.Minute/time.Duration(requestsPerMinute), burst)

	server := &Server{
		router:      gin.New(),
		cfg:         cfg,
		store:       st,
		workflow:    wf,
		platform:    pc,
		scheduler:   sched,
		metrics:     m,
		logger:      logger,
		rateLimiter: rateLimiter,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	server.router.Use(rateLimitMiddleware(rateLimiter))
	server.router.Use(bodyLimitMiddleware(1 << 20))
	server.router.Use(metrics.Middleware(m, logger))
	server.router.Use(loggingMiddleware(logger))
	if cfg.API.CORS.Enabled {
		server.router.Use(corsMiddleware(cfg.API.CORS))
	}

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start).Seconds()
		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	origins := strings.Join(cfg.Origins, ", ")
	if origins == "" {
		origins = "*"
	}
	methods := strings.Join(cfg.Methods, ", ")
	if methods == "" {
		methods = "GET, POST, OPTIONS"
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origins)
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Correlation-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// No authentication on metrics and health
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/health", s.handleHealth)

	authMiddleware := APIKeyAuth(s.cfg.API.Auth.APIKeys, s.cfg.API.Auth.HeaderName, s.logger)

	authed := s.router.Group("")
	authed.Use(authMiddleware)
	{
		authed.POST("/accountCreationSSE", s.handleProvision)
		authed.GET("/agency-token", s.handleAgencyToken)
		authed.GET("/api/auth/callback", s.handleOAuthCallback)
		authed.POST("/api/location-token", s.handleLocationToken)
	}
}

// handleProvision runs one provisioning workflow, streaming progress to the
// caller until the terminal event.
func (s *Server) handleProvision(c *gin.Context) {
	var req models.ProvisioningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}

	stream := newSSEStream(c, s.logger)

	// A dropped client must not cancel in-flight platform calls; the run
	// completes and later stream writes turn into no-ops.
	ctx := context.WithoutCancel(c.Request.Context())
	s.workflow.Run(ctx, &req, stream)
}

// handleOAuthCallback exchanges the authorization code and stores the
// resulting credential under its owning agency.
func (s *Server) handleOAuthCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "code query parameter is required"})
		return
	}

	pair, err := s.platform.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "code exchange failed", "error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"message": "authorization code exchange failed"})
		return
	}

	ownerID := pair.CompanyID
	if ownerID == "" {
		ownerID = s.cfg.Platform.AgencyID
	}

	cred := &models.Credential{
		OwnerID:      ownerID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		IssuedAt:     time.Now(),
		UserID:       pair.UserID,
		LocationID:   pair.LocationID,
	}
	if err := s.store.UpsertCredential(cred); err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "credential persist failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to store credential"})
		return
	}

	s.logger.InfoWithContext(c.Request.Context(), "credential stored", "owner_id", ownerID)
	c.JSON(http.StatusOK, gin.H{"message": "authorization complete", "owner_id": ownerID})
}

// handleAgencyToken returns the most recently updated stored credential.
func (s *Server) handleAgencyToken(c *gin.Context) {
	cred, ok := s.store.LatestCredential()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no credential stored"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner_id":      cred.OwnerID,
		"access_token":  cred.AccessToken,
		"refresh_token": cred.RefreshToken,
		"expires_at":    cred.ExpiresAt().UTC(),
	})
}

type locationTokenRequest struct {
	LocationID string `json:"location_id" binding:"required"`
	AgencyID   string `json:"agency_id"`
}

// handleLocationToken issues a sub-token scoped to one tenant.
func (s *Server) handleLocationToken(c *gin.Context) {
	var req locationTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "location_id is required"})
		return
	}

	agencyID := req.AgencyID
	if agencyID == "" {
		agencyID = s.cfg.Platform.AgencyID
	}

	cred, ok := s.store.GetCredential(agencyID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": (&errors.ErrCredentialNotFound{OwnerID: agencyID}).Error()})
		return
	}

	token, err := s.platform.LocationToken(c.Request.Context(), cred.AccessToken, agencyID, req.LocationID)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "location token failed",
			"location_id", req.LocationID, "error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"message": "location token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"scheduler": s.scheduler != nil && s.scheduler.IsRunning(),
	})
}

// Run starts the HTTP or HTTPS server based on TLS configuration
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.HTTPPort)

	if s.cfg.Server.TLS.Enabled {
		return s.RunTLS()
	}

	if err := s.startScheduler(); err != nil {
		return err
	}

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// RunTLS starts the HTTPS server with TLS configuration
func (s *Server) RunTLS() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.HTTPPort)
	tlsCfg := s.cfg.Server.TLS

	s.logger.Info("starting HTTPS server", "addr", addr, "cert_file", tlsCfg.CertFile, "min_version", tlsCfg.MinVersion)

	if err := s.startScheduler(); err != nil {
		return err
	}

	srv, err := NewHTTPSServerWithConfig(addr, tlsCfg.CertFile, tlsCfg.KeyFile, tlsCfg.MinVersion, s.router)
	if err != nil {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	s.httpServer = srv

	return s.httpServer.ListenAndServeTLS("", "")
}

// StartWithServer starts the server with a pre-configured http.Server
func (s *Server) StartWithServer(srv *http.Server) error {
	if err := s.startScheduler(); err != nil {
		return err
	}
	s.httpServer = srv
	s.logger.Info("starting HTTP server", "addr", srv.Addr)
	return srv.ListenAndServe()
}

func (s *Server) startScheduler() error {
	if s.scheduler == nil || !s.cfg.Scheduler.Enabled {
		return nil
	}
	return s.scheduler.Start(context.Background())
}

// Shutdown gracefully shuts down the server and its components
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	var wg sync.WaitGroup
	errs := make(chan error, 3)

	if s.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("shutting down HTTP server")
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Error("HTTP server shutdown error", "error", err.Error())
				errs <- &errors.ErrServerShutdown{Err: err}
			}
		}()
	}

	if s.scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.scheduler.Stop(); err != nil {
				errs <- fmt.Errorf("scheduler stop: %w", err)
			}
		}()
	}

	if s.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Close(); err != nil {
				errs <- fmt.Errorf("store close: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(errs)
	var errList []error
	for err := range errs {
		if err != nil {
			errList = append(errList, err)
		}
	}
	if len(errList) > 0 {
		return fmt.Errorf("shutdown errors: %v", errList)
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}
