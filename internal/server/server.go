package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/DuyanhLexq/TikTokAPI/internal/auth"
	"github.com/DuyanhLexq/TikTokAPI/internal/comment"
	"github.com/DuyanhLexq/TikTokAPI/internal/monitor"
	"github.com/DuyanhLexq/TikTokAPI/internal/platform/tiktok"
	"github.com/DuyanhLexq/TikTokAPI/internal/ratelimit"
	"github.com/DuyanhLexq/TikTokAPI/internal/registry"
	"github.com/DuyanhLexq/TikTokAPI/internal/scraper"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

const version = "1.0.0"

var errNoStorage = errors.New("storage is disabled")

// Server represents the API server
type Server struct {
	config     *models.Config
	scraper    *scraper.Manager
	storage    models.Storage
	monitor    *monitor.Monitor
	gatherer   prometheus.Gatherer
	auth       *auth.Service
	limiter    *ratelimit.RateLimiter
	httpServer *http.Server
	logger     zerolog.Logger
	started    time.Time
}

// NewServer creates a new API server. mon may be nil; gatherer serves /metrics.
func NewServer(cfg *models.Config, mgr *scraper.Manager, mon *monitor.Monitor, gatherer prometheus.Gatherer) (*Server, error) {
	s := &Server{
		config:   cfg,
		scraper:  mgr,
		storage:  mgr.Storage(),
		monitor:  mon,
		gatherer: gatherer,
		logger:   zerolog.New(os.Stderr).With().Timestamp().Str("component", "server").Logger(),
		started:  time.Now(),
	}

	if cfg.Auth.Enabled {
		svc, err := auth.NewService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenExpiry)*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
		s.auth = svc
	}

	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.NewRateLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			WhitelistedIPs:    cfg.RateLimit.WhitelistedIPs,
		})
	}

	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return s, nil
}

// SetLogger sets the logger of the server and its middleware
func (s *Server) SetLogger(logger zerolog.Logger) {
	s.logger = logger.With().Str("component", "server").Logger()
	if s.auth != nil {
		s.auth.SetLogger(logger)
	}
	if s.limiter != nil {
		s.limiter.SetLogger(logger)
	}
}

// Router builds the HTTP handler
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(s.corsMiddleware())

	router.GET("/health", s.healthCheck)
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	if s.auth != nil {
		v1.Use(s.auth.Required())
	}
	if s.limiter != nil {
		v1.Use(s.limiter.Middleware())
	}
	{
		// Live extraction
		v1.GET("/videos/details", s.videoDetails)
		v1.GET("/users", s.userInfo)
		v1.GET("/comments", s.comments)

		// Stored records
		v1.GET("/videos", s.listVideos)
		v1.GET("/videos/:id", s.getVideo)
		v1.GET("/videos/:id/comments", s.getComments)
		v1.GET("/runs", s.listRuns)
		v1.GET("/stats", s.getStats)

		downloads := v1.Group("/downloads")
		if s.auth != nil {
			downloads.Use(auth.RoleRequired(auth.RoleAdmin))
		}
		downloads.POST("", s.download)
	}

	return router
}

// Health check handler
func (s *Server) healthCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   version,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"storage":   s.storage != nil,
	}
	if s.monitor != nil {
		response["runtime"] = s.monitor.HealthCheck()
	}
	c.JSON(http.StatusOK, response)
}

// Video details handler
func (s *Server) videoDetails(c *gin.Context) {
	url, ok := requireURL(c)
	if !ok {
		return
	}

	details, err := s.scraper.VideoDetails(c.Request.Context(), url)
	if err != nil && details == nil {
		s.fail(c, err)
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Video details not stored")
	}
	c.JSON(http.StatusOK, details)
}

// User info handler
func (s *Server) userInfo(c *gin.Context) {
	url, ok := requireURL(c)
	if !ok {
		return
	}

	info, err := s.scraper.UserInfo(c.Request.Context(), url)
	if err != nil && info == nil {
		s.fail(c, err)
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("User info not stored")
	}
	c.JSON(http.StatusOK, info)
}

// Comments handler. Partial traversals answer 200 with their status and cause.
func (s *Server) comments(c *gin.Context) {
	url, ok := requireURL(c)
	if !ok {
		return
	}

	result, run, err := s.scraper.CollectComments(c.Request.Context(), url, c.Query("ms_token"))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Comment run not stored")
	}

	status := http.StatusOK
	if result.Status == models.StatusFailed {
		status = errorStatus(result.Err)
	}

	c.JSON(status, gin.H{
		"video_id": result.VideoID,
		"status":   result.Status,
		"pages":    result.Pages,
		"total":    result.Total(),
		"error":    result.Cause(),
		"run_id":   run.ID,
		"comments": result.Comments,
	})
}

// List videos handler
func (s *Server) listVideos(c *gin.Context) {
	if !s.requireStorage(c) {
		return
	}

	filter := models.VideoFilter{
		AuthorID:  c.Query("author_id"),
		Limit:     queryInt(c, "limit", 50),
		Offset:    queryInt(c, "offset", 0),
		OrderBy:   c.Query("order_by"),
		OrderDesc: c.Query("order") != "asc",
	}

	videos, err := s.storage.ListVideos(filter)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"videos": videos,
		"total":  len(videos),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Get video handler
func (s *Server) getVideo(c *gin.Context) {
	if !s.requireStorage(c) {
		return
	}

	video, err := s.storage.GetVideoDetails(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if video == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}
	c.JSON(http.StatusOK, video)
}

// Stored comments handler
func (s *Server) getComments(c *gin.Context) {
	if !s.requireStorage(c) {
		return
	}

	id := c.Param("id")
	threads, err := s.storage.GetCommentThreads(id)
	if err != nil {
		s.fail(c, err)
		return
	}

	total := 0
	for _, t := range threads {
		total += t.CountAll()
	}
	c.JSON(http.StatusOK, gin.H{
		"video_id": id,
		"total":    total,
		"stats":    comment.GetStats(threads),
		"comments": threads,
	})
}

// Crawl runs handler
func (s *Server) listRuns(c *gin.Context) {
	if !s.requireStorage(c) {
		return
	}

	runs, err := s.storage.ListCrawlRuns(c.Query("video_id"), queryInt(c, "limit", 50))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

// Stats handler
func (s *Server) getStats(c *gin.Context) {
	if !s.requireStorage(c) {
		return
	}

	stats, err := s.storage.GetStats()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Download handler
func (s *Server) download(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.scraper.Download(c.Request.Context(), req.URL, "")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func requireURL(c *gin.Context) (string, bool) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter required"})
		return "", false
	}
	return url, true
}

func (s *Server) requireStorage(c *gin.Context) bool {
	if s.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNoStorage.Error()})
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// errorStatus maps scraper errors onto HTTP statuses
func errorStatus(err error) int {
	switch {
	case errors.Is(err, tiktok.ErrInvalidURL), errors.Is(err, registry.ErrUnsupportedURL):
		return http.StatusBadRequest
	case errors.Is(err, tiktok.ErrDataNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrTransport), errors.Is(err, tiktok.ErrAPIStatus):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil && v >= 0 {
		return v
	}
	return fallback
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		if s.monitor != nil {
			s.monitor.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), duration)
		}

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("ip", c.ClientIP()).
			Msg("Request served")
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts down
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.httpServer.Addr).Msg("Starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Stopping API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down server")
		return err
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}
