package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openshelf/shelfcast/internal/config"
	"github.com/openshelf/shelfcast/internal/service"
	"github.com/openshelf/shelfcast/internal/service/platform"
	"github.com/openshelf/shelfcast/internal/service/platform/facebook"
	"github.com/openshelf/shelfcast/internal/service/platform/linkedin"
	"github.com/openshelf/shelfcast/internal/service/platform/reddit"
	"github.com/openshelf/shelfcast/internal/service/platform/x"
	"github.com/openshelf/shelfcast/internal/service/suggester"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Settings     *service.SettingsService
	Catalog      *service.CatalogService
	RunLog       *service.RunLogService
	Auth         *service.AuthService
	Manager      *platform.Manager
	Distribution *service.DistributionService
	Outreach     *service.OutreachService
	Suggestion   *service.SuggestionService
	Scheduler    *service.Scheduler
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	srv := &Server{
		Config:   cfg,
		DB:       db,
		Router:   gin.New(),
		Logger:   logger,
		Settings: service.NewSettingsService(db),
		Catalog:  service.NewCatalogService(db),
		RunLog:   service.NewRunLogService(db, logger),
		Auth:     service.NewAuthService(logger, &cfg.Auth),
		Manager:  platform.NewManager(logger),
	}

	if err := srv.wirePlatforms(); err != nil {
		return nil, err
	}

	srv.Scheduler = service.NewScheduler(&cfg.Scheduler, logger, service.Jobs{
		Daily:         srv.runDaily,
		QuarterHourly: srv.runQuarterHourly,
	})

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

// wirePlatforms registers the enabled adapters and builds the closed
// platform table the distribution cycle runs over. An adapter missing a
// required capability is a wiring error and fails construction.
func (s *Server) wirePlatforms() error {
	cfg := s.Config
	var platforms []service.Platform

	if cfg.Platforms.Reddit.Enabled {
		client := reddit.NewClient(&cfg.Platforms.Reddit, s.Logger)
		if err := s.Manager.Register(client); err != nil {
			return err
		}
		platforms = append(platforms, service.Platform{
			Tag:    "reddit",
			Kind:   service.KindLink,
			Domain: "reddit.com",
			Publish: func(ctx context.Context, content service.PostContent) (platform.Handle, error) {
				if content.BookLink == "" {
					return client.PublishText(ctx, content.Text)
				}
				return client.SubmitLink(ctx, cfg.Platforms.Reddit.Subreddit,
					content.Text, content.BookLink, cfg.Platforms.Reddit.FlairID)
			},
			Comment: client.CommentOn,
		})
	}

	if cfg.Platforms.X.Enabled {
		client := x.NewClient(&cfg.Platforms.X, s.Logger)
		if err := s.Manager.Register(client); err != nil {
			return err
		}
		platforms = append(platforms, service.Platform{
			Tag:           "x",
			Kind:          service.KindQuote,
			Domain:        "x.com",
			HashtagSuffix: cfg.Platforms.X.Hashtags,
			Publish:       publishVia(client),
		})

		s.Outreach = service.NewOutreachService(
			s.Catalog, s.Settings, client, &cfg.Outreach, s.Logger)
	}

	if cfg.Platforms.LinkedIn.Enabled {
		client := linkedin.NewClient(&cfg.Platforms.LinkedIn, s.Logger)
		if err := s.Manager.Register(client); err != nil {
			return err
		}
		platforms = append(platforms, service.Platform{
			Tag:     "linkedin",
			Kind:    service.KindQuote,
			Domain:  "linkedin.com",
			Publish: publishVia(client),
			Comment: client.CommentOn,
		})
	}

	if cfg.Platforms.Facebook.Enabled {
		client := facebook.NewClient(&cfg.Platforms.Facebook, s.Logger)
		if err := s.Manager.Register(client); err != nil {
			return err
		}
		kind := service.KindQuote
		if cfg.Platforms.Facebook.LinkMode {
			kind = service.KindLink
		}
		platforms = append(platforms, service.Platform{
			Tag:     "facebook",
			Kind:    kind,
			Domain:  "facebook.com",
			Publish: publishVia(client),
			Comment: client.CommentOn,
		})
	}

	s.Distribution = service.NewDistributionService(s.Catalog, s.Logger, platforms)

	if cfg.Platforms.Reddit.Enabled && cfg.OpenAI.APIKey != "" {
		feed, err := s.Manager.Get("reddit")
		if err != nil {
			return err
		}
		requestFeed, ok := feed.(platform.RequestFeed)
		if !ok {
			return fmt.Errorf("reddit adapter does not expose the request feed")
		}
		ranker := suggester.NewOpenAIRanker(cfg.OpenAI.APIKey, cfg.OpenAI.Model,
			cfg.Suggestion.MaxTitles, cfg.Suggestion.MinScore)
		s.Suggestion = service.NewSuggestionService(
			s.Catalog, s.Settings, requestFeed, ranker,
			&cfg.Suggestion, cfg.Library, s.Logger)
	}

	return nil
}

// publishVia is the default publish callback: image post when the content
// has a cover, text post otherwise.
func publishVia(pub platform.Publisher) func(ctx context.Context, content service.PostContent) (platform.Handle, error) {
	return func(ctx context.Context, content service.PostContent) (platform.Handle, error) {
		if content.ImageLink != "" {
			return pub.PublishWithImage(ctx, content.Text, content.ImageLink)
		}
		return pub.PublishText(ctx, content.Text)
	}
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Request id middleware
	s.Router.Use(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	})

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-TOTP-Code")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	api := s.Router.Group("/api/v1")
	{
		// Cron trigger routes, shared-secret bearer auth
		jobs := api.Group("/jobs", s.Auth.TriggerMiddleware())
		{
			jobs.POST("/daily", s.handleDaily)
			jobs.POST("/quarter-hourly", s.handleQuarterHourly)
		}

		// Manual triggers and run history, TOTP auth
		admin := api.Group("/admin", s.Auth.AdminMiddleware())
		{
			admin.POST("/jobs/:name", s.handleAdminJob)
			admin.GET("/runs", s.handleRecentRuns)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
