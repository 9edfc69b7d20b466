package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/wikicomments/backend/internal/config"
	"github.com/emilythestrangee/wikicomments/backend/internal/flash"
	"github.com/emilythestrangee/wikicomments/backend/internal/handlers"
	"github.com/emilythestrangee/wikicomments/backend/internal/middleware"
)

// HealthChecker reports backing store health.
type HealthChecker interface {
	Health() map[string]string
}

type Server struct {
	conf         config.HTTPServer
	db           HealthChecker
	handler      *handlers.Handler
	templates    *template.Template
	jwtSecret    []byte
	contentTypes []string
	logger       *slog.Logger
	http         *http.Server
}

type Deps struct {
	DB           HealthChecker
	Handler      *handlers.Handler
	Templates    *template.Template
	JWTSecret    []byte
	ContentTypes []string
	Logger       *slog.Logger
}

// NewServer creates and configures a new server
func NewServer(conf config.HTTPServer, deps Deps) *Server {
	s := &Server{
		conf:         conf,
		db:           deps.DB,
		handler:      deps.Handler,
		templates:    deps.Templates,
		jwtSecret:    deps.JWTSecret,
		contentTypes: deps.ContentTypes,
		logger:       deps.Logger,
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", conf.BindAddress, conf.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  conf.IdleTimeout,
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
	}
	return s
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.logger))
	r.HandleMethodNotAllowed = true
	r.SetHTMLTemplate(s.templates)

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.conf.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Front page; post_comment falls back to it when no next target is given.
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":       "wikicomments",
			"content_types": s.contentTypes,
		})
	})

	r.GET("/health", func(c *gin.Context) {
		stats := s.db.Health()
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})

	r.GET("/messages", flash.Pop)

	auth := middleware.AuthMiddleware(s.jwtSecret)
	viewer := middleware.OptionalAuth(s.jwtSecret)

	comments := r.Group("/comments")
	{
		comments.GET("/fetch/", viewer, s.handler.Comment.FetchComment)
		comments.GET("/form", viewer, s.handler.Comment.SecurityData)

		comments.POST("/post/", auth, s.handler.Comment.PostComment)
		comments.POST("/edit/", auth, s.handler.Comment.EditComment)
		comments.POST("/delete/", auth, s.handler.Comment.DeleteComment)
	}

	api := r.Group("/api")
	{
		api.POST("/register", s.handler.Auth.Register)
		api.POST("/login", s.handler.Auth.Login)
		api.POST("/logout", s.handler.Auth.Logout)
		api.GET("/me", auth, s.handler.Auth.GetMe)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.conf.ShutdownTimeout)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
