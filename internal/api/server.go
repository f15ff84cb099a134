package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"melody-planner/internal/service"
)

// SyncStatus is what the API needs from the sync coordinator.
type SyncStatus interface {
	Status() service.SyncStatus
	Flush()
}

// Server is the HTTP boundary the view layer talks to.
type Server struct {
	store  *service.Store
	sync   SyncStatus
	inbox  *service.Inbox
	logger *log.Logger
	now    func() time.Time
	router *gin.Engine
}

// NewServer wires the routes.
func NewServer(store *service.Store, sync SyncStatus, inbox *service.Inbox, logger *log.Logger) *Server {
	router := gin.New()
	s := &Server{
		store:  store,
		sync:   sync,
		inbox:  inbox,
		logger: logger.WithPrefix("http"),
		now:    time.Now,
		router: router,
	}
	router.Use(gin.Recovery(), s.requestLog)

	api := router.Group("/api")
	{
		api.GET("/workspace", s.handleWorkspace)
		api.PUT("/workspace", s.handleUpdateWorkspace)
		api.GET("/projects/:id", s.handleProject)
		api.GET("/projects/:id/tasks", s.handleTasks)
		api.GET("/projects/:id/tags", s.handleTags)
		api.GET("/projects/:id/progress", s.handleProgress)
		api.GET("/projects/:id/board", s.handleBoard)
		api.GET("/commands", s.handleKinds)
		api.POST("/commands", s.handleCommand)
		api.GET("/sync", s.handleSync)
		api.POST("/sync/flush", s.handleFlush)
		api.GET("/reminders", s.handleReminders)
	}

	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"took", time.Since(start),
	)
}
