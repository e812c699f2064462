// Package api implements the HTTP surface (§6) of the documentation
// pipeline: authentication, project CRUD, per-stage and full-workflow
// execution, progress snapshots, SSE event streaming, and export
// download, all behind a bearer-JWT authentication and per-project
// permission check.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	emw "github.com/labstack/echo/v5/middleware"

	"github.com/itechmeat/jeex/pkg/auth"
	"github.com/itechmeat/jeex/pkg/config"
	"github.com/itechmeat/jeex/pkg/database"
	"github.com/itechmeat/jeex/pkg/docrepo"
	"github.com/itechmeat/jeex/pkg/execrepo"
	"github.com/itechmeat/jeex/pkg/export"
	"github.com/itechmeat/jeex/pkg/orchestrator"
	"github.com/itechmeat/jeex/pkg/projectrepo"
	"github.com/itechmeat/jeex/pkg/ratelimit"
	"github.com/itechmeat/jeex/pkg/streaming"
	"github.com/itechmeat/jeex/pkg/tenantctx"
	"github.com/itechmeat/jeex/pkg/workflow"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg          *config.Config
	db           *database.Client
	auth         *auth.Service
	projects     *projectrepo.Repository
	documents    *docrepo.Repository
	executions   *execrepo.Repository
	orchestrator *orchestrator.Orchestrator
	workflow     *workflow.Engine
	hub          *streaming.Hub
	scopes       *streaming.ScopeRegistry
	exports      *export.Service
	limiter      *ratelimit.Limiter
}

// NewServer creates a new API server with Echo v5 and registers every
// route named in §6's HTTP surface table.
func NewServer(
	cfg *config.Config,
	db *database.Client,
	authSvc *auth.Service,
	projects *projectrepo.Repository,
	documents *docrepo.Repository,
	executions *execrepo.Repository,
	orch *orchestrator.Orchestrator,
	wf *workflow.Engine,
	hub *streaming.Hub,
	scopes *streaming.ScopeRegistry,
	exports *export.Service,
	limiter *ratelimit.Limiter,
) *Server {
	e := echo.New()

	s := &Server{
		echo:         e,
		cfg:          cfg,
		db:           db,
		auth:         authSvc,
		projects:     projects,
		documents:    documents,
		executions:   executions,
		orchestrator: orch,
		workflow:     wf,
		hub:          hub,
		scopes:       scopes,
		exports:      exports,
		limiter:      limiter,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every route in §6's HTTP surface table.
func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	s.echo.Use(emw.BodyLimit(maxRequestBodyBytes))

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", s.registerHandler)
	authGroup.POST("/login", s.loginHandler, s.rateLimited("login", loginRateLimitKey))
	authGroup.POST("/refresh", s.refreshHandler)
	authGroup.POST("/logout", s.logoutHandler, s.authenticate)
	authGroup.GET("/me", s.meHandler, s.authenticate)
	authGroup.POST("/validate-token", s.validateTokenHandler)
	authGroup.GET("/blacklist/stats", s.blacklistStatsHandler, s.authenticate, requireSuperuser)

	projects := v1.Group("/projects", s.authenticate)
	projects.GET("", s.listProjectsHandler)
	projects.POST("", s.createProjectHandler)
	projects.GET("/:id", s.getProjectHandler, s.requireProjectPermission(tenantctx.PermProjectRead))
	projects.PUT("/:id", s.updateProjectHandler, s.requireProjectPermission(tenantctx.PermProjectWrite))
	projects.DELETE("/:id", s.deleteProjectHandler, s.requireProjectPermission(tenantctx.PermProjectDelete))

	for n := 1; n <= 4; n++ {
		projects.POST("/:id/step"+stageSuffix(n), s.stageHandler(n),
			s.requireProjectPermission(tenantctx.PermAgentExecute))
	}
	projects.GET("/:id/progress", s.progressHandler, s.requireProjectPermission(tenantctx.PermProjectRead))
	projects.GET("/:id/events", s.eventsHandler, s.requireProjectPermission(tenantctx.PermProjectRead))
	projects.POST("/:id/export", s.createExportHandler, s.requireProjectPermission(tenantctx.PermExportDocuments))

	v1.GET("/exports/:id", s.downloadExportHandler, s.authenticate)

	agents := v1.Group("/agents")
	agents.POST("/workflow/execute-stream", s.executeWorkflowStreamHandler, s.authenticate)
	agents.GET("/health", s.agentsHealthHandler)
}

// loginRateLimitKey scopes the login rate limit by client IP, per §5's
// "rate-limit keys are per (client, endpoint)" policy.
func loginRateLimitKey(c *echo.Context) string {
	return "ratelimit:login:" + c.RealIP()
}

func stageSuffix(n int) string {
	return [...]string{"1", "2", "3", "4"}[n-1]
}

// Start starts the HTTP server on the given address. It blocks until the
// server stops and returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
