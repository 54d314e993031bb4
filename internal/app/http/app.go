package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/VotingM7011E/VotingService/internal/handlers"
	"github.com/VotingM7011E/VotingService/internal/routes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type App struct {
	engine *gin.Engine
	server *http.Server
	port   int
}

// NewApp builds the gin engine and wires routes under /api/voting.
func NewApp(port int, handler *handlers.VotingHandler) *App {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))

	api := r.Group("/api")
	{
		votingGroup := api.Group("/voting")
		routes.RegisterRoutes(votingGroup, handler)
	}

	// Liveness probes hit the root route.
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "VotingService API running")
	})

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	return &App{
		engine: r,
		server: httpServer,
		port:   port,
	}
}

func (a *App) Run() error {
	fmt.Println("HTTP server is running on", a.server.Addr)
	return a.server.ListenAndServe()
}

func (a *App) Stop(ctx context.Context) error {
	fmt.Println("HTTP server is stopping...")
	return a.server.Shutdown(ctx)
}

func (a *App) Engine() *gin.Engine {
	return a.engine
}
