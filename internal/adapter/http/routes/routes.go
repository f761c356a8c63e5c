package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/jefferypippitt/essential-todo/internal/adapter/http/handler"
	"github.com/jefferypippitt/essential-todo/internal/adapter/http/middleware"
	"github.com/jefferypippitt/essential-todo/internal/core/telemetry"
	"github.com/jefferypippitt/essential-todo/pkg/config"
	"github.com/jefferypippitt/essential-todo/pkg/logger"
)

type HandlersConfig struct {
	TodoHandler   *handler.TodoHandler
	HealthHandler *handler.HealthHandler
}

func SetupRouter(handlers HandlersConfig, cfg *config.Config, metrics *telemetry.AppMetrics, log *logger.LokiLogger, store middleware.Store) *gin.Engine {
	gin.SetMode(cfg.Server.GinMode)

	router := gin.New()

	middleware.Setup(router, cfg, metrics, log, store)

	RegisterRoutes(router, handlers)

	return router
}

// RegisterRoutes binds the handlers without any middleware.
func RegisterRoutes(router gin.IRouter, handlers HandlersConfig) {
	if handlers.HealthHandler != nil {
		router.GET("/health", handlers.HealthHandler.Health)
	}

	if handlers.TodoHandler != nil {
		setupTodoRoutes(router, handlers.TodoHandler)
	}
}

func setupTodoRoutes(router gin.IRouter, todoHandler *handler.TodoHandler) {
	todos := router.Group("/todos")
	{
		todos.GET("", todoHandler.GetAllTodos)
		todos.POST("", todoHandler.CreateTodo)
		todos.POST("/reorder", todoHandler.ReorderTodos)
		todos.GET("/:id", todoHandler.GetTodo)
		todos.PUT("/:id", todoHandler.UpdateTodo)
		todos.PATCH("/:id/toggle", todoHandler.ToggleTodo)
		todos.DELETE("/:id", todoHandler.DeleteTodo)
	}
}
