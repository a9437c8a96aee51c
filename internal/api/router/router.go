package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alpes214/crawler/internal/api/handler"
	"github.com/alpes214/crawler/internal/api/middleware"
	"github.com/alpes214/crawler/internal/controlplane"
	"github.com/alpes214/crawler/internal/proxyalloc"
	"github.com/alpes214/crawler/internal/store"
)

// SetupRouter wires the admin HTTP surface: the abstract control-plane
// operation set from spec §4.5, over gin, matching the teacher's own
// admin router layering.
func SetupRouter(db *gorm.DB, st *store.Store, cp *controlplane.ControlPlane, alloc *proxyalloc.Allocator) *gin.Engine {
	r := gin.New()
	r.Use(middleware.LoggerMiddleware())
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	taskHandler := handler.NewTaskHandler(cp, st)
	hostHandler := handler.NewHostHandler(db, alloc)

	apiV1 := r.Group("/api/v1")
	{
		tasks := apiV1.Group("/tasks")
		{
			tasks.POST("", taskHandler.Submit)
			tasks.POST("/bulk", taskHandler.SubmitBulk)
			tasks.GET("", taskHandler.Query)
			tasks.POST("/:taskId/pause", taskHandler.Pause)
			tasks.POST("/:taskId/resume", taskHandler.Resume)
			tasks.POST("/:taskId/cancel", taskHandler.Cancel)
			tasks.POST("/:taskId/restart", taskHandler.RestartFull)
			tasks.POST("/:taskId/restart-parse-only", taskHandler.RestartParseOnly)
			tasks.POST("/:taskId/priority", taskHandler.ChangePriority)
			tasks.POST("/bulk-restart-failed", taskHandler.BulkRestartFailed)
		}

		hosts := apiV1.Group("/hosts")
		{
			hosts.POST("", hostHandler.CreateHost)
			hosts.GET("", hostHandler.ListHosts)
			hosts.GET("/:hostId", hostHandler.GetHost)
			hosts.POST("/:hostId/proxies", hostHandler.BindProxy)
			hosts.DELETE("/:hostId/proxies/:proxyId", hostHandler.UnbindProxy)
			hosts.GET("/:hostId/proxies/stats", hostHandler.ProxyStats)
		}
	}

	return r
}
