package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/tuanpham2xx3/LOTOTET-sub000/config"
	"github.com/tuanpham2xx3/LOTOTET-sub000/controllers"
	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
	"github.com/tuanpham2xx3/LOTOTET-sub000/routes"
	"github.com/tuanpham2xx3/LOTOTET-sub000/services"
	"github.com/tuanpham2xx3/LOTOTET-sub000/store"
	"github.com/tuanpham2xx3/LOTOTET-sub000/utils/logger"
)

const (
	roomIdleAfter   = 2 * time.Hour
	hostGoneAfter   = 15 * time.Minute
	janitorInterval = time.Minute
)

// buildStores wires the shared store when reachable, degrading to the
// in-process fallback otherwise.
func buildStores(cfg *config.Config) (store.RoomStore, services.Limiter, *redis.Client) {
	local := store.NewMemory()
	localLimiter := services.NewMemoryLimiter(services.DefaultPolicy)

	rdb, err := config.SetupRedis(cfg)
	if err != nil {
		logger.Warnf("shared store unavailable, running single-instance: %v", err)
		return local, localLimiter, nil
	}

	logger.Info("connected to shared store")
	rooms := store.NewFallback(store.NewRedis(rdb), local, logger.Log)
	limiter := services.NewFallbackLimiter(
		services.NewRedisLimiter(rdb, services.DefaultPolicy), localLimiter, logger.Log)
	return rooms, limiter, rdb
}

// setupRouter initializes Gin routes and middleware
func setupRouter(hub *services.Hub, dispatcher *services.Dispatcher, lb *controllers.LoadBalancer, admin *controllers.Admin) *gin.Engine {
	r := gin.Default()

	// Middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"}, // your frontend origin
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Setup REST routes
	routes.SetupRoutes(r, lb, admin)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	// WebSocket endpoint
	r.GET("/ws", hub.HandleWebSocket(dispatcher))

	return r
}

func main() {
	cfg := config.Load()
	defer logger.Sync()

	rooms, limiter, rdb := buildStores(cfg)

	var registry services.Registry
	if rdb != nil {
		redisRegistry := services.NewRedisRegistry(rdb, rooms, logger.Log, cfg.ServerID, cfg.PublicURL, cfg.Version)
		go redisRegistry.RunHeartbeat(context.Background())
		registry = redisRegistry
	} else {
		registry = services.NewMemoryRegistry(rooms, cfg.ServerID, cfg.PublicURL, cfg.Version)
	}

	sessions := services.NewSession(rooms, logger.Log, cfg.ServerID)
	hub := services.NewHub(registry, logger.Log)
	coordinator := services.NewCoordinator(sessions, logger.Log, func(room *models.Room) {
		hub.BroadcastRoom(room.ID, services.EventNumberDrawn, room.Game)
		hub.BroadcastState(room)
	})
	defer coordinator.Stop()
	dispatcher := services.NewDispatcher(hub, sessions, coordinator, limiter, logger.Log)

	// Periodic cleanup of idle and abandoned rooms
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := sessions.CleanupIdle(ctx, roomIdleAfter, hostGoneAfter); err != nil {
				logger.Warnf("room cleanup: %v", err)
			} else if n > 0 {
				logger.Infof("room cleanup removed %d rooms", n)
			}
			cancel()
		}
	}()

	router := setupRouter(hub, dispatcher,
		controllers.NewLoadBalancer(registry),
		controllers.NewAdmin(rooms, cfg.AdminPassword))

	logger.Infof("🚀 server %s starting on port %s", cfg.ServerID, cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Errorf("failed to start server: %v", err)
	}
}
