package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tuanpham2xx3/LOTOTET-sub000/controllers"
)

func SetupRoutes(r *gin.Engine, lb *controllers.LoadBalancer, admin *controllers.Admin) {
	// ----------------------
	// Load balancer routes
	// ----------------------
	r.GET("/loadbalancer/server", lb.BestServer)   // Best server for a new room
	r.GET("/loadbalancer/room/:id", lb.RoomServer) // Server owning a room

	// ----------------------
	// Admin routes (shared password)
	// ----------------------
	r.GET("/admin/rooms", admin.Rooms)
	r.GET("/admin/rooms/:id", admin.Room)
}
