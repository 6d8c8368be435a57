package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuanpham2xx3/LOTOTET-sub000/services"
	"github.com/tuanpham2xx3/LOTOTET-sub000/store"
)

// LoadBalancer answers the routing questions clients ask before opening a
// websocket, so every participant of a room lands on the same instance.
type LoadBalancer struct {
	registry services.Registry
}

func NewLoadBalancer(registry services.Registry) *LoadBalancer {
	return &LoadBalancer{registry: registry}
}

// BestServer returns the online server with the fewest connections.
func (lb *LoadBalancer) BestServer(c *gin.Context) {
	rec, err := lb.registry.BestServer(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoServer) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no server online"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registry unavailable"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RoomServer returns the server owning an existing room.
func (lb *LoadBalancer) RoomServer(c *gin.Context) {
	roomID := c.Param("id")
	rec, err := lb.registry.RoomServer(c.Request.Context(), roomID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, services.ErrNoServer):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "owning server offline"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registry unavailable"})
		}
		return
	}
	c.JSON(http.StatusOK, rec)
}
