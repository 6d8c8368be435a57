package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuanpham2xx3/LOTOTET-sub000/store"
)

// Admin exposes operator-only views, guarded by the shared admin password.
type Admin struct {
	rooms    store.RoomStore
	password string
}

func NewAdmin(rooms store.RoomStore, password string) *Admin {
	return &Admin{rooms: rooms, password: password}
}

func (a *Admin) authorized(c *gin.Context) bool {
	// An unset password disables the admin surface entirely.
	return a.password != "" && c.GetHeader("X-Admin-Password") == a.password
}

// Rooms lists every live room snapshot.
func (a *Admin) Rooms(c *gin.Context) {
	if !a.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	rooms, err := a.rooms.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rooms), "rooms": rooms})
}

// Room returns one room snapshot.
func (a *Admin) Room(c *gin.Context) {
	if !a.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	room, err := a.rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, room)
}
