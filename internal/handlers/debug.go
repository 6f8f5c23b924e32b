package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, auditor Auditor, friends FriendService, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if auditor == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(c, auditor, "INFO", "audit test")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Recreates the friendship record for a pair whose request was accepted but whose
	// friendship row is missing.
	router.POST("/debug/friendships/repair", func(c *gin.Context) {
		var req struct {
			UserA string `json:"user_a" binding:"required"`
			UserB string `json:"user_b" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		friendship, err := friends.RepairFriendship(c.Request.Context(), req.UserA, req.UserB)
		if err != nil {
			respondError(c, err)
			return
		}
		emitAudit(c, auditor, "WARN", "Friendship repaired")
		c.JSON(http.StatusOK, gin.H{"friendship": friendship})
	})
}
