package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
)

// FriendHandler serves the friend request workflow.
type FriendHandler struct {
	friends FriendService
	audit   Auditor
}

func NewFriendHandler(friends FriendService, audit Auditor) *FriendHandler {
	return &FriendHandler{friends: friends, audit: audit}
}

// SendRequest handles POST /friends/requests.
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req struct {
		ReceiverID string `json:"receiver_id" binding:"required"`
		Message    string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "invalid request payload")
		badRequest(c, err)
		return
	}

	fr, err := h.friends.SendRequest(c.Request.Context(), currentUser(c), req.ReceiverID, req.Message)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "friend request failed")
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "Friend request sent")
	c.JSON(http.StatusCreated, gin.H{"friend_request": fr})
}

// ListReceived handles GET /friends/requests/received.
func (h *FriendHandler) ListReceived(c *gin.Context) {
	reqs, err := h.friends.ListReceived(c.Request.Context(), currentUser(c), models.FriendRequestStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// ListSent handles GET /friends/requests/sent.
func (h *FriendHandler) ListSent(c *gin.Context) {
	reqs, err := h.friends.ListSent(c.Request.Context(), currentUser(c), models.FriendRequestStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// Respond handles POST /friends/requests/:request_id/respond.
func (h *FriendHandler) Respond(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "invalid request payload")
		badRequest(c, err)
		return
	}

	result, err := h.friends.Respond(c.Request.Context(), c.Param("request_id"), currentUser(c), req.Action)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "friend request response failed")
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "Friend request "+string(result.Request.Status))
	c.JSON(http.StatusOK, result)
}

// ListFriends handles GET /friends.
func (h *FriendHandler) ListFriends(c *gin.Context) {
	friends, err := h.friends.ListFriends(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// Status handles GET /friends/status/:user_id.
func (h *FriendHandler) Status(c *gin.Context) {
	status, err := h.friends.Status(c.Request.Context(), currentUser(c), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// RemoveFriend handles DELETE /friends/:friend_id.
func (h *FriendHandler) RemoveFriend(c *gin.Context) {
	if err := h.friends.RemoveFriend(c.Request.Context(), currentUser(c), c.Param("friend_id")); err != nil {
		emitAudit(c, h.audit, "ERROR", "remove friend failed")
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Friend removed")
	c.Status(http.StatusNoContent)
}
