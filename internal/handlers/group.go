package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GroupHandler manages group-related endpoints.
type GroupHandler struct {
	groups GroupService
	media  mediaUploader
	audit  Auditor
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups GroupService, store MediaStore, maxUploadBytes int64, audit Auditor) *GroupHandler {
	return &GroupHandler{
		groups: groups,
		media:  mediaUploader{store: store, maxBytes: maxUploadBytes},
		audit:  audit,
	}
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name      string   `json:"name" binding:"required"`
		MemberIDs []string `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "invalid request payload")
		badRequest(c, err)
		return
	}

	group, err := h.groups.Create(c.Request.Context(), req.Name, currentUser(c), req.MemberIDs)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "create group failed")
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "Group created")
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// ListGroups returns groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groups.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup handles GET /groups/:group_id.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), c.Param("group_id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// RenameGroup handles PATCH /groups/:group_id.
func (h *GroupHandler) RenameGroup(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	group, err := h.groups.Rename(c.Request.Context(), c.Param("group_id"), currentUser(c), req.Name)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "rename group failed")
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Group renamed")
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// DeleteGroup handles DELETE /groups/:group_id.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	if err := h.groups.Delete(c.Request.Context(), c.Param("group_id"), currentUser(c)); err != nil {
		emitAudit(c, h.audit, "ERROR", "delete group failed")
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Group deleted")
	c.Status(http.StatusNoContent)
}

// AddMember handles POST /groups/:group_id/members.
func (h *GroupHandler) AddMember(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	group, err := h.groups.AddMember(c.Request.Context(), c.Param("group_id"), currentUser(c), req.UserID)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "add member failed")
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Group member added")
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// RemoveMember handles DELETE /groups/:group_id/members/:user_id.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	group, err := h.groups.RemoveMember(c.Request.Context(), c.Param("group_id"), currentUser(c), c.Param("user_id"))
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "remove member failed")
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Group member removed")
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// LeaveGroup handles POST /groups/:group_id/leave.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	result, err := h.groups.Leave(c.Request.Context(), c.Param("group_id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Group left")
	c.JSON(http.StatusOK, result)
}

// GetGroupMessages returns messages in the group.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	before, limit, err := pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	msgs, err := h.groups.History(c.Request.Context(), c.Param("group_id"), currentUser(c), before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostGroupMessage handles POST /groups/:group_id/messages.
func (h *GroupHandler) PostGroupMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "invalid request payload")
		badRequest(c, err)
		return
	}
	msg, err := h.groups.SendMessage(c.Request.Context(), c.Param("group_id"), currentUser(c), req.Type, req.Content, req.Attachments)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "group message failed")
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Group message sent")
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// UploadGroupMedia handles POST /groups/:group_id/media.
func (h *GroupHandler) UploadGroupMedia(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), c.Param("group_id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	attachments, msgType, err := h.media.collect(c, "groups/"+group.ID)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "media upload failed")
		respondError(c, err)
		return
	}
	msg, err := h.groups.SendMessage(c.Request.Context(), group.ID, currentUser(c), msgType, c.PostForm("content"), attachments)
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Group media message sent")
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
