package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
)

// ChatHandler serves conversations and the messages inside them.
type ChatHandler struct {
	conversations ConversationService
	messages      MessageService
	media         mediaUploader
	audit         Auditor
}

func NewChatHandler(conversations ConversationService, messages MessageService, store MediaStore, maxUploadBytes int64, audit Auditor) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		messages:      messages,
		media:         mediaUploader{store: store, maxBytes: maxUploadBytes},
		audit:         audit,
	}
}

type sendMessageRequest struct {
	Type        models.MessageType `json:"type"`
	Content     string             `json:"content"`
	Attachments models.Attachments `json:"attachments"`
}

// ListConversations handles GET /conversations.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	list, err := h.conversations.ListForUser(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

// OpenDirect handles POST /conversations/direct/:user_id.
func (h *ChatHandler) OpenDirect(c *gin.Context) {
	conv, err := h.conversations.OpenDirect(c.Request.Context(), currentUser(c), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// History handles GET /conversations/:conversation_id/messages.
func (h *ChatHandler) History(c *gin.Context) {
	before, limit, err := pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	msgs, err := h.messages.History(c.Request.Context(), c.Param("conversation_id"), currentUser(c), before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage handles POST /conversations/:conversation_id/messages.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "invalid request payload")
		badRequest(c, err)
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), c.Param("conversation_id"), currentUser(c), req.Type, req.Content, req.Attachments)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "send message failed")
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "Message sent")
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// UploadMedia handles POST /conversations/:conversation_id/media. The optional "content" form
// field becomes the caption.
func (h *ChatHandler) UploadMedia(c *gin.Context) {
	conv, err := h.conversations.Authorize(c.Request.Context(), c.Param("conversation_id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	attachments, msgType, err := h.media.collect(c, "conversations/"+conv.ID)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "media upload failed")
		respondError(c, err)
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), conv.ID, currentUser(c), msgType, c.PostForm("content"), attachments)
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Media message sent")
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkConversationRead handles POST /conversations/:conversation_id/read.
func (h *ChatHandler) MarkConversationRead(c *gin.Context) {
	count, err := h.messages.MarkConversationRead(c.Request.Context(), c.Param("conversation_id"), currentUser(c), "")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": count})
}

// UnreadCount handles GET /messages/unread.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	count, err := h.messages.UnreadCount(c.Request.Context(), currentUser(c), c.Query("conversation_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead handles POST /messages/:message_id/read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	msg, err := h.messages.MarkRead(c.Request.Context(), c.Param("message_id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage handles DELETE /messages/:message_id.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	msg, err := h.messages.Delete(c.Request.Context(), c.Param("message_id"), currentUser(c))
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "delete message failed")
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Message deleted")
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// RecallMessage handles POST /messages/:message_id/recall.
func (h *ChatHandler) RecallMessage(c *gin.Context) {
	msg, err := h.messages.Recall(c.Request.Context(), c.Param("message_id"), currentUser(c))
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "recall message failed")
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Message recalled")
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// ForwardMessage handles POST /messages/:message_id/forward.
func (h *ChatHandler) ForwardMessage(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversation_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.messages.Forward(c.Request.Context(), c.Param("message_id"), req.ConversationID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Message forwarded")
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
