package handlers

import "github.com/gin-gonic/gin"

// Router bundles the HTTP handlers registered behind authentication.
type Router struct {
	Users   *UserHandler
	Friends *FriendHandler
	Chats   *ChatHandler
	Groups  *GroupHandler
}

// Register mounts every authenticated route on r.
func (rt Router) Register(r gin.IRouter, auth gin.HandlerFunc) {
	api := r.Group("/", auth)

	api.GET("/users/search", rt.Users.Search)

	api.POST("/friends/requests", rt.Friends.SendRequest)
	api.GET("/friends/requests/received", rt.Friends.ListReceived)
	api.GET("/friends/requests/sent", rt.Friends.ListSent)
	api.POST("/friends/requests/:request_id/respond", rt.Friends.Respond)
	api.GET("/friends", rt.Friends.ListFriends)
	api.GET("/friends/status/:user_id", rt.Friends.Status)
	api.DELETE("/friends/:friend_id", rt.Friends.RemoveFriend)

	api.GET("/conversations", rt.Chats.ListConversations)
	api.POST("/conversations/direct/:user_id", rt.Chats.OpenDirect)
	api.GET("/conversations/:conversation_id/messages", rt.Chats.History)
	api.POST("/conversations/:conversation_id/messages", rt.Chats.SendMessage)
	api.POST("/conversations/:conversation_id/media", rt.Chats.UploadMedia)
	api.POST("/conversations/:conversation_id/read", rt.Chats.MarkConversationRead)

	api.GET("/messages/unread", rt.Chats.UnreadCount)
	api.POST("/messages/:message_id/read", rt.Chats.MarkRead)
	api.DELETE("/messages/:message_id", rt.Chats.DeleteMessage)
	api.POST("/messages/:message_id/recall", rt.Chats.RecallMessage)
	api.POST("/messages/:message_id/forward", rt.Chats.ForwardMessage)

	api.POST("/groups", rt.Groups.CreateGroup)
	api.GET("/groups", rt.Groups.ListGroups)
	api.GET("/groups/:group_id", rt.Groups.GetGroup)
	api.PATCH("/groups/:group_id", rt.Groups.RenameGroup)
	api.DELETE("/groups/:group_id", rt.Groups.DeleteGroup)
	api.POST("/groups/:group_id/members", rt.Groups.AddMember)
	api.DELETE("/groups/:group_id/members/:user_id", rt.Groups.RemoveMember)
	api.POST("/groups/:group_id/leave", rt.Groups.LeaveGroup)
	api.GET("/groups/:group_id/messages", rt.Groups.GetGroupMessages)
	api.POST("/groups/:group_id/messages", rt.Groups.PostGroupMessage)
	api.POST("/groups/:group_id/media", rt.Groups.UploadGroupMedia)
}
