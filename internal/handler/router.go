package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler the API serves
type Handlers struct {
	Auth    *AuthHandler
	Users   *UserHandler
	Chats   *ChatHandler
	Groups  *GroupHandler
	Message *MessageHandler
	Upload  *UploadHandler
	WS      *WSHandler
}

// Register mounts the /api/v1 routes and the WebSocket endpoint. requireAuth
// guards everything except register and login.
func (hs *Handlers) Register(router *gin.Engine, requireAuth gin.HandlerFunc) {
	api := router.Group("/api/v1")
	{
		// Auth routes (public)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", hs.Auth.Register)
			authGroup.POST("/login", hs.Auth.Login)
		}

		protected := api.Group("")
		protected.Use(requireAuth)
		{
			// Auth
			protected.POST("/auth/logout", hs.Auth.Logout)
			protected.GET("/auth/profile", hs.Auth.GetProfile)
			protected.PUT("/auth/profile", hs.Auth.UpdateProfile)

			// Users & contacts
			protected.GET("/users/search", hs.Users.SearchUsers)
			protected.POST("/users/devices", hs.Users.RegisterDevice)
			protected.POST("/users/push-subscriptions", hs.Users.RegisterPushSubscription)
			protected.GET("/contacts", hs.Users.ListContacts)
			protected.POST("/contacts", hs.Users.AddContact)
			protected.DELETE("/contacts/:userId", hs.Users.RemoveContact)

			// Chats
			protected.GET("/chats", hs.Chats.ListChats)
			protected.POST("/chats", hs.Chats.GetOrCreateChat)
			protected.GET("/chats/:id", hs.Chats.GetChat)
			protected.GET("/chats/:id/messages", hs.Message.ListChatMessages)
			protected.POST("/chats/:id/read", hs.Message.MarkChatRead)
			protected.GET("/chats/:id/unread", hs.Message.ChatUnreadCount)

			// Groups
			protected.GET("/groups", hs.Groups.ListGroups)
			protected.POST("/groups", hs.Groups.CreateGroup)
			protected.GET("/groups/:id", hs.Groups.GetGroup)
			protected.POST("/groups/:id/members", hs.Groups.AddMembers)
			protected.DELETE("/groups/:id/members/:userId", hs.Groups.RemoveMember)
			protected.PUT("/groups/:id/members/:userId/role", hs.Groups.UpdateMemberRole)
			protected.POST("/groups/:id/leave", hs.Groups.LeaveGroup)
			protected.GET("/groups/:id/messages", hs.Message.ListGroupMessages)
			protected.POST("/groups/:id/read", hs.Message.MarkGroupRead)
			protected.GET("/groups/:id/unread", hs.Message.GroupUnreadCount)

			// Messages
			protected.POST("/messages", hs.Message.SendMessage)
			protected.GET("/messages/:id", hs.Message.GetMessage)
			protected.DELETE("/messages/:id", hs.Message.DeleteMessage)
			protected.POST("/messages/:id/reactions", hs.Message.ToggleReaction)

			// Upload
			protected.POST("/upload", hs.Upload.UploadFile)
			protected.POST("/upload/multiple", hs.Upload.UploadMultiple)
		}
	}

	// WebSocket endpoint (auth via query parameter)
	router.GET("/ws", hs.WS.HandleWebSocket)
}
