package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/history"
)

// HandleListChats returns the caller's translation sessions.
// GET /api/chats
func HandleListChats(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		chats, err := store.ListChats(currentUser(c))
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chats": chats})
	}
}

// HandleCreateChat starts a new translation session.
// POST /api/chats
func HandleCreateChat(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Title string `json:"title"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
			req.Title = "New session"
		}

		chat, err := store.CreateChat(currentUser(c), req.Title)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusCreated, chat)
	}
}

// HandleChatMessages returns a session's recorded runs.
// GET /api/chats/:chat_id/messages
func HandleChatMessages(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("chat_id")
		chat, err := store.GetChat(chatID)
		if errors.Is(err, sql.ErrNoRows) {
			notFoundResponse(c, "chat")
			return
		}
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		if chat.User != currentUser(c) {
			errorResponse(c, http.StatusForbidden, "chat belongs to another user")
			return
		}

		msgs, err := store.Messages(chatID)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chat": chat, "messages": msgs})
	}
}

// HandleDeleteChat removes a session and its messages.
// DELETE /api/chats/:chat_id
func HandleDeleteChat(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("chat_id")
		chat, err := store.GetChat(chatID)
		if errors.Is(err, sql.ErrNoRows) {
			notFoundResponse(c, "chat")
			return
		}
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		if chat.User != currentUser(c) {
			errorResponse(c, http.StatusForbidden, "chat belongs to another user")
			return
		}

		if err := store.DeleteChat(chatID); err != nil {
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": chatID})
	}
}
