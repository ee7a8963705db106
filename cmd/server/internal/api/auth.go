package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deephabiswashi/vasha/cmd/server/internal/middleware"
	"github.com/deephabiswashi/vasha/cmd/server/internal/users"
)

// TokenTTL is how long issued bearer tokens stay valid.
const TokenTTL = 24 * time.Hour

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleLogin exchanges credentials for a bearer token.
// POST /api/auth/login
func HandleLogin(manager *users.Manager, secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "username and password are required")
			return
		}

		u, err := manager.Authenticate(req.Username, req.Password)
		if err != nil {
			errorResponse(c, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := middleware.NewToken(secret, u.Username, TokenTTL)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"username":   u.Username,
			"expires_in": int(TokenTTL.Seconds()),
		})
	}
}

// HandleRegister creates an account.
// POST /api/auth/register
func HandleRegister(manager *users.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "username and password are required")
			return
		}

		u, err := manager.Create(req.Username, req.Password)
		if errors.Is(err, users.ErrUserExists) {
			errorResponse(c, http.StatusConflict, "username is taken")
			return
		}
		if err != nil {
			badRequestResponse(c, err.Error())
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// HandleChangePassword rotates the authenticated user's password.
// POST /api/auth/password
func HandleChangePassword(manager *users.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "old_password and new_password are required")
			return
		}

		err := manager.ChangePassword(currentUser(c), req.OldPassword, req.NewPassword)
		if errors.Is(err, users.ErrInvalidCredentials) {
			errorResponse(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if errors.Is(err, users.ErrNotFound) {
			notFoundResponse(c, "user")
			return
		}
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"changed": true})
	}
}
