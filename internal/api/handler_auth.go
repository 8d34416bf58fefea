package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greenhouse-backend/internal/auth"
	"greenhouse-backend/internal/store"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login and returns a bearer token.
func (h *Handler) Login(c *gin.Context) {
	if len(h.jwtSecret) == 0 {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication is disabled"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		h.logger.Info("login rejected", zap.String("email", user.Email))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	role, ok := auth.NormalizeRole(user.Role)
	if !ok {
		role = auth.RoleViewer
	}
	// Tokens expire on the wall clock, not the schedule clock.
	now := time.Now()
	token, err := auth.IssueJWT(user.ID, user.Email, role, h.jwtSecret, h.tokenTTL, now)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": now.Add(h.tokenTTL),
		"role":      role,
	})
}
