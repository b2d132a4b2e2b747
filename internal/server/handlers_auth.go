package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type publicUserPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type authResponsePayload struct {
	Token     string            `json:"token"`
	ExpiresIn int64             `json:"expiresIn"`
	User      publicUserPayload `json:"user"`
}

func toPublicUser(user users.User) publicUserPayload {
	return publicUserPayload{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request users.RegisterInput
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Request body must be JSON"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, "failed to register user", err)
		return
	}
	h.respondWithSession(c, http.StatusCreated, user)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Request body must be JSON"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, "failed to authenticate user", err)
		return
	}
	h.respondWithSession(c, http.StatusOK, user)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMe(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, "failed to load user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toPublicUser(user)})
}

func (h *httpHandler) respondWithSession(c *gin.Context, status int, user users.User) {
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), auth.Identity{
		Subject: user.ID,
		Email:   user.Email,
		Name:    user.Name,
	})
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err), zap.String("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed", "message": "Failed to issue token"})
		return
	}

	h.setSessionCookie(c, token, int(expiresIn))
	c.JSON(status, authResponsePayload{
		Token:     token,
		ExpiresIn: expiresIn,
		User:      toPublicUser(user),
	})
}

func (h *httpHandler) setSessionCookie(c *gin.Context, value string, maxAgeSeconds int) {
	if h.cookieSecure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(h.cookieName, value, maxAgeSeconds, "/", "", h.cookieSecure, true)
}
