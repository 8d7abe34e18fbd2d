package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainoauth "github.com/pulsemetrics/insights-auth/internal/domain/oauth"
	"github.com/pulsemetrics/insights-auth/internal/http/middleware"
	"github.com/pulsemetrics/insights-auth/internal/service"
	authsvc "github.com/pulsemetrics/insights-auth/internal/service/auth"
)

// AuthHandler serves the session and Google connection endpoints.
type AuthHandler struct {
	Auth        *service.AuthService
	OAuth       authsvc.OAuthService
	FrontendURL string
	Logger      *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, oauth authsvc.OAuthService, frontendURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, OAuth: oauth, FrontendURL: strings.TrimRight(frontendURL, "/"), Logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register creates an account and returns session tokens.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	pair, err := h.Auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pair)
}

// Login authenticates and returns session tokens.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	pair, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Refresh mints a new access token from a refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	access, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

// Logout revokes the presented refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	h.Auth.Logout(c.Request.Context(), req.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	user, err := h.Auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                   user.ID,
		"email":                user.Email,
		"subscription_tier":    user.SubscriptionTier,
		"daily_digest_enabled": user.DailyDigestEnabled,
		"created_at":           user.CreatedAt,
	})
}

// GoogleConnect issues an authorization URL for the authenticated user.
func (h *AuthHandler) GoogleConnect(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	authURL, err := h.OAuth.AuthorizationURL(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"message":  "Redirect user to this URL to authorize Google Analytics access",
	})
}

// GoogleCallback handles the provider redirect and forwards the outcome to
// the frontend. Denial is a normal terminal outcome, not an error.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		h.log().Warn("oauth denied by user", zap.String("error", providerErr))
		h.redirectOutcome(c, "denied", "You denied access to Google Analytics")
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if strings.TrimSpace(code) == "" || strings.TrimSpace(state) == "" {
		h.redirectOutcome(c, "error", "code and state are required")
		return
	}

	result, err := h.OAuth.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		h.log().Error("oauth callback failed", zap.Error(err))
		h.redirectOutcome(c, "error", callbackErrorMessage(err))
		return
	}

	h.log().Info("oauth connection established", zap.Int64("user_id", result.UserID))
	h.redirectOutcome(c, "success", "")
}

// GoogleStatus reports whether the user has a usable Google connection.
func (h *AuthHandler) GoogleStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	_, err := h.OAuth.ValidAccessToken(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domainoauth.ErrNotConnected) ||
			errors.Is(err, domainoauth.ErrNoRefreshToken) {
			c.JSON(http.StatusOK, gin.H{"connected": false, "message": "Google account not connected"})
			return
		}
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "message": "Google account connected"})
}

// GoogleDisconnect removes the stored Google credentials.
func (h *AuthHandler) GoogleDisconnect(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if err := h.OAuth.Disconnect(c.Request.Context(), userID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Google account disconnected"})
}

// Healthz reports liveness.
func (h *AuthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) redirectOutcome(c *gin.Context, outcome, message string) {
	target := h.FrontendURL + "/?oauth=" + outcome
	if message != "" {
		target += "&message=" + url.QueryEscape(message)
	}
	c.Redirect(http.StatusFound, target)
}

func (h *AuthHandler) respondServiceError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
		return
	}
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Message})
		return
	}
	switch {
	case errors.Is(err, domainoauth.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, domainoauth.ErrInvalidState),
		errors.Is(err, domainoauth.ErrExchangeFailed),
		errors.Is(err, domainoauth.ErrMissingTokens),
		errors.Is(err, domainoauth.ErrNoRefreshToken),
		errors.Is(err, domainoauth.ErrRefreshFailed),
		errors.Is(err, domainoauth.ErrNotConnected):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		h.log().Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// callbackErrorMessage keeps internal wrapping out of the redirect while
// preserving the sentinel messages the frontend displays.
func callbackErrorMessage(err error) string {
	for _, sentinel := range []error{
		domainoauth.ErrInvalidState,
		domainoauth.ErrExchangeFailed,
		domainoauth.ErrMissingTokens,
		domainoauth.ErrInvalidRequest,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "authentication failed"
}

func (h *AuthHandler) log() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}
