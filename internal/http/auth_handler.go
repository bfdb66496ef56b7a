package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumos-api/internal/service"
)

// AuthHandler expone magic links, Google, password, logout y tokens.
type AuthHandler struct {
	logger  *zap.Logger
	auth    *service.AuthService
	jwtServ *service.JWTService
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, jwtServ *service.JWTService) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		auth:    auth,
		jwtServ: jwtServ,
	}
}

func authPayload(result service.AuthResult, message string) gin.H {
	return gin.H{
		"user":    result.User.Profile(),
		"tokens":  result.Tokens,
		"message": message,
	}
}

// RequestMagicLink maneja POST /api/v1/users/auth/magic-link/request/.
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		IsSignup    bool   `json:"is_signup"`
		RedirectURL string `json:"redirect_url"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}

	sent, err := h.auth.RequestMagicLink(c.Request.Context(), service.MagicLinkRequest{
		Email:       req.Email,
		IsSignup:    req.IsSignup,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		if verr, ok := service.AsValidationError(err); ok {
			c.JSON(http.StatusBadRequest, verr.Fields)
			return
		}
		if errors.Is(err, service.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many magic link requests. Please try again later."})
			return
		}
		h.logger.Error("request magic link failed",
			zap.String("email", req.Email),
			zap.Bool("is_signup", req.IsSignup),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send magic link. Please try again."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    fmt.Sprintf("Magic link sent to %s", sent.Email),
		"expires_in": sent.ExpiresIn,
	})
}

// VerifyMagicLink maneja POST /api/v1/users/auth/magic-link/verify/.
func (h *AuthHandler) VerifyMagicLink(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required,max=255"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}

	result, err := h.auth.VerifyMagicLink(c.Request.Context(), req.Token, clientInfo(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMagicLinkInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid magic link"})
		case errors.Is(err, service.ErrMagicLinkExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Magic link has expired or been used"})
		default:
			h.logger.Error("verify magic link failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed. Please try again."})
		}
		return
	}

	c.JSON(http.StatusOK, authPayload(result, "Successfully authenticated"))
}

// GoogleAuth maneja POST /api/v1/users/auth/google/.
func (h *AuthHandler) GoogleAuth(c *gin.Context) {
	var req struct {
		AccessToken string `json:"access_token" binding:"required"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}

	result, err := h.auth.GoogleAuth(c.Request.Context(), req.AccessToken, clientInfo(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGoogleTokenInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Google access token"})
		case errors.Is(err, service.ErrGoogleEmailMissing):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email not provided by Google"})
		default:
			h.logger.Error("google auth failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed. Please try again."})
		}
		return
	}

	payload := authPayload(result, "Successfully authenticated with Google")
	payload["is_new_user"] = result.IsNewUser
	c.JSON(http.StatusOK, payload)
}

// PasswordLogin maneja POST /api/v1/users/auth/login/.
func (h *AuthHandler) PasswordLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}

	result, err := h.auth.PasswordLogin(c.Request.Context(), req.Email, req.Password, clientInfo(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.logger.Error("password login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed. Please try again."})
		return
	}

	c.JSON(http.StatusOK, authPayload(result, "Successfully authenticated"))
}

// SetPassword maneja POST /api/v1/users/auth/password/.
func (h *AuthHandler) SetPassword(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}

	if err := h.auth.SetPassword(c.Request.Context(), claims.UserID, req.Password); err != nil {
		if verr, ok := service.AsValidationError(err); ok {
			c.JSON(http.StatusBadRequest, verr.Fields)
			return
		}
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("set password failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not set password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// Logout maneja POST /api/v1/users/auth/logout/. El body es opcional.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Debug("ignoring logout body", zap.Error(err))
		}
	}

	if err := h.auth.Logout(c.Request.Context(), claims, req.RefreshToken); err != nil {
		h.logger.Error("logout failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// RefreshToken maneja POST /api/v1/auth/token/refresh/.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		if errors.Is(err, service.ErrJWTInvalid) || errors.Is(err, service.ErrJWTExpired) || errors.Is(err, service.ErrSessionInactive) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is invalid or expired"})
			return
		}
		h.logger.Error("refresh token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh token"})
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// VerifyToken maneja POST /api/v1/auth/token/verify/.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	if err := h.jwtServ.VerifyToken(req.Token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is invalid or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
