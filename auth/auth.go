package auth

import (
	"net/http"

	"dashboard/backend"
	"dashboard/config"
	"dashboard/utils"

	"github.com/gin-gonic/gin"
)

const contextSession = "session"

// Handler exposes the service over HTTP.
type Handler struct {
	svc    *Service
	tokens *utils.TokenManager
	cfg    config.SessionConfig
	secure bool
}

func NewHandler(svc *Service, tokens *utils.TokenManager, cfg config.SessionConfig, secureCookies bool) *Handler {
	return &Handler{svc: svc, tokens: tokens, cfg: cfg, secure: secureCookies}
}

func (h *Handler) Login(c *gin.Context) {
	type Request struct {
		Phone    string `json:"phone" form:"phone"`
		Password string `json:"password" form:"password"`
	}

	var req Request
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgAllFields})
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		utils.RespondError(c, err, msgLoginFailed)
		return
	}

	h.setCookie(c, res.Tokens.AccessToken)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"data":    res,
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" form:"refresh_token"`
	}
	_ = c.ShouldBind(&req)

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		utils.RespondError(c, err, "Failed to refresh token")
		return
	}
	h.setCookie(c, pair.AccessToken)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pair})
}

// Logout finds the session from the access token (header, then cookie) or,
// failing that, the refresh token in the body.
func (h *Handler) Logout(c *gin.Context) {
	var sessionID string
	if header := c.GetHeader("Authorization"); header != "" {
		if raw, err := utils.ExtractBearer(header); err == nil {
			sessionID = h.accessSession(raw)
		}
	}
	if sessionID == "" {
		if raw, err := c.Cookie(h.cfg.CookieName); err == nil && raw != "" {
			sessionID = h.accessSession(raw)
		}
	}
	if sessionID == "" {
		var req struct {
			RefreshToken string `json:"refresh_token" form:"refresh_token"`
		}
		_ = c.ShouldBind(&req)
		if claims, err := h.tokens.ValidateToken(req.RefreshToken, utils.RefreshToken); err == nil {
			sessionID = claims.SessionID
		}
	}

	if sessionID != "" {
		_ = h.svc.Logout(c.Request.Context(), sessionID)
	}
	h.clearCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (h *Handler) accessSession(raw string) string {
	claims, err := h.tokens.ValidateToken(raw, utils.AccessToken)
	if err != nil {
		return ""
	}
	return claims.SessionID
}

func (h *Handler) Signup(c *gin.Context) {
	var req backend.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgAllFields})
		return
	}
	msg, err := h.svc.Signup(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err, "Signup failed. Please try again.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" form:"phone"`
	}
	_ = c.ShouldBind(&req)
	msg, err := h.svc.ForgotPassword(c.Request.Context(), req.Phone)
	if err != nil {
		utils.RespondError(c, err, "Failed to send OTP")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" form:"phone"`
		Code  string `json:"code" form:"code"`
	}
	_ = c.ShouldBind(&req)
	msg, err := h.svc.VerifyOTP(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		utils.RespondError(c, err, "OTP verification failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req backend.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgAllFields})
		return
	}
	msg, err := h.svc.ResetPassword(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err, "Password reset failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// SessionMiddleware resolves the session named by the access token and saves
// its state after the handler ran. It must run after utils.TokenMiddleware.
func (h *Handler) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := utils.ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header required"})
			return
		}
		sess, err := h.svc.Resolve(c.Request.Context(), claims.SessionID)
		if err != nil {
			utils.RespondError(c, err, msgSessionExpired)
			c.Abort()
			return
		}
		WithSession(c, sess)

		c.Next()

		h.svc.Flush(c.Request.Context(), sess.ID)
	}
}

// WithSession attaches sess to the request context.
func WithSession(c *gin.Context, sess *Session) {
	c.Set(contextSession, sess)
}

// SessionFrom returns the session put in place by SessionMiddleware.
func SessionFrom(c *gin.Context) *Session {
	v, _ := c.Get(contextSession)
	sess, _ := v.(*Session)
	return sess
}

func (h *Handler) setCookie(c *gin.Context, access string) {
	if h.cfg.CookieName == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, access, int(h.cfg.AccessTokenTTL.Seconds()), "/", "", h.secure, true)
}

func (h *Handler) clearCookie(c *gin.Context) {
	if h.cfg.CookieName == "" {
		return
	}
	c.SetCookie(h.cfg.CookieName, "", -1, "/", "", h.secure, true)
}
