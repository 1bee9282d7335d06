package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"coursetrack/internal/attendance"
	"coursetrack/internal/auth"
)

const principalKey = "principal"

type credentials struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBind(&req); err != nil {
		h.bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	usr, err := h.svc.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// a user without profile may still sign in; the dashboard signs them out again
	var role string
	if p, err := h.svc.Authorize(ctx, usr.ID); err == nil {
		role = string(p.Profile.Role)
	} else if !errors.Is(err, attendance.ErrProfileMissing) {
		h.respondError(c, err)
		return
	}

	tok, err := auth.Issue(usr.ID, role, h.cfg.Auth.Issuer, h.cfg.Auth.SigningKey, h.cfg.AccessTTL)
	if err != nil {
		h.respondError(c, errors.Wrap(err, "issue token"))
		return
	}
	h.setCookie(c, tok.Value, int(h.cfg.AccessTTL.Seconds()))
	h.log.Info("login", zap.String("user", usr.Username), zap.String("role", role))
	c.JSON(http.StatusOK, gin.H{
		"token":      tok.Value,
		"expires_at": tok.ExpiresAt.Unix(),
		"user":       usr,
		"redirect":   "/dashboard",
	})
}

func (h *Handler) logout(c *gin.Context) {
	h.endSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "you have been logged out", "redirect": "/login"})
}

// endSession revokes the current token and clears the cookie.
func (h *Handler) endSession(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if ok && h.cfg.Auth.Revoker != nil && claims.ExpiresAt != nil {
		if err := h.cfg.Auth.Revoker.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			h.log.Warn("revoke token", zap.String("jti", claims.ID), zap.Error(err))
		}
	}
	h.setCookie(c, "", -1)
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	if h.cfg.Auth.CookieName == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Auth.CookieName, value, maxAge, "/", "", h.cfg.SecureCookie, true)
}

func (h *Handler) register(c *gin.Context) {
	var nu attendance.NewUser
	if err := c.ShouldBind(&nu); err != nil {
		h.bindError(c, err)
		return
	}
	usr, prof, err := h.svc.Register(c.Request.Context(), nu)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.log.Info("registered", zap.String("user", usr.Username), zap.String("role", string(prof.Role)))
	c.JSON(http.StatusCreated, gin.H{"user": usr, "profile": prof, "redirect": "/login"})
}

// requirePrincipal resolves the profile of the signed-in user. Without a profile the
// dashboard ends the session and every other page sends the user to the dashboard.
func (h *Handler) requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required", "redirect": "/login"})
			return
		}
		p, err := h.svc.Authorize(c.Request.Context(), claims.UserID())
		if err != nil {
			if errors.Is(err, attendance.ErrProfileMissing) && c.FullPath() == "/dashboard" {
				h.endSession(c)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "redirect": "/login"})
				return
			}
			h.respondError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principal(c *gin.Context) attendance.Principal {
	p, _ := c.MustGet(principalKey).(attendance.Principal)
	return p
}

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
