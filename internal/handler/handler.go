package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"coursetrack/internal/attendance"
	"coursetrack/internal/auth"
	"coursetrack/internal/metrics"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Config carries the settings the handlers depend on.
type Config struct {
	Auth              auth.Options
	AccessTTL         time.Duration
	SecureCookie      bool
	AllowRegistration bool
}

// Handler serves the JSON API on top of the attendance service.
type Handler struct {
	svc     *attendance.Service
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
	checks  map[string]HealthCheck
}

func New(svc *attendance.Service, cfg Config, log *zap.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	registerValidators()
	return &Handler{svc: svc, cfg: cfg, log: log, metrics: m, checks: make(map[string]HealthCheck)}
}

// AddHealthCheck adds a dependency to the /healthz report.
func (h *Handler) AddHealthCheck(name string, fn HealthCheck) {
	h.checks[name] = fn
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.healthz)
	r.POST("/login", h.login)
	if h.cfg.AllowRegistration {
		r.POST("/register", h.register)
	}

	authed := r.Group("/", auth.Session(h.cfg.Auth))
	authed.POST("/logout", h.logout)

	app := authed.Group("/", h.requirePrincipal())
	app.GET("/dashboard", h.dashboard)

	app.GET("/courses", h.listCourses)
	app.POST("/courses/create", h.createCourse)
	app.GET("/courses/:id", h.getCourse)
	app.POST("/courses/:id/edit", h.editCourse)
	app.GET("/courses/:id/delete", h.confirmDeleteCourse)
	app.POST("/courses/:id/delete", h.deleteCourse)

	app.GET("/enrollments", h.listEnrollments)
	app.GET("/enrollments/create", h.enrollmentForm)
	app.POST("/enrollments/create", h.createEnrollment)

	app.GET("/sessions", h.listSessions)
	app.GET("/sessions/create", h.sessionForm)
	app.POST("/sessions/create", h.createSession)
	app.GET("/sessions/:id/mark", h.markingSheet)
	app.POST("/sessions/:id/mark", h.submitMarkingSheet)

	app.GET("/records", h.records)
	app.GET("/reports", h.reports)
}

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	resp := gin.H{"status": "ok"}
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		resp[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
		}
	}
	c.JSON(status, resp)
}

var duplicates = []error{
	attendance.ErrDuplicateCode,
	attendance.ErrDuplicateEnrollment,
	attendance.ErrDuplicateSlot,
	attendance.ErrDuplicateStudentID,
	attendance.ErrDuplicateUsername,
}

// respondError maps service errors to HTTP responses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		verr  *attendance.ValidationError
		vErrs validator.ValidationErrors
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.As(err, &vErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "fields": translate(vErrs)})
	case errors.Is(err, attendance.ErrProfileMissing):
		c.JSON(http.StatusForbidden, gin.H{"error": attendance.ErrProfileMissing.Error(), "redirect": "/dashboard"})
	case errors.Is(err, attendance.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "redirect": "/dashboard"})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, attendance.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": attendance.ErrInvalidCredentials.Error()})
	case attendance.IsDuplicate(err):
		msg := err.Error()
		for _, target := range duplicates {
			if errors.Is(err, target) {
				msg = target.Error()
				break
			}
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":  msg,
			"fields": []attendance.FieldError{{Field: attendance.DuplicateField(err), Error: msg}},
		})
	default:
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// bindError answers a failed ShouldBind call.
func (h *Handler) bindError(c *gin.Context, err error) {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
}
