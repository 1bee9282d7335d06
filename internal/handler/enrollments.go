package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type enrollmentForm struct {
	Student string `json:"student" form:"student" binding:"required"`
	Course  string `json:"course" form:"course" binding:"required"`
}

func (h *Handler) listEnrollments(c *gin.Context) {
	enrollments, err := h.svc.ListEnrollments(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": enrollments})
}

func (h *Handler) enrollmentForm(c *gin.Context) {
	opts, err := h.svc.EnrollmentOptions(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

func (h *Handler) createEnrollment(c *gin.Context) {
	p := principal(c)
	if err := p.RequireLecturer(); err != nil {
		h.respondError(c, err)
		return
	}
	var req enrollmentForm
	if err := c.ShouldBind(&req); err != nil {
		h.bindError(c, err)
		return
	}
	e, err := h.svc.Enroll(c.Request.Context(), p, req.Student, req.Course)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"enrollment": e, "message": "student enrolled successfully", "redirect": "/enrollments"})
}
