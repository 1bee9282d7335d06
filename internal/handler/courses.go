package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coursetrack/internal/attendance"
)

func (h *Handler) listCourses(c *gin.Context) {
	courses, err := h.svc.ListCourses(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *Handler) getCourse(c *gin.Context) {
	course, err := h.svc.GetCourse(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, course)
}

func (h *Handler) createCourse(c *gin.Context) {
	p := principal(c)
	if err := p.RequireLecturer(); err != nil {
		h.respondError(c, err)
		return
	}
	var in attendance.CourseInput
	if err := c.ShouldBind(&in); err != nil {
		h.bindError(c, err)
		return
	}
	course, err := h.svc.CreateCourse(c.Request.Context(), p, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.log.Info("course created", zap.String("code", course.Code), zap.String("lecturer", p.User.Username))
	c.JSON(http.StatusCreated, gin.H{"course": course, "message": "course created successfully", "redirect": "/courses"})
}

func (h *Handler) editCourse(c *gin.Context) {
	p := principal(c)
	if err := p.RequireLecturer(); err != nil {
		h.respondError(c, err)
		return
	}
	var in attendance.CourseInput
	if err := c.ShouldBind(&in); err != nil {
		h.bindError(c, err)
		return
	}
	course, err := h.svc.EditCourse(c.Request.Context(), p, c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course": course, "message": "course updated successfully", "redirect": "/courses"})
}

func (h *Handler) confirmDeleteCourse(c *gin.Context) {
	course, err := h.svc.OwnedCourse(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course": course, "confirm": true})
}

func (h *Handler) deleteCourse(c *gin.Context) {
	p := principal(c)
	if err := h.svc.DeleteCourse(c.Request.Context(), p, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	h.log.Info("course deleted", zap.String("id", c.Param("id")), zap.String("lecturer", p.User.Username))
	c.JSON(http.StatusOK, gin.H{"message": "course deleted successfully", "redirect": "/courses"})
}
