package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursetrack/internal/attendance"
)

type recordQuery struct {
	Course    string `form:"course"`
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Status    string `form:"status" binding:"omitempty,attstatus"`
}

func (q recordQuery) filter() attendance.RecordFilter {
	f := attendance.RecordFilter{CourseID: q.Course, Status: attendance.Status(q.Status)}
	if d, err := attendance.ParseDay(q.StartDate); err == nil {
		f.From = &d
	}
	if d, err := attendance.ParseDay(q.EndDate); err == nil {
		f.To = &d
	}
	return f
}

func (h *Handler) records(c *gin.Context) {
	p := principal(c)
	ctx := c.Request.Context()
	if p.IsStudent() {
		view, err := h.svc.StudentRecords(ctx, p)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
		return
	}

	var q recordQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.bindError(c, err)
		return
	}
	records, err := h.svc.FilteredRecordsForLecturer(ctx, p, q.filter())
	if err != nil {
		h.respondError(c, err)
		return
	}
	courses, err := h.svc.ListCoursesForLecturer(ctx, p.ID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "courses": courses})
}

func (h *Handler) reports(c *gin.Context) {
	p := principal(c)
	if err := p.RequireLecturer(); err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	courses, err := h.svc.ListCoursesForLecturer(ctx, p.ID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := gin.H{"courses": courses}
	if id := c.Query("course"); id != "" {
		report, err := h.svc.LecturerCourseReport(ctx, p, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		resp["report"] = report
	}
	c.JSON(http.StatusOK, resp)
}
