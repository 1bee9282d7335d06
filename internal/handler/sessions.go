package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"coursetrack/internal/attendance"
)

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.svc.ListSessions(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) sessionForm(c *gin.Context) {
	p := principal(c)
	if err := p.RequireLecturer(); err != nil {
		h.respondError(c, err)
		return
	}
	courses, err := h.svc.ListCoursesForLecturer(c.Request.Context(), p.ID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *Handler) createSession(c *gin.Context) {
	p := principal(c)
	if err := p.RequireLecturer(); err != nil {
		h.respondError(c, err)
		return
	}
	var in attendance.SessionInput
	if err := c.ShouldBind(&in); err != nil {
		h.bindError(c, err)
		return
	}
	sess, err := h.svc.CreateSession(c.Request.Context(), p, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session":  sess,
		"message":  "session created successfully, you can now mark attendance",
		"redirect": "/sessions/" + sess.ID + "/mark",
	})
}

func (h *Handler) markingSheet(c *gin.Context) {
	sheet, err := h.svc.OpenMarkingSheet(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

type markingForm struct {
	Entries map[string]attendance.MarkEntry `json:"entries"`
}

// readEntries accepts a JSON body {"entries": {...}} or urlencoded or multipart form fields
// status_<id> and remarks_<id>.
func readEntries(c *gin.Context) (map[string]attendance.MarkEntry, error) {
	if c.ContentType() == binding.MIMEJSON {
		var form markingForm
		if err := c.ShouldBindJSON(&form); err != nil {
			return nil, err
		}
		if form.Entries == nil {
			form.Entries = map[string]attendance.MarkEntry{}
		}
		return form.Entries, nil
	}
	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		if _, err := c.MultipartForm(); err != nil {
			return nil, err
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	entries := make(map[string]attendance.MarkEntry)
	for key, vals := range c.Request.PostForm {
		id, ok := strings.CutPrefix(key, "status_")
		if !ok || id == "" || len(vals) == 0 {
			continue
		}
		entries[id] = attendance.MarkEntry{
			Status:  attendance.Status(vals[0]),
			Remarks: c.Request.PostForm.Get("remarks_" + id),
		}
	}
	return entries, nil
}

// checkEntries runs the binding rules of every entry, reporting errors under status_<id>.
func checkEntries(entries map[string]attendance.MarkEntry) error {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var fields []attendance.FieldError
	for _, id := range ids {
		err := binding.Validator.ValidateStruct(entries[id])
		if err == nil {
			continue
		}
		var vErrs validator.ValidationErrors
		if !errors.As(err, &vErrs) {
			return err
		}
		for _, fe := range vErrs {
			fields = append(fields, attendance.FieldError{Field: "status_" + id, Error: message(fe)})
		}
	}
	if len(fields) > 0 {
		return attendance.NewValidationError(errors.New("invalid attendance sheet"), fields...)
	}
	return nil
}

func (h *Handler) submitMarkingSheet(c *gin.Context) {
	p := principal(c)
	if err := p.RequireLecturer(); err != nil {
		h.respondError(c, err)
		return
	}
	entries, err := readEntries(c)
	if err != nil {
		h.bindError(c, err)
		return
	}
	if err := checkEntries(entries); err != nil {
		h.metrics.ObserveMarking(0, err)
		h.respondError(c, err)
		return
	}
	n, err := h.svc.SubmitMarkingSheet(c.Request.Context(), p, c.Param("id"), entries)
	h.metrics.ObserveMarking(n, err)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.log.Info("attendance marked", zap.String("session", c.Param("id")), zap.Int("records", n))
	c.JSON(http.StatusOK, gin.H{"marked": n, "message": "attendance marked successfully", "redirect": "/sessions"})
}
