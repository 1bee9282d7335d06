package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coursetrack/internal/attendance"
	"coursetrack/internal/auth"
	"coursetrack/internal/metrics"
)

type testApp struct {
	t      *testing.T
	router *gin.Engine
	repo   *attendance.MemoryRepository
	svc    *attendance.Service
	h      *Handler
}

func setup(t *testing.T, allowRegistration bool) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := attendance.NewMemoryRepository()
	svc := attendance.NewService(repo)
	h := New(svc, Config{
		Auth: auth.Options{
			SigningKey: "secret",
			Issuer:     "coursetrack",
			CookieName: "sid",
			Revoker:    auth.NewMemoryRevoker(),
		},
		AccessTTL:         time.Hour,
		AllowRegistration: allowRegistration,
	}, zap.NewNop(), metrics.New(prometheus.NewRegistry()))
	r := gin.New()
	h.Register(r)
	return &testApp{t: t, router: r, repo: repo, svc: svc, h: h}
}

func (a *testApp) user(nu attendance.NewUser) attendance.User {
	a.t.Helper()
	nu.Password, nu.PasswordConfirm = "pwd", "pwd"
	usr, _, err := a.svc.Register(context.Background(), nu)
	require.NoError(a.t, err)
	return usr
}

func (a *testApp) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(req)
}

func (a *testApp) serve(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	var resp map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func (a *testApp) login(username string) string {
	a.t.Helper()
	rec, resp := a.do(http.MethodPost, "/login", "", gin.H{"username": username, "password": "pwd"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return resp["token"].(string)
}

func fieldsOf(resp map[string]any) []string {
	raw, _ := resp["fields"].([]any)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if m, ok := f.(map[string]any); ok {
			out = append(out, m["field"].(string))
		}
	}
	return out
}

func TestLoginLogout(t *testing.T) {
	app := setup(t, false)
	app.user(attendance.NewUser{Username: "lec", Name: "Lecturer", Role: attendance.RoleLecturer})

	rec, _ := app.do(http.MethodPost, "/login", "", gin.H{"username": "lec", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = app.do(http.MethodPost, "/login", "", gin.H{"username": "lec"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := app.do(http.MethodPost, "/login", "", gin.H{"username": "lec", "password": "pwd"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := resp["token"].(string)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: cookies[0].Value})
	rec, resp = app.serve(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lecturer", resp["role"])

	rec, _ = app.do(http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = app.do(http.MethodGet, "/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login", resp["redirect"])

	rec, _ = app.do(http.MethodGet, "/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileMissing(t *testing.T) {
	app := setup(t, false)
	usr := attendance.User{Username: "ghost", Name: "Ghost"}
	require.NoError(t, usr.SetPassword("pwd"))
	app.repo.CreateUserWithoutProfile(usr)

	token := app.login("ghost")

	rec, resp := app.do(http.MethodGet, "/courses", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "/dashboard", resp["redirect"])

	rec, resp = app.do(http.MethodGet, "/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login", resp["redirect"])
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)

	rec, _ = app.do(http.MethodGet, "/courses", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "the session was ended")
}

func TestRegister(t *testing.T) {
	app := setup(t, true)

	rec, resp := app.do(http.MethodPost, "/register", "", gin.H{
		"username": "alice", "name": "Alice", "password": "pwd", "password_confirm": "pwd", "role": "student",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"student_id"}, fieldsOf(resp))

	rec, _ = app.do(http.MethodPost, "/register", "", gin.H{
		"username": "alice", "name": "Alice", "password": "pwd", "password_confirm": "pwd", "role": "student", "student_id": "S001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp = app.do(http.MethodPost, "/register", "", gin.H{
		"username": "bob", "name": "Bob", "password": "pwd", "password_confirm": "pwd", "role": "student", "student_id": "S001",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"student_id"}, fieldsOf(resp))

	disabled := setup(t, false)
	rec = httptest.NewRecorder()
	disabled.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCourseRoutes(t *testing.T) {
	app := setup(t, false)
	app.user(attendance.NewUser{Username: "lec", Name: "Lecturer", Role: attendance.RoleLecturer})
	app.user(attendance.NewUser{Username: "other", Name: "Other", Role: attendance.RoleLecturer})
	app.user(attendance.NewUser{Username: "alice", Name: "Alice", Role: attendance.RoleStudent, StudentID: "S001"})
	lec, other, alice := app.login("lec"), app.login("other"), app.login("alice")

	rec, resp := app.do(http.MethodPost, "/courses/create", lec, gin.H{"code": "CS101", "name": "Intro"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := resp["course"].(map[string]any)["id"].(string)

	rec, resp = app.do(http.MethodPost, "/courses/create", other, gin.H{"code": "CS101", "name": "Clash"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"code"}, fieldsOf(resp))

	rec, resp = app.do(http.MethodPost, "/courses/create", lec, gin.H{"code": "CS102"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"name"}, fieldsOf(resp))

	rec, resp = app.do(http.MethodPost, "/courses/create", alice, gin.H{"code": "X", "name": "X"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "/dashboard", resp["redirect"])

	rec, _ = app.do(http.MethodGet, "/courses/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = app.do(http.MethodPost, "/courses/"+id+"/edit", lec, gin.H{"code": "CS101", "name": "Intro to CS"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = app.do(http.MethodGet, "/courses/"+id+"/delete", lec, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["confirm"])

	rec, _ = app.do(http.MethodPost, "/courses/"+id+"/delete", other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = app.do(http.MethodPost, "/courses/"+id+"/delete", lec, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = app.do(http.MethodGet, "/courses", lec, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp["courses"])
}

func TestAttendanceFlow(t *testing.T) {
	app := setup(t, false)
	app.user(attendance.NewUser{Username: "lec", Name: "Lecturer", Role: attendance.RoleLecturer})
	st := app.user(attendance.NewUser{Username: "alice", Name: "Alice", Role: attendance.RoleStudent, StudentID: "S001"})
	lec, alice := app.login("lec"), app.login("alice")

	rec, resp := app.do(http.MethodPost, "/courses/create", lec, gin.H{"code": "CS101", "name": "Intro"})
	require.Equal(t, http.StatusCreated, rec.Code)
	courseID := resp["course"].(map[string]any)["id"].(string)

	rec, resp = app.do(http.MethodGet, "/enrollments/create", lec, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["students"], 1)

	rec, _ = app.do(http.MethodPost, "/enrollments/create", lec, gin.H{"student": st.ID, "course": courseID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, resp = app.do(http.MethodPost, "/enrollments/create", lec, gin.H{"student": st.ID, "course": courseID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"student"}, fieldsOf(resp))

	rec, resp = app.do(http.MethodPost, "/sessions/create", lec, gin.H{"course_id": courseID, "date": "2024-01-10", "time": "10:00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sessionID := resp["session"].(map[string]any)["id"].(string)
	assert.Equal(t, "/sessions/"+sessionID+"/mark", resp["redirect"])

	rec, resp = app.do(http.MethodPost, "/sessions/create", lec, gin.H{"course_id": courseID, "date": "2024-01-10", "time": "10:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"time"}, fieldsOf(resp))

	rec, resp = app.do(http.MethodGet, "/sessions/"+sessionID+"/mark", lec, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := resp["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "absent", rows[0].(map[string]any)["status"])

	rec, _ = app.do(http.MethodGet, "/sessions/"+sessionID+"/mark", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = app.do(http.MethodPost, "/sessions/"+sessionID+"/mark", lec, gin.H{
		"entries": gin.H{st.ID: gin.H{"status": "sick"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"status_" + st.ID}, fieldsOf(resp))

	rec, resp = app.do(http.MethodPost, "/sessions/"+sessionID+"/mark", lec, gin.H{"entries": gin.H{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"status_" + st.ID}, fieldsOf(resp))

	rec, resp = app.do(http.MethodPost, "/sessions/"+sessionID+"/mark", lec, gin.H{
		"entries": gin.H{st.ID: gin.H{"status": "present", "remarks": "front row"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), resp["marked"])

	rec, resp = app.do(http.MethodGet, "/dashboard", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := resp["student"].(map[string]any)["attendance_stats"].([]any)
	require.Len(t, stats, 1)
	assert.Equal(t, float64(100), stats[0].(map[string]any)["attendance_rate"])

	rec, resp = app.do(http.MethodPost, "/sessions/create", lec, gin.H{"course_id": courseID, "date": "2024-01-10", "time": "14:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := resp["session"].(map[string]any)["id"].(string)

	form := url.Values{"status_" + st.ID: {"absent"}, "remarks_" + st.ID: {"sick note"}}
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+second+"/mark", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+lec)
	rec, _ = app.serve(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp = app.do(http.MethodGet, "/dashboard", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats = resp["student"].(map[string]any)["attendance_stats"].([]any)
	assert.Equal(t, float64(50), stats[0].(map[string]any)["attendance_rate"])

	rec, resp = app.do(http.MethodGet, "/reports?course="+courseID, lec, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reportRows := resp["report"].(map[string]any)["rows"].([]any)
	require.Len(t, reportRows, 1)
	assert.Equal(t, float64(1), reportRows[0].(map[string]any)["present"])
	assert.Equal(t, float64(1), reportRows[0].(map[string]any)["absent"])

	rec, _ = app.do(http.MethodGet, "/reports", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = app.do(http.MethodGet, "/records?status=absent&start_date=2024-01-01", lec, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["records"], 1)

	rec, resp = app.do(http.MethodGet, "/records?status=sick", lec, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"status"}, fieldsOf(resp))

	rec, resp = app.do(http.MethodGet, "/records?end_date=10-01-2024", lec, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"end_date"}, fieldsOf(resp))

	rec, resp = app.do(http.MethodGet, "/records", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["records"], 2)
	assert.Contains(t, resp["attendance_data"], "CS101")

	rec, resp = app.do(http.MethodGet, "/sessions", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["sessions"], 2)
}

func TestMarkingSheetBodies(t *testing.T) {
	app := setup(t, false)
	app.user(attendance.NewUser{Username: "lec", Name: "Lecturer", Role: attendance.RoleLecturer})
	alice := app.user(attendance.NewUser{Username: "alice", Name: "Alice", Role: attendance.RoleStudent, StudentID: "S001"})
	bob := app.user(attendance.NewUser{Username: "bob", Name: "Bob", Role: attendance.RoleStudent, StudentID: "S002"})
	lec := app.login("lec")

	rec, resp := app.do(http.MethodPost, "/courses/create", lec, gin.H{"code": "CS101", "name": "Intro"})
	require.Equal(t, http.StatusCreated, rec.Code)
	courseID := resp["course"].(map[string]any)["id"].(string)
	for _, st := range []attendance.User{alice, bob} {
		rec, _ = app.do(http.MethodPost, "/enrollments/create", lec, gin.H{"student": st.ID, "course": courseID})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec, resp = app.do(http.MethodPost, "/sessions/create", lec, gin.H{"course_id": courseID, "date": "2024-01-10", "time": "10:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/sessions/" + resp["session"].(map[string]any)["id"].(string) + "/mark"

	want := []string{"status_" + alice.ID, "status_" + bob.ID}
	sort.Strings(want)
	for i := 0; i < 5; i++ {
		rec, resp = app.do(http.MethodPost, path, lec, gin.H{
			"entries": gin.H{alice.ID: gin.H{"status": "sick"}, bob.ID: gin.H{"status": "gone"}},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, want, fieldsOf(resp))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("status_"+alice.ID, "present"))
	require.NoError(t, mw.WriteField("remarks_"+alice.ID, "front row"))
	require.NoError(t, mw.WriteField("status_"+bob.ID, "late"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+lec)
	rec, resp = app.serve(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), resp["marked"])

	rec, resp = app.do(http.MethodGet, path, lec, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := make(map[string]string)
	for _, row := range resp["rows"].([]any) {
		r := row.(map[string]any)
		got[r["student"].(map[string]any)["user_id"].(string)] = r["status"].(string) + "/" + r["remarks"].(string)
	}
	assert.Equal(t, map[string]string{alice.ID: "present/front row", bob.ID: "late/"}, got)
}

func TestHealthz(t *testing.T) {
	app := setup(t, false)

	rec, resp := app.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])

	app.h.AddHealthCheck("db", func(context.Context) bool { return false })
	rec, resp = app.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, resp["db"])
}
