package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Store for development and tests.
type MemoryRepository struct {
	mu          sync.RWMutex
	users       map[string]User
	profiles    map[string]Profile
	courses     map[string]Course
	enrollments map[string]Enrollment
	sessions    map[string]Session
	records     map[string]Record
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       make(map[string]User),
		profiles:    make(map[string]Profile),
		courses:     make(map[string]Course),
		enrollments: make(map[string]Enrollment),
		sessions:    make(map[string]Session),
		records:     make(map[string]Record),
	}
}

var _ Store = (*MemoryRepository)(nil)

// -------- Users --------

func (m *MemoryRepository) CreateUser(_ context.Context, usr User, prof Profile) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == usr.Username {
			return User{}, ErrDuplicateUsername
		}
	}
	if prof.StudentID != "" {
		for _, p := range m.profiles {
			if p.StudentID == prof.StudentID {
				return User{}, ErrDuplicateStudentID
			}
		}
	}
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	prof.UserID = usr.ID
	m.users[usr.ID] = usr
	m.profiles[usr.ID] = prof
	return usr, nil
}

// CreateUserWithoutProfile stores a bare identity, as left behind by an incomplete signup.
func (m *MemoryRepository) CreateUserWithoutProfile(usr User) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	m.users[usr.ID] = usr
	return usr
}

func (m *MemoryRepository) GetUser(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryRepository) GetUserByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemoryRepository) GetProfile(_ context.Context, userID string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileMissing
	}
	return p, nil
}

func (m *MemoryRepository) StudentIDExists(_ context.Context, studentID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if p.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) student(userID string) Student {
	u := m.users[userID]
	return Student{UserID: u.ID, Username: u.Username, Name: u.Name, StudentID: m.profiles[userID].StudentID}
}

func sortStudents(res []Student) {
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].Username < res[j].Username
	})
}

func (m *MemoryRepository) ListStudents(_ context.Context) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Student
	for id, p := range m.profiles {
		if p.Role == RoleStudent {
			res = append(res, m.student(id))
		}
	}
	sortStudents(res)
	return res, nil
}

// -------- Courses --------

func (m *MemoryRepository) codeTaken(code, exceptID string) bool {
	for _, c := range m.courses {
		if c.Code == code && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) withLecturer(c Course) Course {
	c.LecturerName = m.users[c.LecturerID].Name
	return c
}

func (m *MemoryRepository) CreateCourse(_ context.Context, c Course) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codeTaken(c.Code, "") {
		return Course{}, ErrDuplicateCode
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.courses[c.ID] = c
	return m.withLecturer(c), nil
}

func (m *MemoryRepository) GetCourse(_ context.Context, id string) (Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return m.withLecturer(c), nil
}

func (m *MemoryRepository) UpdateCourse(_ context.Context, c Course) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[c.ID]; !ok {
		return Course{}, ErrNotFound
	}
	if m.codeTaken(c.Code, c.ID) {
		return Course{}, ErrDuplicateCode
	}
	m.courses[c.ID] = c
	return m.withLecturer(c), nil
}

func (m *MemoryRepository) DeleteCourse(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return ErrNotFound
	}
	delete(m.courses, id)
	for eid, e := range m.enrollments {
		if e.CourseID == id {
			delete(m.enrollments, eid)
		}
	}
	for sid, s := range m.sessions {
		if s.CourseID != id {
			continue
		}
		delete(m.sessions, sid)
		for rid, r := range m.records {
			if r.SessionID == sid {
				delete(m.records, rid)
			}
		}
	}
	return nil
}

func (m *MemoryRepository) enrolled(studentID, courseID string) bool {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) ListCourses(_ context.Context, filter CourseFilter) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Course
	for _, c := range m.courses {
		if filter.LecturerID != "" && c.LecturerID != filter.LecturerID {
			continue
		}
		if filter.StudentID != "" && !m.enrolled(filter.StudentID, c.ID) {
			continue
		}
		res = append(res, m.withLecturer(c))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Code < res[j].Code })
	return res, nil
}

// -------- Enrollments --------

func (m *MemoryRepository) decorateEnrollment(e Enrollment) Enrollment {
	c := m.courses[e.CourseID]
	e.CourseCode, e.CourseName = c.Code, c.Name
	e.Student = m.student(e.StudentID)
	return e
}

func (m *MemoryRepository) CreateEnrollment(_ context.Context, e Enrollment) (Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[e.CourseID]; !ok {
		return Enrollment{}, ErrNotFound
	}
	if m.enrolled(e.StudentID, e.CourseID) {
		return Enrollment{}, ErrDuplicateEnrollment
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.enrollments[e.ID] = e
	return m.decorateEnrollment(e), nil
}

func (m *MemoryRepository) ListEnrollments(_ context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Enrollment
	for _, e := range m.enrollments {
		if filter.LecturerID != "" && m.courses[e.CourseID].LecturerID != filter.LecturerID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		res = append(res, m.decorateEnrollment(e))
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].EnrolledAt.After(res[j].EnrolledAt) })
	return res, nil
}

func (m *MemoryRepository) ListEnrolledStudents(_ context.Context, courseID string) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Student
	for _, e := range m.enrollments {
		if e.CourseID == courseID && m.profiles[e.StudentID].Role == RoleStudent {
			res = append(res, m.student(e.StudentID))
		}
	}
	sortStudents(res)
	return res, nil
}

// -------- Sessions --------

func (m *MemoryRepository) decorateSession(s Session) Session {
	c := m.courses[s.CourseID]
	s.CourseCode, s.CourseName = c.Code, c.Name
	return s
}

func (m *MemoryRepository) CreateSession(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[s.CourseID]; !ok {
		return Session{}, ErrNotFound
	}
	for _, o := range m.sessions {
		if o.CourseID == s.CourseID && o.Date.Equal(s.Date.Time) && o.Time == s.Time {
			return Session{}, ErrDuplicateSlot
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.sessions[s.ID] = s
	return m.decorateSession(s), nil
}

func (m *MemoryRepository) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return m.decorateSession(s), nil
}

func (m *MemoryRepository) ListSessions(_ context.Context, filter SessionFilter) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Session
	for _, s := range m.sessions {
		if filter.CreatedBy != "" && s.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.CourseID != "" && s.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != "" && !m.enrolled(filter.StudentID, s.CourseID) {
			continue
		}
		res = append(res, m.decorateSession(s))
	}
	sort.Slice(res, func(i, j int) bool { return res[j].Before(res[i]) })
	if filter.Limit > 0 && len(res) > filter.Limit {
		res = res[:filter.Limit]
	}
	return res, nil
}

// -------- Records --------

func (m *MemoryRepository) ListRecords(_ context.Context, filter RecordFilter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Record
	for _, r := range m.records {
		s := m.sessions[r.SessionID]
		c := m.courses[s.CourseID]
		switch {
		case filter.SessionID != "" && r.SessionID != filter.SessionID,
			filter.StudentID != "" && r.StudentID != filter.StudentID,
			filter.LecturerID != "" && c.LecturerID != filter.LecturerID,
			filter.CourseID != "" && s.CourseID != filter.CourseID,
			filter.From != nil && s.Date.Before(filter.From.Time),
			filter.To != nil && s.Date.After(filter.To.Time),
			filter.Status != "" && r.Status != filter.Status:
			continue
		}
		r.Student = m.student(r.StudentID)
		r.CourseID, r.CourseCode = c.ID, c.Code
		r.SessionDate, r.SessionTime = s.Date, s.Time
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool {
		si, sj := m.sessions[res[i].SessionID], m.sessions[res[j].SessionID]
		if si.ID != sj.ID {
			return sj.Before(si)
		}
		return res[i].Student.Name < res[j].Student.Name
	})
	return res, nil
}

func (m *MemoryRepository) UpsertRecords(_ context.Context, sessionID string, records []Record, markedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	existing := make(map[string]string)
	for id, r := range m.records {
		if r.SessionID == sessionID {
			existing[r.StudentID] = id
		}
	}
	for _, rec := range records {
		rec.SessionID = sessionID
		rec.MarkedAt = markedAt
		if id, ok := existing[rec.StudentID]; ok {
			rec.ID = id
		} else {
			rec.ID = uuid.NewString()
		}
		m.records[rec.ID] = rec
	}
	return nil
}
