package attendance

import (
	"context"
	"time"
)

// CourseFilter selects courses. Set at most one field; an empty filter lists every course.
type CourseFilter struct {
	LecturerID string // courses taught by this lecturer
	StudentID  string // courses this student is enrolled in
}

// EnrollmentFilter applies AND semantics on the fields that are set.
type EnrollmentFilter struct {
	LecturerID string
	StudentID  string
	CourseID   string
}

// SessionFilter applies AND semantics on the fields that are set.
type SessionFilter struct {
	CreatedBy string
	CourseID  string
	StudentID string // sessions of courses the student is enrolled in
	Limit     int
}

// RecordFilter applies AND semantics on the fields that are set. From and To are inclusive session dates.
type RecordFilter struct {
	SessionID  string
	StudentID  string
	LecturerID string // records of sessions whose course this lecturer owns
	CourseID   string
	From       *Day
	To         *Day
	Status     Status
}

// Store persists users, courses, enrollments, sessions and attendance records.
// Implementations enforce the uniqueness constraints and report violations with
// the matching ErrDuplicate* sentinel; lookups of absent rows return ErrNotFound.
type Store interface {
	CreateUser(ctx context.Context, usr User, prof Profile) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	// GetProfile returns ErrProfileMissing when the user has no profile.
	GetProfile(ctx context.Context, userID string) (Profile, error)
	StudentIDExists(ctx context.Context, studentID string) (bool, error)
	ListStudents(ctx context.Context) ([]Student, error)

	CreateCourse(ctx context.Context, c Course) (Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	UpdateCourse(ctx context.Context, c Course) (Course, error)
	// DeleteCourse removes the course with its enrollments, sessions and records.
	DeleteCourse(ctx context.Context, id string) error
	ListCourses(ctx context.Context, filter CourseFilter) ([]Course, error)

	CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
	ListEnrolledStudents(ctx context.Context, courseID string) ([]Student, error)

	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)

	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	// UpsertRecords writes all records of one session atomically, keyed by (session, student).
	UpsertRecords(ctx context.Context, sessionID string, records []Record, markedAt time.Time) error
}
