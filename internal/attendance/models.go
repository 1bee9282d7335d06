package attendance

import (
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DateLayout is the wire and storage format of session dates.
const DateLayout = "2006-01-02"

// TimeLayout is the wire and storage format of session start times.
const TimeLayout = "15:04"

// Day is a calendar date without a time of day, always in UTC.
type Day struct{ time.Time }

// ParseDay parses a DateLayout string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Day{}, err
	}
	return Day{t}, nil
}

// DayOf truncates t to its calendar date.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Day) String() string { return d.Format(DateLayout) }

func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// Role distinguishes lecturers from students.
type Role string

const (
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
)

func (r Role) Valid() bool { return r == RoleLecturer || r == RoleStudent }

// Status is the attendance outcome of one student in one session.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// Statuses lists the accepted statuses in display order.
var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// User is a login identity.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Profile carries the role-specific attributes of a user. StudentID is empty for lecturers.
type Profile struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	StudentID string    `json:"student_id,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Student is a user with role=student, as shown in enrollment choices and reports.
type Student struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
}

type Course struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	LecturerID   string    `json:"lecturer_id"`
	LecturerName string    `json:"lecturer_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Enrollment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	CourseID   string    `json:"course_id"`
	Student    Student   `json:"student"`
	CourseCode string    `json:"course_code"`
	CourseName string    `json:"course_name"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// Session is one dated class meeting of a course for which attendance is taken.
type Session struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	CourseCode string    `json:"course_code"`
	CourseName string    `json:"course_name"`
	Date       Day       `json:"date"`
	Time       string    `json:"time"`
	Topic      string    `json:"topic"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Before orders sessions chronologically by date then time.
func (s Session) Before(o Session) bool {
	if !s.Date.Equal(o.Date.Time) {
		return s.Date.Before(o.Date.Time)
	}
	return s.Time < o.Time
}

// Record is the stored attendance status of one student in one session.
type Record struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	StudentID   string    `json:"student_id"`
	Status      Status    `json:"status"`
	Remarks     string    `json:"remarks"`
	MarkedAt    time.Time `json:"marked_at"`
	Student     Student   `json:"student"`
	CourseID    string    `json:"course_id"`
	CourseCode  string    `json:"course_code"`
	SessionDate Day       `json:"session_date"`
	SessionTime string    `json:"session_time"`
}
