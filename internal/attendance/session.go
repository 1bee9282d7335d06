package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// SessionInput is the attendance session form.
type SessionInput struct {
	CourseID string `json:"course_id" form:"course_id" binding:"required"`
	Date     string `json:"date" form:"date" binding:"required"`
	Time     string `json:"time" form:"time" binding:"required"`
	Topic    string `json:"topic" form:"topic" binding:"max=200"`
}

func (in *SessionInput) parse() (Day, string, error) {
	in.Topic = cleanString(in.Topic)

	var (
		fe  fieldErrors
		day Day
		at  string
	)
	if d, err := ParseDay(cleanString(in.Date)); err != nil {
		fe.add("date", "enter a valid date (YYYY-MM-DD)")
	} else {
		day = d
	}
	if t, err := parseClock(cleanString(in.Time)); err != nil {
		fe.add("time", "enter a valid time (HH:MM)")
	} else {
		at = t
	}
	if len(in.Topic) > 200 {
		fe.add("topic", "ensure this value has at most 200 characters")
	}
	return day, at, fe.err("invalid session")
}

// parseClock accepts HH:MM, or HH:MM:SS with zero seconds, and normalizes to TimeLayout.
// Sessions start on the minute; other seconds are rejected rather than dropped.
func parseClock(s string) (string, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t.Format(TimeLayout), nil
	}
	t, err2 := time.Parse("15:04:05", s)
	if err2 != nil {
		return "", err
	}
	if t.Second() != 0 {
		return "", errors.Errorf("time %q has seconds", s)
	}
	return t.Format(TimeLayout), nil
}

// CreateSession opens a dated session on a course owned by the lecturer p.
func (s *Service) CreateSession(ctx context.Context, p Principal, in SessionInput) (Session, error) {
	if err := p.RequireLecturer(); err != nil {
		return Session{}, err
	}
	day, at, err := in.parse()
	if err != nil {
		return Session{}, err
	}
	c, err := s.OwnedCourse(ctx, p, in.CourseID)
	if err != nil {
		return Session{}, err
	}
	return s.store.CreateSession(ctx, Session{
		CourseID:   c.ID,
		CourseCode: c.Code,
		CourseName: c.Name,
		Date:       day,
		Time:       at,
		Topic:      in.Topic,
		CreatedBy:  p.ID(),
		CreatedAt:  s.now(),
	})
}

// ListSessions returns the sessions a lecturer created, or those of the courses a student attends.
func (s *Service) ListSessions(ctx context.Context, p Principal) ([]Session, error) {
	if p.IsLecturer() {
		return s.store.ListSessions(ctx, SessionFilter{CreatedBy: p.ID()})
	}
	return s.store.ListSessions(ctx, SessionFilter{StudentID: p.ID()})
}

// ownedSession returns the session with id if the lecturer p created it, else ErrNotFound.
func (s *Service) ownedSession(ctx context.Context, p Principal, id string) (Session, error) {
	if err := p.RequireLecturer(); err != nil {
		return Session{}, err
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.CreatedBy != p.ID() {
		return Session{}, ErrNotFound
	}
	return sess, nil
}
