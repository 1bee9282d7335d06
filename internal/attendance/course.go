package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// CourseInput holds the editable fields of a course.
type CourseInput struct {
	Code        string `json:"code" form:"code" binding:"required,max=20"`
	Name        string `json:"name" form:"name" binding:"required,max=200"`
	Description string `json:"description" form:"description"`
}

func (in *CourseInput) validate() error {
	in.Code = cleanString(in.Code)
	in.Name = cleanString(in.Name)
	in.Description = cleanString(in.Description)

	var fe fieldErrors
	switch {
	case in.Code == "":
		fe.add("code", "this field is required")
	case len(in.Code) > 20:
		fe.add("code", "ensure this value has at most 20 characters")
	}
	switch {
	case in.Name == "":
		fe.add("name", "this field is required")
	case len(in.Name) > 200:
		fe.add("name", "ensure this value has at most 200 characters")
	}
	return fe.err("invalid course")
}

// CreateCourse registers a new course owned by the lecturer p.
func (s *Service) CreateCourse(ctx context.Context, p Principal, in CourseInput) (Course, error) {
	if err := p.RequireLecturer(); err != nil {
		return Course{}, err
	}
	if err := in.validate(); err != nil {
		return Course{}, err
	}
	now := s.now()
	return s.store.CreateCourse(ctx, Course{
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		LecturerID:  p.ID(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// OwnedCourse returns the course with id if the lecturer p owns it, else ErrNotFound.
func (s *Service) OwnedCourse(ctx context.Context, p Principal, id string) (Course, error) {
	if err := p.RequireLecturer(); err != nil {
		return Course{}, err
	}
	c, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if c.LecturerID != p.ID() {
		return Course{}, ErrNotFound
	}
	return c, nil
}

// GetCourse returns a course visible to p: owned by a lecturer or attended by a student.
func (s *Service) GetCourse(ctx context.Context, p Principal, id string) (Course, error) {
	if p.IsLecturer() {
		return s.OwnedCourse(ctx, p, id)
	}
	enrolled, err := s.store.ListEnrollments(ctx, EnrollmentFilter{StudentID: p.ID(), CourseID: id})
	if err != nil {
		return Course{}, err
	}
	if len(enrolled) == 0 {
		return Course{}, ErrNotFound
	}
	return s.store.GetCourse(ctx, id)
}

// EditCourse replaces the editable fields of a course owned by p.
func (s *Service) EditCourse(ctx context.Context, p Principal, id string, in CourseInput) (Course, error) {
	c, err := s.OwnedCourse(ctx, p, id)
	if err != nil {
		return Course{}, err
	}
	if err := in.validate(); err != nil {
		return Course{}, err
	}
	c.Code = in.Code
	c.Name = in.Name
	c.Description = in.Description
	c.UpdatedAt = s.now()
	return s.store.UpdateCourse(ctx, c)
}

// DeleteCourse removes a course owned by p along with its enrollments, sessions and records.
func (s *Service) DeleteCourse(ctx context.Context, p Principal, id string) error {
	c, err := s.OwnedCourse(ctx, p, id)
	if err != nil {
		return err
	}
	return errors.Wrapf(s.store.DeleteCourse(ctx, c.ID), "delete course %s", c.Code)
}

func (s *Service) ListCoursesForLecturer(ctx context.Context, lecturerID string) ([]Course, error) {
	return s.store.ListCourses(ctx, CourseFilter{LecturerID: lecturerID})
}

func (s *Service) ListCoursesForStudent(ctx context.Context, studentID string) ([]Course, error) {
	return s.store.ListCourses(ctx, CourseFilter{StudentID: studentID})
}

// ListCourses lists the courses p teaches or attends.
func (s *Service) ListCourses(ctx context.Context, p Principal) ([]Course, error) {
	if p.IsLecturer() {
		return s.ListCoursesForLecturer(ctx, p.ID())
	}
	return s.ListCoursesForStudent(ctx, p.ID())
}
