package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// Enroll links a student to a course owned by the lecturer p.
func (s *Service) Enroll(ctx context.Context, p Principal, studentID, courseID string) (Enrollment, error) {
	c, err := s.OwnedCourse(ctx, p, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	prof, err := s.store.GetProfile(ctx, studentID)
	if err != nil && !errors.Is(err, ErrProfileMissing) {
		return Enrollment{}, err
	}
	if err != nil || prof.Role != RoleStudent {
		return Enrollment{}, NewValidationError(
			errors.New("invalid enrollment"),
			FieldError{Field: "student", Error: "select a valid student"},
		)
	}
	return s.store.CreateEnrollment(ctx, Enrollment{
		StudentID:  studentID,
		CourseID:   c.ID,
		CourseCode: c.Code,
		CourseName: c.Name,
		EnrolledAt: s.now(),
	})
}

// ListEnrollments returns enrollments across the courses of a lecturer, or a student's own enrollments.
func (s *Service) ListEnrollments(ctx context.Context, p Principal) ([]Enrollment, error) {
	if p.IsLecturer() {
		return s.store.ListEnrollments(ctx, EnrollmentFilter{LecturerID: p.ID()})
	}
	return s.store.ListEnrollments(ctx, EnrollmentFilter{StudentID: p.ID()})
}

// EnrollmentOptions are the choices offered by the enrollment form.
type EnrollmentOptions struct {
	Courses  []Course  `json:"courses"`
	Students []Student `json:"students"`
}

func (s *Service) EnrollmentOptions(ctx context.Context, p Principal) (EnrollmentOptions, error) {
	if err := p.RequireLecturer(); err != nil {
		return EnrollmentOptions{}, err
	}
	courses, err := s.ListCoursesForLecturer(ctx, p.ID())
	if err != nil {
		return EnrollmentOptions{}, err
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return EnrollmentOptions{}, err
	}
	return EnrollmentOptions{Courses: courses, Students: students}, nil
}
