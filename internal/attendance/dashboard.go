package attendance

import "context"

const recentSessionsLimit = 5

type LecturerDashboard struct {
	Courses        []Course  `json:"courses"`
	TotalCourses   int       `json:"total_courses"`
	TotalStudents  int       `json:"total_students"`
	TotalSessions  int       `json:"total_sessions"`
	RecentSessions []Session `json:"recent_sessions"`
}

type StudentDashboard struct {
	Enrollments     []Enrollment    `json:"enrollments"`
	TotalCourses    int             `json:"total_courses"`
	AttendanceStats []CourseSummary `json:"attendance_stats"`
}

// Dashboard is the role-specific landing summary; exactly one of the fields is set.
type Dashboard struct {
	Role     Role               `json:"role"`
	Lecturer *LecturerDashboard `json:"lecturer,omitempty"`
	Student  *StudentDashboard  `json:"student,omitempty"`
}

func (s *Service) Dashboard(ctx context.Context, p Principal) (Dashboard, error) {
	if p.IsLecturer() {
		d, err := s.lecturerDashboard(ctx, p)
		return Dashboard{Role: RoleLecturer, Lecturer: d}, err
	}
	d, err := s.studentDashboard(ctx, p)
	return Dashboard{Role: RoleStudent, Student: d}, err
}

func (s *Service) lecturerDashboard(ctx context.Context, p Principal) (*LecturerDashboard, error) {
	courses, err := s.ListCoursesForLecturer(ctx, p.ID())
	if err != nil {
		return nil, err
	}
	enrollments, err := s.store.ListEnrollments(ctx, EnrollmentFilter{LecturerID: p.ID()})
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.ListSessions(ctx, SessionFilter{CreatedBy: p.ID()})
	if err != nil {
		return nil, err
	}
	recent := sessions
	if len(recent) > recentSessionsLimit {
		recent = recent[:recentSessionsLimit]
	}
	return &LecturerDashboard{
		Courses:        courses,
		TotalCourses:   len(courses),
		TotalStudents:  len(enrollments),
		TotalSessions:  len(sessions),
		RecentSessions: recent,
	}, nil
}

func (s *Service) studentDashboard(ctx context.Context, p Principal) (*StudentDashboard, error) {
	enrollments, err := s.store.ListEnrollments(ctx, EnrollmentFilter{StudentID: p.ID()})
	if err != nil {
		return nil, err
	}
	stats, err := s.StudentAttendanceSummary(ctx, p.ID())
	if err != nil {
		return nil, err
	}
	return &StudentDashboard{
		Enrollments:     enrollments,
		TotalCourses:    len(enrollments),
		AttendanceStats: stats,
	}, nil
}
