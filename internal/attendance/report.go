package attendance

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// Rate returns present/total as a percentage rounded to one decimal, 0 when total is 0.
// Exact ties round to even, so 1 of 16 is 6.2.
func Rate(present, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(present) / float64(total) * 100
	return math.RoundToEven(pct*10) / 10
}

// SeriesPoint is one session of a student's attendance chart.
type SeriesPoint struct {
	Date     Day `json:"date"`
	Attended int `json:"attended"` // 1 iff a present record exists
}

// CourseSummary is a student's attendance in one course.
type CourseSummary struct {
	Course         Course        `json:"course"`
	TotalSessions  int           `json:"total_sessions"`
	Attended       int           `json:"attended"`
	AttendanceRate float64       `json:"attendance_rate"`
	Series         []SeriesPoint `json:"series"`
}

// StudentAttendanceSummary computes per-course attendance of a student across enrolled courses.
func (s *Service) StudentAttendanceSummary(ctx context.Context, studentID string) ([]CourseSummary, error) {
	courses, err := s.ListCoursesForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, RecordFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	bySession := make(map[string]Record, len(records))
	for _, r := range records {
		bySession[r.SessionID] = r
	}

	summaries := make([]CourseSummary, 0, len(courses))
	for _, c := range courses {
		sessions, err := s.store.ListSessions(ctx, SessionFilter{CourseID: c.ID})
		if err != nil {
			return nil, err
		}
		sortChronologically(sessions)

		sum := CourseSummary{Course: c, TotalSessions: len(sessions), Series: make([]SeriesPoint, 0, len(sessions))}
		for _, sess := range sessions {
			pt := SeriesPoint{Date: sess.Date}
			if r, ok := bySession[sess.ID]; ok && r.Status == StatusPresent {
				pt.Attended = 1
				sum.Attended++
			}
			sum.Series = append(sum.Series, pt)
		}
		sum.AttendanceRate = Rate(sum.Attended, sum.TotalSessions)
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// StudentReportRow is one enrolled student of a course report.
type StudentReportRow struct {
	Student        Student `json:"student"`
	TotalSessions  int     `json:"total_sessions"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Late           int     `json:"late"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// CourseReport aggregates the attendance of every student enrolled in a course.
type CourseReport struct {
	Course        Course             `json:"course"`
	TotalSessions int                `json:"total_sessions"`
	Rows          []StudentReportRow `json:"rows"`
}

// LecturerCourseReport reports per-student status counts for a course owned by p.
// Counts come from stored records only; a session without a record is in none of them.
func (s *Service) LecturerCourseReport(ctx context.Context, p Principal, courseID string) (CourseReport, error) {
	c, err := s.OwnedCourse(ctx, p, courseID)
	if err != nil {
		return CourseReport{}, err
	}
	students, err := s.store.ListEnrolledStudents(ctx, c.ID)
	if err != nil {
		return CourseReport{}, err
	}
	sessions, err := s.store.ListSessions(ctx, SessionFilter{CourseID: c.ID})
	if err != nil {
		return CourseReport{}, err
	}
	records, err := s.store.ListRecords(ctx, RecordFilter{CourseID: c.ID})
	if err != nil {
		return CourseReport{}, err
	}

	counts := make(map[string]map[Status]int, len(students))
	for _, r := range records {
		if counts[r.StudentID] == nil {
			counts[r.StudentID] = make(map[Status]int, len(Statuses))
		}
		counts[r.StudentID][r.Status]++
	}

	report := CourseReport{Course: c, TotalSessions: len(sessions), Rows: make([]StudentReportRow, 0, len(students))}
	for _, st := range students {
		n := counts[st.UserID]
		report.Rows = append(report.Rows, StudentReportRow{
			Student:        st,
			TotalSessions:  len(sessions),
			Present:        n[StatusPresent],
			Absent:         n[StatusAbsent],
			Late:           n[StatusLate],
			AttendanceRate: Rate(n[StatusPresent], len(sessions)),
		})
	}
	return report, nil
}

// FilteredRecordsForLecturer lists records of courses owned by p matching every set filter field.
// Ownership is always enforced, whatever the filter says.
func (s *Service) FilteredRecordsForLecturer(ctx context.Context, p Principal, filter RecordFilter) ([]Record, error) {
	if err := p.RequireLecturer(); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, NewValidationError(errors.New("invalid filter"), FieldError{Field: "status", Error: "select a valid choice"})
	}
	filter.LecturerID = p.ID()
	filter.StudentID = ""
	filter.SessionID = ""
	return s.store.ListRecords(ctx, filter)
}

// ChartSeries is the chart data of one course in a student's records view.
type ChartSeries struct {
	Dates    []string `json:"dates"`
	Statuses []int    `json:"statuses"`
}

// StudentRecordsView is a student's own records plus chart data keyed by course code.
type StudentRecordsView struct {
	Records []Record               `json:"records"`
	Charts  map[string]ChartSeries `json:"attendance_data"`
}

// StudentRecords lists the records of the student p, newest session first, with chart series
// for every enrolled course that has at least one session.
func (s *Service) StudentRecords(ctx context.Context, p Principal) (StudentRecordsView, error) {
	if err := p.RequireStudent(); err != nil {
		return StudentRecordsView{}, err
	}
	records, err := s.store.ListRecords(ctx, RecordFilter{StudentID: p.ID()})
	if err != nil {
		return StudentRecordsView{}, err
	}
	summaries, err := s.StudentAttendanceSummary(ctx, p.ID())
	if err != nil {
		return StudentRecordsView{}, err
	}
	view := StudentRecordsView{Records: records, Charts: make(map[string]ChartSeries, len(summaries))}
	for _, sum := range summaries {
		if len(sum.Series) == 0 {
			continue
		}
		var cs ChartSeries
		for _, pt := range sum.Series {
			cs.Dates = append(cs.Dates, pt.Date.String())
			cs.Statuses = append(cs.Statuses, pt.Attended)
		}
		view.Charts[sum.Course.Code] = cs
	}
	return view, nil
}

func sortChronologically(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].Before(sessions[j]) })
}
