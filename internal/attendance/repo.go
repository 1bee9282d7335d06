package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// unique constraint name -> sentinel, see internal/store/schema.sql
var uniqueViolations = map[string]error{
	"users_username_key":             ErrDuplicateUsername,
	"profiles_student_id_key":        ErrDuplicateStudentID,
	"courses_code_key":               ErrDuplicateCode,
	"enrollments_student_course_key": ErrDuplicateEnrollment,
	"class_sessions_slot_key":        ErrDuplicateSlot,
}

// classify maps Postgres unique violations to their sentinel and wraps anything else.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if sentinel, ok := uniqueViolations[pgErr.ConstraintName]; ok {
			return sentinel
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return errors.Wrap(err, op)
}

// whereBuilder collects AND-ed clauses with $n placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// -------- Users --------

// CreateUser inserts the user and its profile in one transaction.
func (r *Repository) CreateUser(ctx context.Context, usr User, prof Profile) (User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, errors.Wrap(err, "begin create user")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, username, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, usr.ID, usr.Username, usr.Name, usr.Email, usr.PasswordHash, usr.CreatedAt); err != nil {
		return User{}, classify(err, "insert user")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, role, student_id, phone, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
	`, usr.ID, string(prof.Role), prof.StudentID, prof.Phone, prof.CreatedAt); err != nil {
		return User{}, classify(err, "insert profile")
	}
	if err := tx.Commit(); err != nil {
		return User{}, errors.Wrap(err, "commit create user")
	}
	return usr, nil
}

const userColumns = `id, username, name, email, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, classify(err, "get user")
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	return u, classify(err, "get user by username")
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var (
		p    Profile
		role string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, role, COALESCE(student_id, ''), phone, created_at
		FROM profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &role, &p.StudentID, &p.Phone, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrProfileMissing
	}
	if err != nil {
		return Profile{}, errors.Wrap(err, "get profile")
	}
	p.Role = Role(role)
	return p, nil
}

func (r *Repository) StudentIDExists(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE student_id = $1)`, studentID).Scan(&exists)
	return exists, classify(err, "check student id")
}

const studentColumns = `u.id, u.username, u.name, COALESCE(p.student_id, '')`

func scanStudents(rows *sql.Rows) ([]Student, error) {
	defer rows.Close()
	var res []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.UserID, &st.Username, &st.Name, &st.StudentID); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+`
		FROM users u JOIN profiles p ON p.user_id = u.id
		WHERE p.role = 'student'
		ORDER BY u.name, u.username
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list students")
	}
	return scanStudents(rows)
}

// -------- Courses --------

const courseColumns = `c.id, c.code, c.name, c.description, c.lecturer_id, u.name, c.created_at, c.updated_at`

func scanCourse(row interface{ Scan(...any) error }) (Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.LecturerID, &c.LecturerName, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *Repository) CreateCourse(ctx context.Context, c Course) (Course, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, code, name, description, lecturer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Code, c.Name, c.Description, c.LecturerID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return Course{}, classify(err, "insert course")
	}
	return r.GetCourse(ctx, c.ID)
}

func (r *Repository) GetCourse(ctx context.Context, id string) (Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx, `
		SELECT `+courseColumns+`
		FROM courses c JOIN users u ON u.id = c.lecturer_id
		WHERE c.id = $1
	`, id))
	return c, classify(err, "get course")
}

func (r *Repository) UpdateCourse(ctx context.Context, c Course) (Course, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE courses SET code = $2, name = $3, description = $4, updated_at = $5
		WHERE id = $1
	`, c.ID, c.Code, c.Name, c.Description, c.UpdatedAt)
	if err != nil {
		return Course{}, classify(err, "update course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Course{}, ErrNotFound
	}
	return r.GetCourse(ctx, c.ID)
}

// DeleteCourse relies on ON DELETE CASCADE for enrollments, sessions and records.
func (r *Repository) DeleteCourse(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListCourses(ctx context.Context, filter CourseFilter) ([]Course, error) {
	var w whereBuilder
	if filter.LecturerID != "" {
		w.add("c.lecturer_id = ?", filter.LecturerID)
	}
	if filter.StudentID != "" {
		w.add("EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = ?)", filter.StudentID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+courseColumns+`
		FROM courses c JOIN users u ON u.id = c.lecturer_id`+w.String()+`
		ORDER BY c.code
	`, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "list courses")
	}
	defer rows.Close()
	var res []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// -------- Enrollments --------

func (r *Repository) CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, student_id, course_id, enrolled_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, e.StudentID, e.CourseID, e.EnrolledAt)
	if err != nil {
		return Enrollment{}, classify(err, "insert enrollment")
	}
	res, err := r.ListEnrollments(ctx, EnrollmentFilter{StudentID: e.StudentID, CourseID: e.CourseID})
	if err != nil {
		return Enrollment{}, err
	}
	if len(res) == 0 {
		return Enrollment{}, ErrNotFound
	}
	return res[0], nil
}

func (r *Repository) ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	var w whereBuilder
	if filter.LecturerID != "" {
		w.add("c.lecturer_id = ?", filter.LecturerID)
	}
	if filter.StudentID != "" {
		w.add("e.student_id = ?", filter.StudentID)
	}
	if filter.CourseID != "" {
		w.add("e.course_id = ?", filter.CourseID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.student_id, e.course_id, c.code, c.name, e.enrolled_at, `+studentColumns+`
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		JOIN users u ON u.id = e.student_id
		LEFT JOIN profiles p ON p.user_id = u.id`+w.String()+`
		ORDER BY e.enrolled_at DESC
	`, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "list enrollments")
	}
	defer rows.Close()
	var res []Enrollment
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.CourseCode, &e.CourseName, &e.EnrolledAt,
			&e.Student.UserID, &e.Student.Username, &e.Student.Name, &e.Student.StudentID); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r *Repository) ListEnrolledStudents(ctx context.Context, courseID string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+`
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		JOIN profiles p ON p.user_id = u.id
		WHERE e.course_id = $1 AND p.role = 'student'
		ORDER BY u.name, u.username
	`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "list enrolled students")
	}
	return scanStudents(rows)
}

// -------- Sessions --------

const sessionColumns = `s.id, s.course_id, c.code, c.name, s.session_date, to_char(s.session_time, 'HH24:MI'), s.topic, s.created_by, s.created_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.CourseID, &s.CourseCode, &s.CourseName, &s.Date.Time, &s.Time, &s.Topic, &s.CreatedBy, &s.CreatedAt)
	return s, err
}

func (r *Repository) CreateSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO class_sessions (id, course_id, session_date, session_time, topic, created_by, created_at)
		VALUES ($1, $2, $3::text::date, $4::text::time, $5, $6, $7)
	`, s.ID, s.CourseID, s.Date.String(), s.Time, s.Topic, s.CreatedBy, s.CreatedAt)
	if err != nil {
		return Session{}, classify(err, "insert session")
	}
	return r.GetSession(ctx, s.ID)
}

func (r *Repository) GetSession(ctx context.Context, id string) (Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM class_sessions s JOIN courses c ON c.id = s.course_id
		WHERE s.id = $1
	`, id))
	return s, classify(err, "get session")
}

func (r *Repository) ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error) {
	var w whereBuilder
	if filter.CreatedBy != "" {
		w.add("s.created_by = ?", filter.CreatedBy)
	}
	if filter.CourseID != "" {
		w.add("s.course_id = ?", filter.CourseID)
	}
	if filter.StudentID != "" {
		w.add("EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = s.course_id AND e.student_id = ?)", filter.StudentID)
	}
	query := `
		SELECT ` + sessionColumns + `
		FROM class_sessions s JOIN courses c ON c.id = s.course_id` + w.String() + `
		ORDER BY s.session_date DESC, s.session_time DESC`
	if filter.Limit > 0 {
		w.args = append(w.args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(w.args))
	}
	rows, err := r.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// -------- Records --------

func (r *Repository) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	var w whereBuilder
	if filter.SessionID != "" {
		w.add("a.session_id = ?", filter.SessionID)
	}
	if filter.StudentID != "" {
		w.add("a.student_id = ?", filter.StudentID)
	}
	if filter.LecturerID != "" {
		w.add("c.lecturer_id = ?", filter.LecturerID)
	}
	if filter.CourseID != "" {
		w.add("s.course_id = ?", filter.CourseID)
	}
	if filter.From != nil {
		w.add("s.session_date >= ?::text::date", filter.From.String())
	}
	if filter.To != nil {
		w.add("s.session_date <= ?::text::date", filter.To.String())
	}
	if filter.Status != "" {
		w.add("a.status = ?", string(filter.Status))
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.session_id, a.student_id, a.status, a.remarks, a.marked_at,
			s.course_id, c.code, s.session_date, to_char(s.session_time, 'HH24:MI'), `+studentColumns+`
		FROM attendance_records a
		JOIN class_sessions s ON s.id = a.session_id
		JOIN courses c ON c.id = s.course_id
		JOIN users u ON u.id = a.student_id
		LEFT JOIN profiles p ON p.user_id = u.id`+w.String()+`
		ORDER BY s.session_date DESC, s.session_time DESC, u.name
	`, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var (
			rec    Record
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &status, &rec.Remarks, &rec.MarkedAt,
			&rec.CourseID, &rec.CourseCode, &rec.SessionDate.Time, &rec.SessionTime,
			&rec.Student.UserID, &rec.Student.Username, &rec.Student.Name, &rec.Student.StudentID); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// UpsertRecords writes every record of the batch or none of them.
func (r *Repository) UpsertRecords(ctx context.Context, sessionID string, records []Record, markedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin upsert records")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, status, remarks, marked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, student_id)
		DO UPDATE SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, marked_at = EXCLUDED.marked_at
	`)
	if err != nil {
		return errors.Wrap(err, "prepare upsert record")
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), sessionID, rec.StudentID, string(rec.Status), rec.Remarks, markedAt); err != nil {
			return errors.Wrapf(err, "upsert record for student %s", rec.StudentID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit upsert records")
}
