package attendance

import "github.com/pkg/errors"

var (
	ErrProfileMissing      = errors.New("profile not found, please contact the administrator")
	ErrAccessDenied        = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateCode       = errors.New("a course with this code already exists")
	ErrDuplicateEnrollment = errors.New("student is already enrolled in this course")
	ErrDuplicateSlot       = errors.New("a session already exists for this course, date and time")
	ErrDuplicateStudentID  = errors.New("this student id is already registered")
	ErrDuplicateUsername   = errors.New("a user with this username already exists")
	ErrInvalidCredentials  = errors.New("invalid username or password")
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports malformed input together with the offending fields.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "invalid input"
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsDuplicate reports whether err is one of the uniqueness violations.
func IsDuplicate(err error) bool {
	for _, target := range []error{ErrDuplicateCode, ErrDuplicateEnrollment, ErrDuplicateSlot, ErrDuplicateStudentID, ErrDuplicateUsername} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// DuplicateField names the input field a uniqueness violation belongs to.
func DuplicateField(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateCode):
		return "code"
	case errors.Is(err, ErrDuplicateEnrollment):
		return "student"
	case errors.Is(err, ErrDuplicateSlot):
		return "time"
	case errors.Is(err, ErrDuplicateStudentID):
		return "student_id"
	case errors.Is(err, ErrDuplicateUsername):
		return "username"
	}
	return ""
}

// fieldErrors accumulates per-field problems and turns them into a ValidationError.
type fieldErrors []FieldError

func (f *fieldErrors) add(field, msg string) {
	*f = append(*f, FieldError{Field: field, Error: msg})
}

func (f fieldErrors) err(msg string) error {
	if len(f) == 0 {
		return nil
	}
	return NewValidationError(errors.New(msg), f...)
}
