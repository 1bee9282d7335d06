package attendance

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"
)

// NewUser contains information needed to register a user with a profile.
type NewUser struct {
	Username        string `json:"username" form:"username"`
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
	Role            Role   `json:"role" form:"role"`
	StudentID       string `json:"student_id" form:"student_id"`
	Phone           string `json:"phone" form:"phone"`
}

func (nu *NewUser) validate() error {
	nu.Username = cleanString(nu.Username, true)
	nu.Name = cleanString(nu.Name)
	nu.Email = cleanString(nu.Email, true)
	nu.StudentID = cleanString(nu.StudentID)
	nu.Phone = cleanString(nu.Phone)

	var fe fieldErrors
	if nu.Username == "" {
		fe.add("username", "this field is required")
	}
	if nu.Name == "" {
		fe.add("name", "this field is required")
	}
	if nu.Email != "" {
		if _, err := mail.ParseAddress(nu.Email); err != nil {
			fe.add("email", "enter a valid email address")
		}
	}
	if nu.Password == "" {
		fe.add("password", "this field is required")
	} else if nu.Password != nu.PasswordConfirm {
		fe.add("password_confirm", "the two password fields didn't match")
	}
	if !nu.Role.Valid() {
		fe.add("role", "select a valid role")
	}
	if nu.Role == RoleStudent && nu.StudentID == "" {
		fe.add("student_id", "student id is required for student accounts")
	}
	if len(nu.StudentID) > 20 {
		fe.add("student_id", "ensure this value has at most 20 characters")
	}
	if len(nu.Phone) > 15 {
		fe.add("phone", "ensure this value has at most 15 characters")
	}
	return fe.err("invalid registration")
}

// Register creates a user together with its profile.
func (s *Service) Register(ctx context.Context, nu NewUser) (User, Profile, error) {
	if err := nu.validate(); err != nil {
		return User{}, Profile{}, err
	}
	if nu.Role == RoleLecturer {
		// student ids identify students only
		nu.StudentID = ""
	}
	if nu.StudentID != "" {
		exists, err := s.store.StudentIDExists(ctx, nu.StudentID)
		if err != nil {
			return User{}, Profile{}, err
		}
		if exists {
			return User{}, Profile{}, ErrDuplicateStudentID
		}
	}

	now := s.now()
	usr := User{Username: nu.Username, Name: nu.Name, Email: nu.Email, CreatedAt: now}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, Profile{}, errors.Wrap(err, "hash password")
	}
	prof := Profile{Role: nu.Role, StudentID: nu.StudentID, Phone: nu.Phone, CreatedAt: now}
	usr, err := s.store.CreateUser(ctx, usr, prof)
	if err != nil {
		return User{}, Profile{}, err
	}
	prof.UserID = usr.ID
	return usr, prof, nil
}

// Authenticate checks a username/password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	usr, err := s.store.GetUserByUsername(ctx, cleanString(username, true))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := usr.CheckPassword(password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}
