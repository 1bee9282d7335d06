package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// Principal is an authenticated user with its resolved profile.
type Principal struct {
	User    User
	Profile Profile
}

func (p Principal) ID() string       { return p.User.ID }
func (p Principal) IsLecturer() bool { return p.Profile.Role == RoleLecturer }
func (p Principal) IsStudent() bool  { return p.Profile.Role == RoleStudent }

// RequireLecturer fails with ErrAccessDenied unless p is a lecturer.
func (p Principal) RequireLecturer() error {
	if !p.IsLecturer() {
		return errors.Wrap(ErrAccessDenied, "only lecturers can access this page")
	}
	return nil
}

// RequireStudent fails with ErrAccessDenied unless p is a student.
func (p Principal) RequireStudent() error {
	if !p.IsStudent() {
		return errors.Wrap(ErrAccessDenied, "only students can access this page")
	}
	return nil
}

// Authorize resolves the principal of an authenticated user id.
func (s *Service) Authorize(ctx context.Context, userID string) (Principal, error) {
	usr, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrProfileMissing
		}
		return Principal{}, err
	}
	prof, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{User: usr, Profile: prof}, nil
}
