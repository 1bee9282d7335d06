package attendance

import (
	"strings"
	"time"
)

// Service coordinates courses, enrollments, sessions, marking and reporting.
// Every method taking a Principal expects the caller to have resolved it with Authorize.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// cleanString trims surrounding whitespace and optionally lower-cases s.
func cleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		s = strings.ToLower(s)
	}
	return s
}
