package session

// Provider supplies the bearer token and current user identity for
// privileged actions. The sync core only ever reads from it; credential
// acquisition and persistence live outside this module.
type Provider interface {
	// Token returns the bearer token, or "" when no session is active.
	Token() string

	// UserID returns the authenticated user's id, or 0 when anonymous.
	UserID() int64

	// IsAuthenticated reports whether a usable session exists.
	IsAuthenticated() bool
}

// Static is a Provider backed by fixed values, typically loaded from
// configuration at startup.
type Static struct {
	BearerToken   string
	CurrentUserID int64
}

// NewStatic creates a static session provider.
func NewStatic(token string, userID int64) *Static {
	return &Static{BearerToken: token, CurrentUserID: userID}
}

func (s *Static) Token() string { return s.BearerToken }

func (s *Static) UserID() int64 { return s.CurrentUserID }

func (s *Static) IsAuthenticated() bool {
	return s.BearerToken != "" && s.CurrentUserID != 0
}
