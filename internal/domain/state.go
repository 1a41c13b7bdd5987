package domain

// AuthStatus is the identity lifecycle of the session.
type AuthStatus string

const (
	AuthUnauthenticated AuthStatus = "unauthenticated"
	AuthAuthenticating  AuthStatus = "authenticating"
	AuthAuthenticated   AuthStatus = "authenticated"
	AuthError           AuthStatus = "auth-error"
)

// Overlay names the modal surface currently considered active.
type Overlay string

const (
	OverlayNone        Overlay = ""
	OverlayLanding     Overlay = "landing"
	OverlaySyncProfile Overlay = "sync-profile"
	OverlaySettings    Overlay = "settings"
	OverlayCoverLetter Overlay = "cover-letter"
)

// LetterStatus is the lifecycle of the most recent generation call.
type LetterStatus string

const (
	LetterIdle    LetterStatus = ""
	LetterPending LetterStatus = "pending"
	LetterReady   LetterStatus = "ready"
	LetterFailed  LetterStatus = "error"
)

// Identity is the authenticated principal as reported by the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthState tracks the identity sub-status. Error carries the collaborator
// failure message when Status is AuthError; it never crosses the bus as an
// exception.
type AuthState struct {
	Status   AuthStatus `json:"status"`
	Identity *Identity  `json:"identity"`
	Error    string     `json:"error,omitempty"`
}

// LetterState holds the most recent text-generation result.
type LetterState struct {
	Status LetterStatus `json:"status,omitempty"`
	Text   string       `json:"text,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// SessionState is the single authoritative state object owned by the
// background coordinator. UI surfaces only ever hold eventually-stale copies
// of it, obtained through Snapshot or state-changed broadcasts.
type SessionState struct {
	Auth          AuthState    `json:"auth"`
	Profile       *Profile     `json:"profile"`
	StoredProfile *Profile     `json:"storedProfile"`
	PanelVisible  bool         `json:"panelVisible"`
	Overlay       Overlay      `json:"overlay"`
	Letter        LetterState  `json:"letter"`
	SaveError     string       `json:"saveError,omitempty"`
}

// DefaultSessionState is the state a fresh background process starts from.
func DefaultSessionState() SessionState {
	return SessionState{
		Auth:         AuthState{Status: AuthUnauthenticated},
		PanelVisible: true,
	}
}

// Clone returns a deep copy safe to hand to another context.
func (s SessionState) Clone() SessionState {
	c := s
	if s.Auth.Identity != nil {
		id := *s.Auth.Identity
		c.Auth.Identity = &id
	}
	c.Profile = s.Profile.Clone()
	c.StoredProfile = s.StoredProfile.Clone()
	return c
}
