// Package state owns the authoritative session state of the background
// process. Every mutation goes through a named operation on the
// Coordinator; all other contexts only ever hold snapshots.
package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tebita/sidekick/internal/bus"
	"github.com/tebita/sidekick/internal/domain"
	"github.com/tebita/sidekick/internal/store"
)

// Broadcaster fans a state-changed event out to every listening surface.
// Implementations must not block: enqueue and return.
type Broadcaster interface {
	Broadcast(kind string, payload any)
}

// Coordinator is the sole writer of SessionState. Each operation computes
// its full next-state value and commits it in one critical section, so a
// concurrently scheduled read can never observe a half-updated state.
type Coordinator struct {
	repo   store.Repository
	bc     Broadcaster
	logger *slog.Logger

	mu    sync.Mutex
	state domain.SessionState
}

// New creates a coordinator with default state. repo may be nil when
// persistence is disabled; bc may be nil in tests.
func New(repo store.Repository, bc Broadcaster, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		repo:   repo,
		bc:     bc,
		logger: logger,
		state:  domain.DefaultSessionState(),
	}
}

// Snapshot returns the current state by value. Callers never receive a
// mutable reference.
func (c *Coordinator) Snapshot() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// broadcastLocked publishes the committed state while still inside the
// critical section, so broadcasts leave in commit order. The broadcaster
// only enqueues.
func (c *Coordinator) broadcastLocked() {
	if c.bc == nil {
		return
	}
	c.bc.Broadcast(bus.KindStateChanged, c.state.Clone())
}

// ApplyExtractedProfile merges one harvested record into the profile and
// forwards it to the persistence collaborator. The in-memory view always
// reflects the freshest extraction: a persistence failure is recorded as a
// side-channel error, never rolled back.
func (c *Coordinator) ApplyExtractedProfile(ctx context.Context, record *domain.Profile) {
	c.mu.Lock()
	merged := domain.Merge(c.state.Profile, record)
	next := c.state.Clone()
	next.Profile = merged
	next.SaveError = ""
	var identityID string
	if next.Auth.Identity != nil {
		identityID = next.Auth.Identity.ID
	}
	c.state = next
	c.broadcastLocked()
	c.mu.Unlock()

	if c.repo == nil {
		return
	}
	if _, err := c.repo.InsertProfile(ctx, identityID, record); err != nil {
		c.logger.Error("Failed to persist extracted profile", "error", err)
		c.mu.Lock()
		failed := c.state.Clone()
		failed.SaveError = err.Error()
		c.state = failed
		c.broadcastLocked()
		c.mu.Unlock()
	}
}

// BeginAuth moves the identity status to Authenticating.
func (c *Coordinator) BeginAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.Clone()
	next.Auth = domain.AuthState{Status: domain.AuthAuthenticating}
	c.state = next
	c.broadcastLocked()
}

// CompleteAuth settles an authentication attempt. A nil err with a non-nil
// identity lands on Authenticated (and hides the panel, matching the
// sign-in flow); otherwise the failure message is attached under AuthError
// and the identity stays nil.
func (c *Coordinator) CompleteAuth(identity *domain.Identity, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.Clone()
	if err != nil {
		next.Auth = domain.AuthState{Status: domain.AuthError, Error: err.Error()}
	} else if identity == nil {
		next.Auth = domain.AuthState{Status: domain.AuthUnauthenticated}
	} else {
		id := *identity
		next.Auth = domain.AuthState{Status: domain.AuthAuthenticated, Identity: &id}
		next.PanelVisible = false
	}
	c.state = next
	c.broadcastLocked()
}

// ClearAuth signs the session out and shows the panel again.
func (c *Coordinator) ClearAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.Clone()
	next.Auth = domain.AuthState{Status: domain.AuthUnauthenticated}
	next.StoredProfile = nil
	next.PanelVisible = true
	c.state = next
	c.broadcastLocked()
}

// SetStoredProfile records the profile fetched from the persistence
// collaborator after sign-in.
func (c *Coordinator) SetStoredProfile(p *domain.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.Clone()
	next.StoredProfile = p.Clone()
	c.state = next
	c.broadcastLocked()
}

// SetOverlay toggles which overlay is active. Last writer wins, no
// queueing; setting the current value again is a no-op with no broadcast.
func (c *Coordinator) SetOverlay(name domain.Overlay) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Overlay == name {
		return
	}
	next := c.state.Clone()
	next.Overlay = name
	c.state = next
	c.broadcastLocked()
}

// ShowPanel makes the panel visible.
func (c *Coordinator) ShowPanel() { c.setPanel(true) }

// HidePanel hides the panel.
func (c *Coordinator) HidePanel() { c.setPanel(false) }

// TogglePanel flips panel visibility.
func (c *Coordinator) TogglePanel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.Clone()
	next.PanelVisible = !next.PanelVisible
	c.state = next
	c.broadcastLocked()
}

func (c *Coordinator) setPanel(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.PanelVisible == visible {
		return
	}
	next := c.state.Clone()
	next.PanelVisible = visible
	c.state = next
	c.broadcastLocked()
}

// SetLetterPending marks a generation call in flight and clears any prior
// result.
func (c *Coordinator) SetLetterPending() {
	c.setLetter(domain.LetterState{Status: domain.LetterPending})
}

// SetLetterResult records a successful generation.
func (c *Coordinator) SetLetterResult(text string) {
	c.setLetter(domain.LetterState{Status: domain.LetterReady, Text: text})
}

// SetLetterError records a failed generation as a value, not an exception.
func (c *Coordinator) SetLetterError(err error) {
	c.setLetter(domain.LetterState{Status: domain.LetterFailed, Error: err.Error()})
}

// ClearLetter resets the generation sub-state.
func (c *Coordinator) ClearLetter() {
	c.setLetter(domain.LetterState{})
}

func (c *Coordinator) setLetter(ls domain.LetterState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.Clone()
	next.Letter = ls
	c.state = next
	c.broadcastLocked()
}
