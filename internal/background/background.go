// Package background wires the message-bus dispatch table of the
// long-lived background process: it is the only place where surface
// envelopes meet the state coordinator and the external collaborators.
package background

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tebita/sidekick/internal/bus"
	"github.com/tebita/sidekick/internal/domain"
	"github.com/tebita/sidekick/internal/identity"
	"github.com/tebita/sidekick/internal/letter"
	"github.com/tebita/sidekick/internal/state"
	"github.com/tebita/sidekick/internal/store"
)

// IdentityProvider is the slice of the identity collaborator the background
// process consumes.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	SignUp(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, email string) error
	CurrentUser(ctx context.Context, token string) (*domain.Identity, error)
}

// Generator is the text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, p letter.Payload) (string, error)
}

// Scraper triggers extraction passes against the live browser. Nil when the
// browser boundary is disabled.
type Scraper interface {
	ScrapeProfile(ctx context.Context) (*domain.Profile, error)
	JobDetails(ctx context.Context) (*domain.JobDetails, error)
	InsertLetter(ctx context.Context, text string) error
}

// Background holds the dispatch dependencies. The session token never
// leaves this process; surfaces only ever see the identity snapshot.
type Background struct {
	coord   *state.Coordinator
	ident   IdentityProvider
	gen     Generator
	scraper Scraper
	repo    store.Repository
	hub     *bus.Hub
	logger  *slog.Logger

	mu    sync.Mutex
	token string
}

// New assembles the background dispatcher. scraper may be nil.
func New(coord *state.Coordinator, ident IdentityProvider, gen Generator, scraper Scraper, repo store.Repository, hub *bus.Hub, logger *slog.Logger) *Background {
	if logger == nil {
		logger = slog.Default()
	}
	return &Background{
		coord:   coord,
		ident:   ident,
		gen:     gen,
		scraper: scraper,
		repo:    repo,
		hub:     hub,
		logger:  logger,
	}
}

// Register installs the full dispatch table on the mux.
func (b *Background) Register(mux *bus.Mux) {
	mux.Handle(bus.KindProfileScraped, b.handleProfileScraped)
	mux.Handle(bus.KindGetState, b.handleGetState)
	mux.Handle(bus.KindDispatchAction, b.handleDispatchAction)
	mux.Handle(bus.KindSignIn, b.handleSignIn)
	mux.Handle(bus.KindSignUp, b.handleSignUp)
	mux.Handle(bus.KindSignOut, b.handleSignOut)
	mux.Handle(bus.KindResetPassword, b.handleResetPassword)
	mux.Handle(bus.KindGetIdentity, b.handleGetIdentity)
	mux.Handle(bus.KindScrapeProfile, b.handleScrapeProfile)
	mux.Handle(bus.KindGenerateLetter, b.handleGenerateLetter)
	mux.Handle(bus.KindShowLanding, b.relayOverlay(domain.OverlayLanding))
	mux.Handle(bus.KindShowSyncProfile, b.relayOverlay(domain.OverlaySyncProfile))
	mux.Handle(bus.KindShowSettings, b.relayOverlay(domain.OverlaySettings))
}

func (b *Background) setToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

func (b *Background) currentToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// handleProfileScraped consumes the fire-and-forget extraction event.
func (b *Background) handleProfileScraped(ctx context.Context, payload json.RawMessage) (any, error) {
	var record domain.Profile
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode scraped profile: %w", err)
	}
	b.logger.Info("Extracted profile received")
	b.coord.ApplyExtractedProfile(ctx, &record)
	return nil, nil
}

func (b *Background) handleGetState(ctx context.Context, payload json.RawMessage) (any, error) {
	return b.coord.Snapshot(), nil
}

// actionRequest is the dispatch-action payload: a named operation plus its
// arguments.
type actionRequest struct {
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

func (b *Background) handleDispatchAction(ctx context.Context, payload json.RawMessage) (any, error) {
	var req actionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}

	switch req.Action {
	case "overlay/set":
		var args struct {
			Name domain.Overlay `json:"name"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, fmt.Errorf("decode overlay args: %w", err)
		}
		b.coord.SetOverlay(args.Name)
	case "panel/show":
		b.coord.ShowPanel()
	case "panel/hide":
		b.coord.HidePanel()
	case "panel/toggle":
		b.coord.TogglePanel()
	case "letter/clear":
		b.coord.ClearLetter()
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
	return b.coord.Snapshot(), nil
}

func (b *Background) handleSignIn(ctx context.Context, payload json.RawMessage) (any, error) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(payload, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}

	b.coord.BeginAuth()
	sess, err := b.ident.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		b.coord.CompleteAuth(nil, err)
		return b.coord.Snapshot(), nil
	}

	b.setToken(sess.AccessToken)
	b.coord.CompleteAuth(&sess.Identity, nil)
	b.loadStoredProfile(ctx, sess.Identity.ID)
	return b.coord.Snapshot(), nil
}

func (b *Background) handleSignUp(ctx context.Context, payload json.RawMessage) (any, error) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(payload, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}

	b.coord.BeginAuth()
	sess, err := b.ident.SignUp(ctx, creds.Email, creds.Password)
	switch {
	case err != nil:
		b.coord.CompleteAuth(nil, err)
	case sess.AccessToken == "":
		// Registration accepted but the session is deferred until the
		// confirmation email round-trips.
		b.coord.CompleteAuth(nil, nil)
	default:
		b.setToken(sess.AccessToken)
		b.coord.CompleteAuth(&sess.Identity, nil)
	}
	return b.coord.Snapshot(), nil
}

func (b *Background) handleSignOut(ctx context.Context, payload json.RawMessage) (any, error) {
	token := b.currentToken()
	if err := b.ident.SignOut(ctx, token); err != nil {
		// Sign-out is best effort: the local session clears regardless.
		b.logger.Warn("Identity sign-out failed", "error", err)
	}
	b.setToken("")
	b.coord.ClearAuth()
	return b.coord.Snapshot(), nil
}

func (b *Background) handleResetPassword(ctx context.Context, payload json.RawMessage) (any, error) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode reset request: %w", err)
	}
	if err := b.ident.ResetPassword(ctx, req.Email); err != nil {
		return nil, err
	}
	return map[string]string{"status": "reset email sent"}, nil
}

func (b *Background) handleGetIdentity(ctx context.Context, payload json.RawMessage) (any, error) {
	id, err := b.ident.CurrentUser(ctx, b.currentToken())
	if err != nil {
		return nil, err
	}
	// A vanished identity reads as a signed-out session.
	if id == nil {
		return map[string]any{"identity": nil}, nil
	}
	return map[string]any{"identity": id}, nil
}

func (b *Background) handleScrapeProfile(ctx context.Context, payload json.RawMessage) (any, error) {
	if b.scraper == nil {
		return nil, fmt.Errorf("browser boundary disabled")
	}
	record, err := b.scraper.ScrapeProfile(ctx)
	if err != nil {
		return nil, err
	}
	b.coord.ApplyExtractedProfile(ctx, record)
	return record, nil
}

// generateRequest optionally carries pre-captured job details; when absent
// the scraper harvests them from the active page.
type generateRequest struct {
	JobDetailsHTML string `json:"jobDetailsHtml,omitempty"`
	URL            string `json:"url,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	Insert         bool   `json:"insert,omitempty"`
}

func (b *Background) handleGenerateLetter(ctx context.Context, payload json.RawMessage) (any, error) {
	var req generateRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode generate request: %w", err)
		}
	}

	details := &domain.JobDetails{HTML: req.JobDetailsHTML, URL: req.URL, Timestamp: req.Timestamp}
	if details.HTML == "" {
		if b.scraper == nil {
			return nil, fmt.Errorf("no job details supplied and browser boundary disabled")
		}
		var err error
		details, err = b.scraper.JobDetails(ctx)
		if err != nil {
			b.coord.SetLetterError(err)
			return b.coord.Snapshot(), nil
		}
	}

	snap := b.coord.Snapshot()
	profile := snap.StoredProfile
	if profile == nil {
		profile = snap.Profile
	}
	if profile == nil {
		err := fmt.Errorf("no profile available for generation")
		b.coord.SetLetterError(err)
		return b.coord.Snapshot(), nil
	}
	var userID string
	if snap.Auth.Identity != nil {
		userID = snap.Auth.Identity.ID
	}

	b.coord.SetLetterPending()
	text, err := b.gen.Generate(ctx, letter.Payload{
		JobDetailsHTML: details.HTML,
		URL:            details.URL,
		UserID:         userID,
		Timestamp:      details.Timestamp,
		UserProfile:    profile,
	})
	if err != nil {
		b.coord.SetLetterError(err)
		return b.coord.Snapshot(), nil
	}
	b.coord.SetLetterResult(text)

	if req.Insert && b.scraper != nil {
		if err := b.scraper.InsertLetter(ctx, text); err != nil {
			b.logger.Warn("Failed to insert letter into page", "error", err)
		}
	}
	return b.coord.Snapshot(), nil
}

// relayOverlay handles the panel-visibility trigger events: force the panel
// visible, activate the named overlay, and relay the trigger to every
// surface (surfaces running stale code key off the event itself).
func (b *Background) relayOverlay(name domain.Overlay) bus.HandlerFunc {
	kind := map[domain.Overlay]string{
		domain.OverlayLanding:     bus.KindShowLanding,
		domain.OverlaySyncProfile: bus.KindShowSyncProfile,
		domain.OverlaySettings:    bus.KindShowSettings,
	}[name]
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		b.coord.ShowPanel()
		b.coord.SetOverlay(name)
		if b.hub != nil {
			b.hub.Broadcast(kind, nil)
		}
		return nil, nil
	}
}

// loadStoredProfile pulls the persisted profile for a fresh session. A miss
// or failure is non-fatal.
func (b *Background) loadStoredProfile(ctx context.Context, identityID string) {
	if b.repo == nil {
		return
	}
	p, err := b.repo.FetchProfile(ctx, identityID)
	if err != nil {
		b.logger.Warn("Failed to fetch stored profile", "error", err)
		return
	}
	if p != nil {
		b.coord.SetStoredProfile(p)
	}
}
