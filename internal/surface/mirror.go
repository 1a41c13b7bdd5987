// Package surface implements the context-adapter side of the bus: a thin
// state-mirroring client that requests current state on mount, applies
// state-changed broadcasts, and dispatches action requests. The mirror is
// read-only and eventually consistent; it never mutates state locally.
package surface

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/tebita/sidekick/internal/bus"
	"github.com/tebita/sidekick/internal/domain"
)

// ChangeFunc observes each applied state snapshot.
type ChangeFunc func(domain.SessionState)

// Mirror is one surface's disposable copy of the session state.
type Mirror struct {
	client *bus.Client
	logger *slog.Logger

	mu       sync.RWMutex
	state    domain.SessionState
	applied  bool
	onChange []ChangeFunc
}

// Attach subscribes to state broadcasts and primes the mirror with a
// get-state round trip. The subscription is registered before the request
// so a broadcast racing the reply is not lost.
func Attach(ctx context.Context, client *bus.Client, logger *slog.Logger) (*Mirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mirror{client: client, logger: logger}

	client.OnEvent(bus.KindStateChanged, func(payload json.RawMessage) {
		var next domain.SessionState
		if err := json.Unmarshal(payload, &next); err != nil {
			logger.Warn("Dropping malformed state broadcast", "error", err)
			return
		}
		m.apply(next)
	})

	var initial domain.SessionState
	if err := m.client.RequestJSON(ctx, bus.KindGetState, nil, &initial); err != nil {
		return nil, err
	}
	m.applyInitial(initial)
	return m, nil
}

func (m *Mirror) apply(next domain.SessionState) {
	m.commit(next, false)
}

// applyInitial seeds the mirror with the get-state reply. When a broadcast
// already landed, the reply is dropped: broadcasts carry committed state at
// least as fresh as any snapshot taken before the reply was sent.
func (m *Mirror) applyInitial(next domain.SessionState) {
	m.commit(next, true)
}

func (m *Mirror) commit(next domain.SessionState, initial bool) {
	m.mu.Lock()
	if initial && m.applied {
		m.mu.Unlock()
		return
	}
	m.applied = true
	m.state = next
	observers := append([]ChangeFunc(nil), m.onChange...)
	m.mu.Unlock()
	for _, fn := range observers {
		fn(next.Clone())
	}
}

// Snapshot returns the mirror's current copy by value.
func (m *Mirror) Snapshot() domain.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// OnChange registers an observer for future snapshots.
func (m *Mirror) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Dispatch sends a named operation to the coordinator and returns the
// resulting snapshot.
func (m *Mirror) Dispatch(ctx context.Context, action string, args any) (domain.SessionState, error) {
	payload := struct {
		Action string `json:"action"`
		Args   any    `json:"args,omitempty"`
	}{Action: action, Args: args}

	var snap domain.SessionState
	if err := m.client.RequestJSON(ctx, bus.KindDispatchAction, payload, &snap); err != nil {
		return domain.SessionState{}, err
	}
	m.apply(snap)
	return snap, nil
}

// SignIn runs the asynchronous sign-in request; the outcome lands in the
// auth sub-state of the returned snapshot rather than in an error.
func (m *Mirror) SignIn(ctx context.Context, email, password string) (domain.SessionState, error) {
	return m.authRequest(ctx, bus.KindSignIn, email, password)
}

// SignUp runs the registration request.
func (m *Mirror) SignUp(ctx context.Context, email, password string) (domain.SessionState, error) {
	return m.authRequest(ctx, bus.KindSignUp, email, password)
}

// SignOut clears the background session.
func (m *Mirror) SignOut(ctx context.Context) (domain.SessionState, error) {
	var snap domain.SessionState
	if err := m.client.RequestJSON(ctx, bus.KindSignOut, nil, &snap); err != nil {
		return domain.SessionState{}, err
	}
	m.apply(snap)
	return snap, nil
}

// ResetPassword asks the identity provider for a reset email.
func (m *Mirror) ResetPassword(ctx context.Context, email string) error {
	payload := struct {
		Email string `json:"email"`
	}{Email: email}
	return m.client.RequestJSON(ctx, bus.KindResetPassword, payload, nil)
}

func (m *Mirror) authRequest(ctx context.Context, kind, email, password string) (domain.SessionState, error) {
	payload := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var snap domain.SessionState
	if err := m.client.RequestJSON(ctx, kind, payload, &snap); err != nil {
		return domain.SessionState{}, err
	}
	m.apply(snap)
	return snap, nil
}
