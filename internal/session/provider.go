// Package session owns the client's authentication state and keeps it consistent
// with the remote session store.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/MuhammadAbdiel/aora-app/internal/backend"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

// ErrProfileMissing is returned when a sign-in succeeds for an account that has no
// profile document.
var ErrProfileMissing = errors.New("signed in account has no profile")

// Facade is the subset of the backend client the provider drives.
type Facade interface {
	ProbeCurrentProfile(ctx context.Context) backend.ProbeResult
	CreateAccountAndProfile(ctx context.Context, username, email, password string) (models.UserProfile, error)
	SignIn(ctx context.Context, email, password string) (models.Session, error)
	SignOut(ctx context.Context) error
}

// Provider is the single writer of AuthState. Readers take snapshots or subscribe.
type Provider struct {
	facade Facade
	logger *slog.Logger

	startMu sync.Mutex
	started bool

	mu      sync.Mutex
	state   AuthState
	issued  uint64
	applied uint64
	subs    map[int]chan AuthState
	nextSub int
}

// New constructs a Provider in the initializing state. Call Start once to probe the
// remote session.
func New(facade Facade, logger *slog.Logger) *Provider {
	if facade == nil {
		panic("session: facade must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		facade: facade,
		logger: logger,
		state:  initialState(),
		subs:   make(map[int]chan AuthState),
	}
}

// Snapshot returns the current AuthState.
func (p *Provider) Snapshot() AuthState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// Subscribe returns a channel that receives the current state immediately and every
// later transition. Slow readers only observe the latest state. The returned func
// stops the subscription and closes the channel.
func (p *Provider) Subscribe() (<-chan AuthState, func()) {
	ch := make(chan AuthState, 1)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	ch <- p.state.clone()
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

// Start probes the remote service for an existing session. Once a probe has
// resolved, later calls have no effect. A probe failure resolves to unauthenticated
// and is returned so the caller can report it. If ctx ends before the probe resolves
// the result is dropped and the next Start probes again.
func (p *Provider) Start(ctx context.Context) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.started {
		return nil
	}

	err := p.probe(ctx)
	if ctx.Err() == nil {
		p.started = true
	}
	return err
}

func (p *Provider) probe(ctx context.Context) error {
	ticket := p.begin(nil)
	result := p.facade.ProbeCurrentProfile(ctx)
	if ctx.Err() != nil {
		p.logger.Debug("startup probe discarded", "reason", ctx.Err())
		return ctx.Err()
	}

	p.logger.Info("startup probe resolved", "outcome", result.Outcome.String())

	switch result.Outcome {
	case backend.ProbeAuthenticated:
		p.apply(ticket, authenticated(*result.Profile))
		return nil
	case backend.ProbeFailed:
		p.logger.Error("startup probe failed", "error", result.Err)
		p.apply(ticket, unauthenticated())
		return result.Err
	default:
		p.apply(ticket, unauthenticated())
		return nil
	}
}

// SignUp creates an account with its profile and signs the user in.
func (p *Provider) SignUp(ctx context.Context, username, email, password string) (models.UserProfile, error) {
	ticket := p.begin(p.authenticating)

	profile, err := p.facade.CreateAccountAndProfile(ctx, username, email, password)
	if ctxErr := ctx.Err(); ctxErr != nil {
		p.apply(ticket, unauthenticated())
		return models.UserProfile{}, ctxErr
	}
	if err != nil {
		p.apply(ticket, unauthenticated())
		return models.UserProfile{}, err
	}

	p.apply(ticket, authenticated(profile))
	return profile, nil
}

// SignIn authenticates with email and password and loads the user's profile.
func (p *Provider) SignIn(ctx context.Context, email, password string) (models.UserProfile, error) {
	ticket := p.begin(p.authenticating)

	if _, err := p.facade.SignIn(ctx, email, password); err != nil {
		p.apply(ticket, unauthenticated())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.UserProfile{}, ctxErr
		}
		return models.UserProfile{}, err
	}

	result := p.facade.ProbeCurrentProfile(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		p.apply(ticket, unauthenticated())
		return models.UserProfile{}, ctxErr
	}

	switch result.Outcome {
	case backend.ProbeAuthenticated:
		p.apply(ticket, authenticated(*result.Profile))
		return *result.Profile, nil
	case backend.ProbeFailed:
		p.rollbackSignIn(ctx, result.Err)
		p.apply(ticket, unauthenticated())
		return models.UserProfile{}, result.Err
	default:
		p.rollbackSignIn(ctx, ErrProfileMissing)
		p.apply(ticket, unauthenticated())
		return models.UserProfile{}, ErrProfileMissing
	}
}

// rollbackSignIn ends the remote session created by a sign-in whose profile could
// not be loaded, so the service and the local state agree.
func (p *Provider) rollbackSignIn(ctx context.Context, cause error) {
	if err := p.facade.SignOut(ctx); err != nil {
		p.logger.Warn("sign-in rollback failed, remote session left open", "cause", cause, "error", err)
	}
}

// SignOut ends the remote session. The local state becomes unauthenticated whatever
// the remote outcome; the remote error, if any, is returned. Signing out while
// already signed out is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	if p.state.Phase == PhaseUnauthenticated {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	ticket := p.begin(nil)
	err := p.facade.SignOut(ctx)
	p.apply(ticket, unauthenticated())
	if err != nil {
		p.logger.Warn("remote sign-out failed, local session cleared", "error", err)
	}
	return err
}

// Invalidate drops the local session after the service reported it expired or
// revoked, e.g. when an unrelated call fails with an auth error.
func (p *Provider) Invalidate(reason string) {
	ticket := p.begin(nil)
	p.logger.Info("session invalidated", "reason", reason)
	p.apply(ticket, unauthenticated())
}

// begin issues a sequence number for a new operation and optionally applies an
// intermediate transition under that number.
func (p *Provider) begin(intermediate func(AuthState) AuthState) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.issued++
	ticket := p.issued
	if intermediate != nil {
		p.setLocked(ticket, intermediate(p.state))
	}
	return ticket
}

func (p *Provider) authenticating(prev AuthState) AuthState {
	return AuthState{Loading: prev.Loading, Phase: PhaseAuthenticating}
}

// apply installs next unless a newer operation has already produced a state.
func (p *Provider) apply(ticket uint64, next AuthState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ticket < p.applied {
		p.logger.Debug("discarding stale session transition", "seq", ticket, "applied", p.applied)
		return false
	}
	p.setLocked(ticket, next)
	return true
}

func (p *Provider) setLocked(ticket uint64, next AuthState) {
	if next.IsLogged && next.User == nil {
		panic("session: authenticated state without a user")
	}
	next.Seq = ticket
	p.state = next
	p.applied = ticket

	for _, ch := range p.subs {
		snapshot := next.clone()
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}
