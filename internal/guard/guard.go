// Package guard decides which screens are reachable for the current AuthState and
// redirects when the user is on the wrong side of the login boundary.
package guard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MuhammadAbdiel/aora-app/internal/session"
)

// Zone is the side of the login boundary a screen lives on.
type Zone int

const (
	// ZonePublic screens are only for signed-out users (onboarding, sign-in, sign-up).
	ZonePublic Zone = iota
	// ZoneProtected screens require a signed-in user.
	ZoneProtected
)

// Screen is a navigable route.
type Screen struct {
	Path string
	Zone Zone
}

// Routes of the application.
var (
	Onboarding = Screen{Path: "/", Zone: ZonePublic}
	SignIn     = Screen{Path: "/sign-in", Zone: ZonePublic}
	SignUp     = Screen{Path: "/sign-up", Zone: ZonePublic}
	Home       = Screen{Path: "/home", Zone: ZoneProtected}
	Search     = Screen{Path: "/search", Zone: ZoneProtected}
	Create     = Screen{Path: "/create", Zone: ZoneProtected}
	Profile    = Screen{Path: "/profile", Zone: ZoneProtected}
)

// Action is what the caller should do with the screen.
type Action int

const (
	// ActionLoading renders a neutral loading indicator without navigating.
	ActionLoading Action = iota
	// ActionAllow renders the screen.
	ActionAllow
	// ActionRedirect replaces the screen with Decision.Target.
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionLoading:
		return "loading"
	case ActionAllow:
		return "allow"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	Target Screen
}

// Decide applies the reachability policy. It has no side effects.
func Decide(state session.AuthState, screen Screen) Decision {
	if state.Loading {
		return Decision{Action: ActionLoading}
	}
	switch {
	case state.IsLogged && screen.Zone == ZonePublic:
		return Decision{Action: ActionRedirect, Target: Home}
	case !state.IsLogged && screen.Zone == ZoneProtected:
		return Decision{Action: ActionRedirect, Target: SignIn}
	default:
		return Decision{Action: ActionAllow}
	}
}

// Navigator performs redirects.
type Navigator interface {
	Replace(path string)
}

// Guard re-evaluates Decide on every AuthState change and drives a Navigator.
type Guard struct {
	provider *session.Provider
	nav      Navigator
	logger   *slog.Logger

	mu        sync.Mutex
	screen    Screen
	state     session.AuthState
	haveState bool
}

// New constructs a Guard positioned on the given screen.
func New(provider *session.Provider, nav Navigator, start Screen, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{provider: provider, nav: nav, screen: start, logger: logger}
}

// Screen returns the screen the guard currently considers active.
func (g *Guard) Screen() Screen {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.screen
}

// Navigate moves to screen and returns the decision taken for it.
func (g *Guard) Navigate(screen Screen) Decision {
	g.mu.Lock()
	g.screen = screen
	state := g.state
	if !g.haveState {
		state = g.provider.Snapshot()
	}
	g.mu.Unlock()
	return g.evaluate(state)
}

// Run follows the provider until ctx is done. It returns ctx.Err().
func (g *Guard) Run(ctx context.Context) error {
	updates, stop := g.provider.Subscribe()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, ok := <-updates:
			if !ok {
				return nil
			}
			g.mu.Lock()
			g.state = state
			g.haveState = true
			g.mu.Unlock()
			g.evaluate(state)
		}
	}
}

// evaluate decides for the active screen and performs at most one redirect.
func (g *Guard) evaluate(state session.AuthState) Decision {
	g.mu.Lock()
	screen := g.screen
	decision := Decide(state, screen)
	if decision.Action == ActionRedirect {
		g.screen = decision.Target
	}
	g.mu.Unlock()

	if decision.Action == ActionRedirect {
		g.logger.Info("redirecting", "from", screen.Path, "to", decision.Target.Path, "phase", state.Phase.String())
		g.nav.Replace(decision.Target.Path)
	}
	return decision
}
