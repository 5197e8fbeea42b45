package session

import "github.com/MuhammadAbdiel/aora-app/internal/models"

// Phase is the position of the session state machine.
type Phase int

const (
	// PhaseInitializing holds until the startup probe resolves.
	PhaseInitializing Phase = iota
	// PhaseUnauthenticated means no user is signed in locally.
	PhaseUnauthenticated
	// PhaseAuthenticating means a sign-in or sign-up is in flight.
	PhaseAuthenticating
	// PhaseAuthenticated means User is signed in.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// AuthState is the process-wide projection of the login status. IsLogged implies
// User != nil. Loading suspends every redirect decision.
type AuthState struct {
	Loading  bool
	IsLogged bool
	User     *models.UserProfile
	Phase    Phase
	// Seq is the sequence number of the operation that produced this state.
	Seq uint64
}

func initialState() AuthState {
	return AuthState{Loading: true, Phase: PhaseInitializing}
}

func authenticated(user models.UserProfile) AuthState {
	return AuthState{IsLogged: true, User: &user, Phase: PhaseAuthenticated}
}

func unauthenticated() AuthState {
	return AuthState{Phase: PhaseUnauthenticated}
}

// clone returns a copy whose User does not alias the provider's copy.
func (s AuthState) clone() AuthState {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
