package session

import (
	"context"
	"sync"

	"github.com/MuhammadAbdiel/aora-app/internal/backend"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

// stubFacade scripts facade responses. The first probe blocks on probeGate when set;
// probes issued while signed in return afterLogin.
type stubFacade struct {
	mu sync.Mutex

	probe      backend.ProbeResult
	probeGate  chan struct{}
	afterLogin backend.ProbeResult
	signOutErr error
	onSignIn   func()

	loggedIn bool
	started  bool
	probes   int
	signOuts int
}

func (s *stubFacade) ProbeCurrentProfile(context.Context) backend.ProbeResult {
	s.mu.Lock()
	s.probes++
	n := s.probes
	s.started = true
	gate := s.probeGate
	loggedIn := s.loggedIn
	s.mu.Unlock()

	if n == 1 {
		if gate != nil {
			<-gate
		}
		return s.probe
	}
	if loggedIn {
		return s.afterLogin
	}
	return s.probe
}

func (s *stubFacade) CreateAccountAndProfile(context.Context, string, string, string) (models.UserProfile, error) {
	return models.UserProfile{}, &backend.Error{Kind: backend.KindConflict, Message: "exists"}
}

func (s *stubFacade) SignIn(context.Context, string, string) (models.Session, error) {
	s.mu.Lock()
	s.loggedIn = true
	hook := s.onSignIn
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return models.Session{ID: "session"}, nil
}

func (s *stubFacade) SignOut(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signOuts++
	s.loggedIn = false
	return s.signOutErr
}

func (s *stubFacade) probeStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
