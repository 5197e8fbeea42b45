package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MuhammadAbdiel/aora-app/internal/backend"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
	"github.com/MuhammadAbdiel/aora-app/internal/remote/memory"
)

func newProvider(t *testing.T) (*memory.Service, *backend.Client, *Provider) {
	t.Helper()
	svc := memory.NewService(remote.URLBuilder{Endpoint: "https://aora.test/v1"})
	client := backend.NewClient(svc.NewClient().Remote(), backend.Config{
		DatabaseID:        "aora",
		UserCollectionID:  "users",
		VideoCollectionID: "videos",
		BucketID:          "files",
	})
	return svc, client, New(client, nil)
}

func requireConsistent(t *testing.T, s AuthState) {
	t.Helper()
	if s.IsLogged {
		require.NotNil(t, s.User, "isLogged without user: %+v", s)
	}
}

func TestProviderInitialState(t *testing.T) {
	_, _, p := newProvider(t)
	s := p.Snapshot()
	require.True(t, s.Loading)
	require.False(t, s.IsLogged)
	require.Nil(t, s.User)
	require.Equal(t, PhaseInitializing, s.Phase)
}

func TestProviderStartWithoutSession(t *testing.T) {
	_, _, p := newProvider(t)
	require.NoError(t, p.Start(context.Background()))

	s := p.Snapshot()
	require.False(t, s.Loading)
	require.False(t, s.IsLogged)
	require.Nil(t, s.User)
}

func TestProviderStartWithExistingSession(t *testing.T) {
	ctx := context.Background()
	_, client, p := newProvider(t)
	_, err := client.CreateAccountAndProfile(ctx, "alice", "alice@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, p.Start(ctx))
	s := p.Snapshot()
	require.False(t, s.Loading)
	require.True(t, s.IsLogged)
	require.Equal(t, "alice", s.User.Username)
}

func TestProviderStartAccountWithoutProfile(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService(remote.URLBuilder{})
	device := svc.NewClient()
	_, err := device.Create(ctx, remote.UniqueID, "bob@x.com", "secret1", "bob")
	require.NoError(t, err)
	_, err = device.CreateEmailPasswordSession(ctx, "bob@x.com", "secret1")
	require.NoError(t, err)

	p := New(backend.NewClient(device.Remote(), backend.Config{DatabaseID: "aora", UserCollectionID: "users"}), nil)
	require.NoError(t, p.Start(ctx))
	require.False(t, p.Snapshot().IsLogged)
	require.False(t, p.Snapshot().Loading)
}

func TestProviderStartProbeFailure(t *testing.T) {
	svc, _, p := newProvider(t)
	svc.Fault = func(op, _ string) error {
		if op == memory.OpGetAccount {
			return remote.ErrUnavailable
		}
		return nil
	}

	err := p.Start(context.Background())
	require.ErrorIs(t, err, remote.ErrUnavailable)
	s := p.Snapshot()
	require.False(t, s.Loading)
	require.False(t, s.IsLogged)
}

func TestProviderStartRunsOnce(t *testing.T) {
	ctx := context.Background()
	f := &stubFacade{probe: backend.ProbeResult{Outcome: backend.ProbeNoSession}}
	p := New(f, nil)

	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Start(ctx))
	require.Equal(t, 1, f.probes)
}

func TestProviderStartRetriesAfterCanceledProbe(t *testing.T) {
	f := &stubFacade{probe: backend.ProbeResult{Outcome: backend.ProbeNoSession}}
	p := New(f, nil)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Start(canceled), context.Canceled)
	require.True(t, p.Snapshot().Loading)

	require.NoError(t, p.Start(context.Background()))
	s := p.Snapshot()
	require.False(t, s.Loading)
	require.Equal(t, PhaseUnauthenticated, s.Phase)
	require.Equal(t, 2, f.probes)

	require.NoError(t, p.Start(context.Background()))
	require.Equal(t, 2, f.probes)
}

func TestProviderSignUpScenario(t *testing.T) {
	ctx := context.Background()
	_, _, p := newProvider(t)
	require.NoError(t, p.Start(ctx))

	profile, err := p.SignUp(ctx, "alice", "alice@x.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Username)

	s := p.Snapshot()
	require.True(t, s.IsLogged)
	require.Equal(t, "alice", s.User.Username)

	require.NoError(t, p.SignOut(ctx))

	_, err = p.SignUp(ctx, "alice", "alice@x.com", "secret1")
	require.Error(t, err)
	require.True(t, backend.IsKind(err, backend.KindConflict))
	require.False(t, p.Snapshot().IsLogged)
}

func TestProviderSignInSignOutSequence(t *testing.T) {
	ctx := context.Background()
	_, client, p := newProvider(t)
	_, err := client.CreateAccountAndProfile(ctx, "carol", "carol@x.com", "secret1")
	require.NoError(t, err)
	_, err = client.CreateAccountAndProfile(ctx, "dave", "dave@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, client.SignOut(ctx))
	require.NoError(t, p.Start(ctx))

	updates, stop := p.Subscribe()
	defer stop()

	_, err = p.SignIn(ctx, "carol@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))
	_, err = p.SignIn(ctx, "dave@x.com", "secret1")
	require.NoError(t, err)

	s := p.Snapshot()
	require.True(t, s.IsLogged)
	require.Equal(t, "dave", s.User.Username)

	stop()
	for state := range updates {
		requireConsistent(t, state)
	}
}

func TestProviderSignInFailure(t *testing.T) {
	ctx := context.Background()
	_, client, p := newProvider(t)
	_, err := client.CreateAccountAndProfile(ctx, "erin", "erin@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, client.SignOut(ctx))
	require.NoError(t, p.Start(ctx))

	_, err = p.SignIn(ctx, "erin@x.com", "nope")
	require.True(t, backend.IsKind(err, backend.KindAuth))
	s := p.Snapshot()
	require.False(t, s.IsLogged)
	require.Equal(t, PhaseUnauthenticated, s.Phase)

	_, err = p.SignIn(ctx, "", "")
	require.True(t, backend.IsKind(err, backend.KindValidation))
}

func TestProviderSignOutIdempotent(t *testing.T) {
	ctx := context.Background()
	f := &stubFacade{probe: backend.ProbeResult{Outcome: backend.ProbeNoSession}}
	p := New(f, nil)
	require.NoError(t, p.Start(ctx))

	before := p.Snapshot()
	require.NoError(t, p.SignOut(ctx))
	require.NoError(t, p.SignOut(ctx))
	require.Equal(t, before, p.Snapshot())
	require.Equal(t, 0, f.signOuts)
}

func TestProviderSignOutRemoteFailure(t *testing.T) {
	ctx := context.Background()
	profile := models.UserProfile{ID: "p1", Username: "frank"}
	f := &stubFacade{
		probe:      backend.ProbeResult{Outcome: backend.ProbeAuthenticated, Profile: &profile},
		signOutErr: errors.New("network down"),
	}
	p := New(f, nil)
	require.NoError(t, p.Start(ctx))
	require.True(t, p.Snapshot().IsLogged)

	err := p.SignOut(ctx)
	require.Error(t, err)
	s := p.Snapshot()
	require.False(t, s.IsLogged)
	require.Nil(t, s.User)
}

func TestProviderDiscardsStaleProbe(t *testing.T) {
	ctx := context.Background()
	stale := models.UserProfile{ID: "old", Username: "stale"}
	fresh := models.UserProfile{ID: "new", Username: "fresh"}

	release := make(chan struct{})
	f := &stubFacade{
		probe:      backend.ProbeResult{Outcome: backend.ProbeAuthenticated, Profile: &stale},
		probeGate:  release,
		afterLogin: backend.ProbeResult{Outcome: backend.ProbeAuthenticated, Profile: &fresh},
	}
	p := New(f, nil)

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	require.Eventually(t, func() bool { return f.probeStarted() }, time.Second, time.Millisecond)

	_, err := p.SignIn(ctx, "fresh@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))

	close(release)
	require.NoError(t, <-done)

	s := p.Snapshot()
	require.False(t, s.IsLogged, "stale probe must not resurrect a signed-out user")
	require.False(t, s.Loading)
}

func TestProviderSignInProfileFailureEndsRemoteSession(t *testing.T) {
	ctx := context.Background()
	svc, client, p := newProvider(t)
	_, err := client.CreateAccountAndProfile(ctx, "hank", "hank@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, client.SignOut(ctx))
	require.NoError(t, p.Start(ctx))

	svc.Fault = func(op, _ string) error {
		if op == memory.OpListDocuments {
			return remote.ErrUnavailable
		}
		return nil
	}
	_, err = p.SignIn(ctx, "hank@x.com", "secret1")
	require.ErrorIs(t, err, remote.ErrUnavailable)
	require.False(t, p.Snapshot().IsLogged)
	require.Equal(t, 0, svc.SessionCount())

	svc.Fault = nil
	restarted := New(client, nil)
	require.NoError(t, restarted.Start(ctx))
	require.False(t, restarted.Snapshot().IsLogged)
}

func TestProviderSignInWithoutProfileEndsRemoteSession(t *testing.T) {
	f := &stubFacade{
		probe:      backend.ProbeResult{Outcome: backend.ProbeNoSession},
		afterLogin: backend.ProbeResult{Outcome: backend.ProbeNoProfile},
	}
	p := New(f, nil)
	require.NoError(t, p.Start(context.Background()))

	_, err := p.SignIn(context.Background(), "ivy@x.com", "secret1")
	require.ErrorIs(t, err, ErrProfileMissing)
	require.Equal(t, 1, f.signOuts)
	require.False(t, p.Snapshot().IsLogged)
}

func TestProviderCanceledSignInIsDiscarded(t *testing.T) {
	profile := models.UserProfile{ID: "p1", Username: "gina"}
	f := &stubFacade{
		probe:      backend.ProbeResult{Outcome: backend.ProbeNoSession},
		afterLogin: backend.ProbeResult{Outcome: backend.ProbeAuthenticated, Profile: &profile},
	}
	p := New(f, nil)
	require.NoError(t, p.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	f.onSignIn = cancel

	_, err := p.SignIn(ctx, "gina@x.com", "secret1")
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, p.Snapshot().IsLogged)
}

func TestProviderInvalidate(t *testing.T) {
	profile := models.UserProfile{ID: "p1", Username: "hank"}
	f := &stubFacade{probe: backend.ProbeResult{Outcome: backend.ProbeAuthenticated, Profile: &profile}}
	p := New(f, nil)
	require.NoError(t, p.Start(context.Background()))
	require.True(t, p.Snapshot().IsLogged)

	p.Invalidate("session expired")
	require.False(t, p.Snapshot().IsLogged)
}

func TestSubscribeReceivesLatestState(t *testing.T) {
	f := &stubFacade{probe: backend.ProbeResult{Outcome: backend.ProbeNoSession}}
	p := New(f, nil)

	updates, stop := p.Subscribe()
	defer stop()

	first := <-updates
	require.True(t, first.Loading)

	require.NoError(t, p.Start(context.Background()))
	next := <-updates
	require.False(t, next.Loading)
	require.Equal(t, PhaseUnauthenticated, next.Phase)
}
