// Package backend is the typed facade the Aora client uses to talk to the hosted
// identity, document and file service.
package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/MuhammadAbdiel/aora-app/internal/logging"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

// Config names the database, collections and bucket the facade operates on.
type Config struct {
	DatabaseID        string
	UserCollectionID  string
	VideoCollectionID string
	BucketID          string
}

// Client exposes account, profile and post operations over a remote service.
type Client struct {
	remote remote.Client
	cfg    Config
}

// NewClient constructs a facade over the provided remote services.
func NewClient(rc remote.Client, cfg Config) *Client {
	if rc.Accounts == nil || rc.Databases == nil || rc.Storage == nil || rc.Avatars == nil {
		panic("backend: remote client must provide accounts, databases, storage and avatars")
	}
	return &Client{remote: rc, cfg: cfg}
}

// CreateAccountAndProfile registers an account, signs it in and writes its profile
// document. If a later step fails the account is left in place; the returned error
// is marked Partial.
func (c *Client) CreateAccountAndProfile(ctx context.Context, username, email, password string) (models.UserProfile, error) {
	const op = "backend.CreateAccountAndProfile"
	ctx, span := logging.StartSpan(ctx, op)
	defer span.End()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		err := validationError(op, "Please fill in all fields")
		span.Fail(err)
		return models.UserProfile{}, err
	}

	account, err := c.remote.Accounts.Create(ctx, remote.UniqueID, email, password, username)
	if err != nil {
		e := normalize(op, err)
		span.Fail(e)
		return models.UserProfile{}, e
	}
	span.Logger().Info("account created", "accountId", account.ID)

	avatar := c.remote.Avatars.InitialsURL(username)

	if _, err := c.remote.Accounts.CreateEmailPasswordSession(ctx, email, password); err != nil {
		e := partial(normalize(op, err), "Your account was created but signing in failed")
		span.Fail(e)
		return models.UserProfile{}, e
	}

	doc, err := c.remote.Databases.CreateDocument(ctx, c.cfg.DatabaseID, c.cfg.UserCollectionID, remote.UniqueID, map[string]any{
		models.FieldAccountID: account.ID,
		models.FieldUsername:  username,
		models.FieldEmail:     account.Email,
		models.FieldAvatar:    avatar,
	})
	if err != nil {
		e := partial(normalize(op, err), "Your account was created but the profile could not be saved")
		span.Fail(e)
		return models.UserProfile{}, e
	}

	return models.ProfileFromDocument(doc), nil
}

// SignIn creates an email/password session for the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (models.Session, error) {
	const op = "backend.SignIn"
	ctx, span := logging.StartSpan(ctx, op)
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		err := validationError(op, "Please fill in all fields")
		span.Fail(err)
		return models.Session{}, err
	}

	session, err := c.remote.Accounts.CreateEmailPasswordSession(ctx, email, password)
	if err != nil {
		e := normalize(op, err)
		span.Fail(e)
		return models.Session{}, e
	}
	return session, nil
}

// SignOut deletes the client's current session. It fails when no session is active.
func (c *Client) SignOut(ctx context.Context) error {
	const op = "backend.SignOut"
	ctx, span := logging.StartSpan(ctx, op)
	defer span.End()

	if err := c.remote.Accounts.DeleteSession(ctx, remote.CurrentSession); err != nil {
		e := normalize(op, err)
		span.Fail(e)
		return e
	}
	return nil
}

// ProbeOutcome classifies the result of a current-profile probe.
type ProbeOutcome int

const (
	// ProbeAuthenticated means a session and its profile were found.
	ProbeAuthenticated ProbeOutcome = iota + 1
	// ProbeNoSession means the service reports no authenticated account.
	ProbeNoSession
	// ProbeNoProfile means the account exists but has no profile document.
	ProbeNoProfile
	// ProbeFailed means the service could not answer.
	ProbeFailed
)

func (o ProbeOutcome) String() string {
	switch o {
	case ProbeAuthenticated:
		return "authenticated"
	case ProbeNoSession:
		return "no_session"
	case ProbeNoProfile:
		return "no_profile"
	case ProbeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProbeResult is the detailed outcome of ProbeCurrentProfile. Profile is non-nil only
// for ProbeAuthenticated; Err is set only for ProbeFailed.
type ProbeResult struct {
	Outcome ProbeOutcome
	Profile *models.UserProfile
	Err     error
}

// ProbeCurrentProfile resolves the profile of the client's current session, keeping
// "not signed in" distinct from service failures.
func (c *Client) ProbeCurrentProfile(ctx context.Context) ProbeResult {
	const op = "backend.ProbeCurrentProfile"
	ctx, span := logging.StartSpan(ctx, op)
	defer span.End()

	account, err := c.remote.Accounts.Get(ctx)
	if err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			return ProbeResult{Outcome: ProbeNoSession}
		}
		e := normalize(op, err)
		span.Fail(e)
		return ProbeResult{Outcome: ProbeFailed, Err: e}
	}

	list, err := c.remote.Databases.ListDocuments(ctx, c.cfg.DatabaseID, c.cfg.UserCollectionID,
		remote.Equal(models.FieldAccountID, account.ID),
		remote.Limit(1),
	)
	if err != nil {
		e := normalize(op, err)
		span.Fail(e)
		return ProbeResult{Outcome: ProbeFailed, Err: e}
	}
	if len(list.Documents) == 0 {
		span.Logger().Warn("account has no profile document", "accountId", account.ID)
		return ProbeResult{Outcome: ProbeNoProfile}
	}

	profile := models.ProfileFromDocument(list.Documents[0])
	return ProbeResult{Outcome: ProbeAuthenticated, Profile: &profile}
}

// FetchCurrentProfile returns the current user's profile, or nil when nobody is
// signed in. Service failures are logged and also reported as nil; use
// ProbeCurrentProfile to tell them apart.
func (c *Client) FetchCurrentProfile(ctx context.Context) (*models.UserProfile, error) {
	result := c.ProbeCurrentProfile(ctx)
	if result.Outcome == ProbeFailed {
		logging.FromContext(ctx).Error("current profile probe failed", "error", result.Err)
	}
	return result.Profile, nil
}

func partial(e *Error, prefix string) *Error {
	e.Partial = true
	e.Message = prefix + ": " + e.Message
	return e
}
