package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/MuhammadAbdiel/aora-app/internal/backend"
	"github.com/MuhammadAbdiel/aora-app/internal/config"
	"github.com/MuhammadAbdiel/aora-app/internal/guard"
	"github.com/MuhammadAbdiel/aora-app/internal/logging"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
	"github.com/MuhammadAbdiel/aora-app/internal/remote/rest"
	"github.com/MuhammadAbdiel/aora-app/internal/session"
)

// ErrSignedOut is returned by commands that need a signed-in user.
var ErrSignedOut = errors.New("not signed in; run `aora signin <email> <password>` first")

// clientApp is one client invocation: a provider seeded from the stored session and a
// guard deciding which commands are reachable.
type clientApp struct {
	backend  *backend.Client
	provider *session.Provider
	guard    *guard.Guard
	logger   *slog.Logger
	out      io.Writer
}

type logNavigator struct {
	logger *slog.Logger
}

func (n logNavigator) Replace(path string) {
	n.logger.Debug("navigate", "path", path)
}

func runClient(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if err := cfg.Client.Validate(); err != nil {
		return err
	}

	sessionFile := cfg.Client.SessionFile
	if sessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config directory: %w", err)
		}
		sessionFile = filepath.Join(dir, "aora", "session.json")
	}

	rc, err := rest.New(rest.Config{
		Endpoint:  cfg.Client.Endpoint,
		ProjectID: cfg.Client.ProjectID,
		Platform:  cfg.Client.Platform,
		Timeout:   cfg.Client.RequestTimeout,
		Sessions:  &rest.FileSessionStore{Path: sessionFile},
	})
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Server.LogLevel)
	ctx = logging.WithLogger(ctx, logger)

	c := newClientApp(rc.Remote(), backendConfig(cfg.Client), logger, out)
	return c.dispatch(ctx, args)
}

func backendConfig(cfg config.ClientConfig) backend.Config {
	return backend.Config{
		DatabaseID:        cfg.DatabaseID,
		UserCollectionID:  cfg.UserCollectionID,
		VideoCollectionID: cfg.VideoCollectionID,
		BucketID:          cfg.StorageID,
	}
}

func newClientApp(rc remote.Client, cfg backend.Config, logger *slog.Logger, out io.Writer) *clientApp {
	bc := backend.NewClient(rc, cfg)
	provider := session.New(bc, logger)
	return &clientApp{
		backend:  bc,
		provider: provider,
		guard:    guard.New(provider, logNavigator{logger: logger}, guard.Onboarding, logger),
		logger:   logger,
		out:      out,
	}
}

func (c *clientApp) dispatch(ctx context.Context, args []string) error {
	if err := c.provider.Start(ctx); err != nil {
		c.logger.Warn("session probe failed", "error", err)
	}

	command, params := args[0], args[1:]
	switch command {
	case "signup":
		return c.signUp(ctx, params)
	case "signin":
		return c.signIn(ctx, params)
	case "signout":
		return c.signOut(ctx)
	case "whoami":
		return c.whoami()
	case "posts":
		return c.posts(ctx, params)
	case "search":
		return c.search(ctx, params)
	case "mine":
		return c.mine(ctx)
	case "upload":
		return c.upload(ctx, params)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// enter navigates to screen and reports whether the command may run there.
func (c *clientApp) enter(screen guard.Screen) error {
	decision := c.guard.Navigate(screen)
	if decision.Action != guard.ActionRedirect {
		return nil
	}
	if decision.Target == guard.SignIn {
		return ErrSignedOut
	}
	user := c.provider.Snapshot().User
	return fmt.Errorf("already signed in as %s; run `aora signout` first", user.Username)
}

func (c *clientApp) signUp(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: aora signup <username> <email> <password>")
	}
	if err := c.enter(guard.SignUp); err != nil {
		return err
	}
	profile, err := c.provider.SignUp(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	c.guard.Navigate(guard.Home)
	fmt.Fprintf(c.out, "welcome, %s\n", profile.Username)
	return nil
}

func (c *clientApp) signIn(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: aora signin <email> <password>")
	}
	if err := c.enter(guard.SignIn); err != nil {
		return err
	}
	profile, err := c.provider.SignIn(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	c.guard.Navigate(guard.Home)
	fmt.Fprintf(c.out, "signed in as %s\n", profile.Username)
	return nil
}

// signOut always leaves the client signed out locally; a remote failure is still
// reported.
func (c *clientApp) signOut(ctx context.Context) error {
	err := c.provider.SignOut(ctx)
	fmt.Fprintln(c.out, "signed out")
	return err
}

func (c *clientApp) whoami() error {
	if err := c.enter(guard.Profile); err != nil {
		return err
	}
	user := c.provider.Snapshot().User
	fmt.Fprintf(c.out, "%s <%s>\nprofile: %s\naccount: %s\navatar:  %s\n", user.Username, user.Email, user.ID, user.AccountID, user.Avatar)
	return nil
}

func (c *clientApp) posts(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("posts", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	latest := flags.Bool("latest", false, "show only the most recent posts")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := c.enter(guard.Home); err != nil {
		return err
	}

	var (
		posts []models.VideoPost
		err   error
	)
	if *latest {
		posts, err = c.backend.LatestPosts(ctx)
	} else {
		posts, err = c.backend.ListPosts(ctx, backend.ListOptions{})
	}
	if err != nil {
		return c.checkAuth(err)
	}
	return c.printPosts(posts)
}

func (c *clientApp) search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: aora search <text>")
	}
	if err := c.enter(guard.Search); err != nil {
		return err
	}
	posts, err := c.backend.SearchPosts(ctx, strings.Join(args, " "))
	if err != nil {
		return c.checkAuth(err)
	}
	return c.printPosts(posts)
}

func (c *clientApp) mine(ctx context.Context) error {
	if err := c.enter(guard.Profile); err != nil {
		return err
	}
	posts, err := c.backend.ListPostsByCreator(ctx, c.provider.Snapshot().User.ID)
	if err != nil {
		return c.checkAuth(err)
	}
	return c.printPosts(posts)
}

func (c *clientApp) upload(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("upload", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	title := flags.String("title", "", "post title")
	prompt := flags.String("prompt", "", "AI prompt used for the video")
	videoPath := flags.String("video", "", "path of the video file")
	thumbPath := flags.String("thumbnail", "", "path of the thumbnail image")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := c.enter(guard.Create); err != nil {
		return err
	}
	if *videoPath == "" || *thumbPath == "" {
		return errors.New("usage: aora upload --title <title> --prompt <prompt> --video <file> --thumbnail <file>")
	}

	video, closeVideo, err := openAsset(*videoPath)
	if err != nil {
		return err
	}
	defer closeVideo()
	thumb, closeThumb, err := openAsset(*thumbPath)
	if err != nil {
		return err
	}
	defer closeThumb()

	post, err := c.backend.UploadPost(ctx, backend.UploadInput{
		Title:     *title,
		Prompt:    *prompt,
		Video:     video,
		Thumbnail: thumb,
		CreatorID: c.provider.Snapshot().User.ID,
	})
	if err != nil {
		return c.checkAuth(err)
	}
	fmt.Fprintf(c.out, "uploaded %s\nvideo: %s\n", post.ID, post.Video)
	return nil
}

// checkAuth drops the local session when the service rejected it.
func (c *clientApp) checkAuth(err error) error {
	if backend.IsKind(err, backend.KindAuth) {
		c.provider.Invalidate("request rejected as unauthorized")
		return fmt.Errorf("%w: %v", ErrSignedOut, err)
	}
	return err
}

func (c *clientApp) printPosts(posts []models.VideoPost) error {
	if len(posts) == 0 {
		fmt.Fprintln(c.out, "no posts found")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCREATOR\tCREATED")
	for _, p := range posts {
		creator := "-"
		if p.Creator != nil {
			creator = p.Creator.Username
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Title, creator, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func openAsset(path string) (remote.Asset, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return remote.Asset{}, nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return remote.Asset{}, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	asset := remote.Asset{
		Name:     filepath.Base(path),
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Size:     info.Size(),
		Body:     f,
	}
	return asset, func() { _ = f.Close() }, nil
}
