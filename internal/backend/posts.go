package backend

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MuhammadAbdiel/aora-app/internal/logging"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

// LatestLimit is the number of posts shown in the "latest" view.
const LatestLimit = 7

// Thumbnail previews are rendered with these settings.
var thumbnailPreview = remote.PreviewOptions{Width: 2000, Height: 2000, Gravity: "top", Quality: 100}

// cleanupTimeout bounds compensating deletes issued after a failed upload.
const cleanupTimeout = 10 * time.Second

// Order selects how post listings are sorted.
type Order int

const (
	// OrderNewestFirst sorts by creation time, most recent first.
	OrderNewestFirst Order = iota
	// OrderStored keeps the order in which the service returns documents.
	OrderStored
)

// ListOptions controls ListPosts. A zero Limit uses the service default page size.
type ListOptions struct {
	Order Order
	Limit int
}

// ListPosts returns posts in the requested order, capped at opts.Limit.
func (c *Client) ListPosts(ctx context.Context, opts ListOptions) ([]models.VideoPost, error) {
	const op = "backend.ListPosts"
	if opts.Limit < 0 {
		return nil, validationError(op, "limit must not be negative")
	}

	var queries []remote.Query
	if opts.Order == OrderNewestFirst {
		queries = append(queries, remote.OrderDesc(models.FieldCreatedAt))
	}
	if opts.Limit > 0 {
		queries = append(queries, remote.Limit(opts.Limit))
	}
	return c.listPosts(ctx, op, opts, queries)
}

// LatestPosts returns the LatestLimit most recent posts.
func (c *Client) LatestPosts(ctx context.Context) ([]models.VideoPost, error) {
	return c.ListPosts(ctx, ListOptions{Order: OrderNewestFirst, Limit: LatestLimit})
}

// ListPostsByCreator returns the posts created by the given profile, newest first.
func (c *Client) ListPostsByCreator(ctx context.Context, creatorID string) ([]models.VideoPost, error) {
	const op = "backend.ListPostsByCreator"
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, validationError(op, "creator id is required")
	}
	return c.listPosts(ctx, op, ListOptions{}, []remote.Query{
		remote.Equal(models.FieldCreator, creatorID),
		remote.OrderDesc(models.FieldCreatedAt),
	})
}

// SearchPosts returns posts whose title contains text, newest first.
func (c *Client) SearchPosts(ctx context.Context, text string) ([]models.VideoPost, error) {
	const op = "backend.SearchPosts"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError(op, "search text is required")
	}
	return c.listPosts(ctx, op, ListOptions{}, []remote.Query{
		remote.Search(models.FieldTitle, text),
		remote.OrderDesc(models.FieldCreatedAt),
	})
}

func (c *Client) listPosts(ctx context.Context, op string, opts ListOptions, queries []remote.Query) ([]models.VideoPost, error) {
	ctx, span := logging.StartSpan(ctx, op)
	defer span.End()

	list, err := c.remote.Databases.ListDocuments(ctx, c.cfg.DatabaseID, c.cfg.VideoCollectionID, queries...)
	if err != nil {
		e := normalize(op, err)
		span.Fail(e)
		return nil, e
	}

	posts := make([]models.VideoPost, 0, len(list.Documents))
	for _, doc := range list.Documents {
		posts = append(posts, models.PostFromDocument(doc))
	}

	if opts.Order == OrderNewestFirst {
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		})
	}
	if opts.Limit > 0 && len(posts) > opts.Limit {
		posts = posts[:opts.Limit]
	}

	c.attachCreators(ctx, posts)
	return posts, nil
}

// attachCreators resolves the creator profile of each post. Failures leave Creator nil.
func (c *Client) attachCreators(ctx context.Context, posts []models.VideoPost) {
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range posts {
		if p.CreatorID == "" {
			continue
		}
		if _, ok := seen[p.CreatorID]; ok {
			continue
		}
		seen[p.CreatorID] = struct{}{}
		ids = append(ids, p.CreatorID)
	}
	if len(ids) == 0 {
		return
	}

	list, err := c.remote.Databases.ListDocuments(ctx, c.cfg.DatabaseID, c.cfg.UserCollectionID,
		remote.Equal("$id", ids...),
		remote.Limit(min(len(ids), remote.MaxListLimit)),
	)
	if err != nil {
		logging.FromContext(ctx).Warn("resolve post creators", "error", err)
		return
	}

	profiles := make(map[string]models.UserProfile, len(list.Documents))
	for _, doc := range list.Documents {
		profiles[doc.ID] = models.ProfileFromDocument(doc)
	}
	for i := range posts {
		if profile, ok := profiles[posts[i].CreatorID]; ok {
			posts[i].Creator = &profile
		}
	}
}

// UploadInput carries the fields of a new post.
type UploadInput struct {
	Title     string
	Prompt    string
	Video     remote.Asset
	Thumbnail remote.Asset
	CreatorID string
}

// UploadPost uploads the video and thumbnail concurrently and then records the post.
// When any step fails the files already uploaded are deleted and no post is created.
func (c *Client) UploadPost(ctx context.Context, in UploadInput) (models.VideoPost, error) {
	const op = "backend.UploadPost"
	ctx, span := logging.StartSpan(ctx, op)
	defer span.End()

	in.Title = strings.TrimSpace(in.Title)
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Title == "" || in.Prompt == "" || in.CreatorID == "" || in.Video.Body == nil || in.Thumbnail.Body == nil {
		err := validationError(op, "Please provide all fields")
		span.Fail(err)
		return models.VideoPost{}, err
	}

	var (
		g                errgroup.Group
		video, thumb     models.File
		videoOK, thumbOK bool
	)
	// The uploads are not tied to a shared cancelable context, so a failure of one
	// does not interrupt the other; both results are needed for cleanup.
	g.Go(func() error {
		f, err := c.remote.Storage.CreateFile(ctx, c.cfg.BucketID, remote.UniqueID, in.Video)
		if err != nil {
			return err
		}
		video, videoOK = f, true
		return nil
	})
	g.Go(func() error {
		f, err := c.remote.Storage.CreateFile(ctx, c.cfg.BucketID, remote.UniqueID, in.Thumbnail)
		if err != nil {
			return err
		}
		thumb, thumbOK = f, true
		return nil
	})

	if err := g.Wait(); err != nil {
		var uploaded []string
		if videoOK {
			uploaded = append(uploaded, video.ID)
		}
		if thumbOK {
			uploaded = append(uploaded, thumb.ID)
		}
		e := normalize(op, err)
		e.Message = "Upload failed: " + e.Message
		if cerr := c.deleteFiles(ctx, uploaded); cerr != nil {
			e.Partial = true
		}
		span.Fail(e)
		return models.VideoPost{}, e
	}

	videoURL := c.remote.Storage.FileViewURL(c.cfg.BucketID, video.ID)
	thumbURL := c.remote.Storage.FilePreviewURL(c.cfg.BucketID, thumb.ID, thumbnailPreview)

	doc, err := c.remote.Databases.CreateDocument(ctx, c.cfg.DatabaseID, c.cfg.VideoCollectionID, remote.UniqueID, map[string]any{
		models.FieldTitle:     in.Title,
		models.FieldThumbnail: thumbURL,
		models.FieldVideo:     videoURL,
		models.FieldPrompt:    in.Prompt,
		models.FieldCreator:   in.CreatorID,
	})
	if err != nil {
		e := normalize(op, err)
		e.Message = "The files were uploaded but the post could not be saved: " + e.Message
		if cerr := c.deleteFiles(ctx, []string{video.ID, thumb.ID}); cerr != nil {
			e.Partial = true
		}
		span.Fail(e)
		return models.VideoPost{}, e
	}

	return models.PostFromDocument(doc), nil
}

// deleteFiles removes orphaned uploads. It runs even if ctx was canceled.
func (c *Client) deleteFiles(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	logger := logging.FromContext(ctx)
	var errs []error
	for _, id := range fileIDs {
		if err := c.remote.Storage.DeleteFile(cleanupCtx, c.cfg.BucketID, id); err != nil && !errors.Is(err, remote.ErrNotFound) {
			logger.Error("delete orphaned upload", "fileId", id, "error", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("deleted orphaned upload", "fileId", id)
	}
	return errors.Join(errs...)
}
