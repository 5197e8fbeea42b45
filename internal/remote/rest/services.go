package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/MuhammadAbdiel/aora-app/internal/api"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

type accounts struct{ c *Client }

func (a accounts) Create(ctx context.Context, accountID, email, password, name string) (models.Account, error) {
	req, err := jsonRequest(http.MethodPost, "/account", api.CreateAccountRequest{
		UserID:   accountID,
		Email:    email,
		Password: password,
		Name:     name,
	})
	if err != nil {
		return models.Account{}, err
	}
	var out api.Account
	if err := a.c.do(ctx, req, &out); err != nil {
		return models.Account{}, err
	}
	return out.Model(), nil
}

func (a accounts) Get(ctx context.Context) (models.Account, error) {
	var out api.Account
	if err := a.c.do(ctx, request{method: http.MethodGet, path: "/account"}, &out); err != nil {
		return models.Account{}, err
	}
	return out.Model(), nil
}

// CreateEmailPasswordSession signs in and stores the new secret. The backend revokes
// the session the previous secret belonged to.
func (a accounts) CreateEmailPasswordSession(ctx context.Context, email, password string) (models.Session, error) {
	req, err := jsonRequest(http.MethodPost, "/account/sessions/email", api.CreateSessionRequest{Email: email, Password: password})
	if err != nil {
		return models.Session{}, err
	}
	var out api.Session
	if err := a.c.do(ctx, req, &out); err != nil {
		return models.Session{}, err
	}
	if err := a.c.sessions.Save(out.Secret); err != nil {
		return models.Session{}, fmt.Errorf("store session: %w", err)
	}
	return out.Model(), nil
}

// DeleteSession deletes a session. Deleting the current session forgets the stored
// secret, including when the backend no longer knows it.
func (a accounts) DeleteSession(ctx context.Context, sessionID string) error {
	err := a.c.do(ctx, request{method: http.MethodDelete, path: "/account/sessions/" + url.PathEscape(sessionID)}, nil)
	if sessionID == remote.CurrentSession && (err == nil || isSessionGone(err)) {
		a.c.clearSession(ctx)
	}
	return err
}

type databases struct{ c *Client }

func (d databases) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]any) (models.Document, error) {
	req, err := jsonRequest(http.MethodPost, documentsPath(databaseID, collectionID), api.CreateDocumentRequest{
		DocumentID: documentID,
		Data:       data,
	})
	if err != nil {
		return models.Document{}, err
	}
	var out api.Document
	if err := d.c.do(ctx, req, &out); err != nil {
		return models.Document{}, err
	}
	doc, err := out.Model()
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return doc, nil
}

func (d databases) ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...remote.Query) (remote.DocumentList, error) {
	query := url.Values{}
	for _, q := range queries {
		encoded, err := json.Marshal(q)
		if err != nil {
			return remote.DocumentList{}, fmt.Errorf("encode query: %w", err)
		}
		query.Add(api.QueriesParam, string(encoded))
	}

	var out api.DocumentList
	if err := d.c.do(ctx, request{method: http.MethodGet, path: documentsPath(databaseID, collectionID), query: query}, &out); err != nil {
		return remote.DocumentList{}, err
	}

	list := remote.DocumentList{Total: out.Total, Documents: make([]models.Document, 0, len(out.Documents))}
	for _, raw := range out.Documents {
		doc, err := raw.Model()
		if err != nil {
			return remote.DocumentList{}, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
		}
		list.Documents = append(list.Documents, doc)
	}
	return list, nil
}

func documentsPath(databaseID, collectionID string) string {
	return "/databases/" + url.PathEscape(databaseID) + "/collections/" + url.PathEscape(collectionID) + "/documents"
}

type storage struct{ c *Client }

// CreateFile streams asset to the backend as a multipart form.
func (s storage) CreateFile(ctx context.Context, bucketID, fileID string, asset remote.Asset) (models.File, error) {
	if asset.Body == nil {
		return models.File{}, fmt.Errorf("%w: asset %q has no contents", remote.ErrInvalidArgument, asset.Name)
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(form, fileID, asset))
	}()
	defer pr.Close()

	req := request{
		method:      http.MethodPost,
		path:        "/storage/buckets/" + url.PathEscape(bucketID) + "/files",
		body:        pr,
		contentType: form.FormDataContentType(),
	}
	var out api.File
	if err := s.c.do(ctx, req, &out); err != nil {
		return models.File{}, err
	}
	return out.Model(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeUploadForm(form *multipart.Writer, fileID string, asset remote.Asset) error {
	if err := form.WriteField("fileId", fileID); err != nil {
		return err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(asset.Name)))
	contentType := asset.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, asset.Body); err != nil {
		return fmt.Errorf("read asset %q: %w", asset.Name, err)
	}
	return form.Close()
}

func (s storage) DeleteFile(ctx context.Context, bucketID, fileID string) error {
	path := "/storage/buckets/" + url.PathEscape(bucketID) + "/files/" + url.PathEscape(fileID)
	return s.c.do(ctx, request{method: http.MethodDelete, path: path}, nil)
}

func (s storage) FileViewURL(bucketID, fileID string) string {
	return s.c.urls.FileView(bucketID, fileID)
}

func (s storage) FilePreviewURL(bucketID, fileID string, opts remote.PreviewOptions) string {
	return s.c.urls.FilePreview(bucketID, fileID, opts)
}

type avatars struct{ c *Client }

func (a avatars) InitialsURL(name string) string {
	return a.c.urls.Initials(name)
}
