package remote

import (
	"fmt"
	"net/url"
	"strings"
)

// URLBuilder renders the public URLs the backend serves for files and avatars.
type URLBuilder struct {
	Endpoint string
	Project  string
}

// FileView returns the URL streaming the original file contents.
func (b URLBuilder) FileView(bucketID, fileID string) string {
	return b.build(fmt.Sprintf("/storage/buckets/%s/files/%s/view", url.PathEscape(bucketID), url.PathEscape(fileID)), nil)
}

// FilePreview returns the URL of a transformed image preview.
func (b URLBuilder) FilePreview(bucketID, fileID string, opts PreviewOptions) string {
	return b.build(fmt.Sprintf("/storage/buckets/%s/files/%s/preview", url.PathEscape(bucketID), url.PathEscape(fileID)), opts.Values())
}

// Initials returns the URL of an avatar rendered from the initials of name.
func (b URLBuilder) Initials(name string) string {
	return b.build("/avatars/initials", url.Values{"name": []string{name}})
}

func (b URLBuilder) build(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if b.Project != "" {
		query.Set("project", b.Project)
	}
	u := strings.TrimSuffix(b.Endpoint, "/") + path
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}
