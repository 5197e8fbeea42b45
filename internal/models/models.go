package models

import "time"

// Account represents a registered identity on the Aora backend.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is the server-issued proof that a client has authenticated as an account.
type Session struct {
	ID        string
	AccountID string
	Secret    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at the provided instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// UserProfile is the profile document created for an account at sign-up.
type UserProfile struct {
	ID        string
	AccountID string
	Username  string
	Email     string
	Avatar    string
	CreatedAt time.Time
}

// VideoPost is a published video with its thumbnail and generation prompt.
type VideoPost struct {
	ID        string
	Title     string
	Thumbnail string
	Video     string
	Prompt    string
	CreatorID string
	Creator   *UserProfile
	CreatedAt time.Time
}

// Document is a schemaless record stored in a collection.
type Document struct {
	ID           string
	DatabaseID   string
	CollectionID string
	Data         map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// String returns the string value stored under key, or "" when absent.
func (d Document) String(key string) string {
	if d.Data == nil {
		return ""
	}
	if v, ok := d.Data[key].(string); ok {
		return v
	}
	return ""
}

// File describes an object held in a storage bucket.
type File struct {
	ID        string
	BucketID  string
	AccountID string
	Name      string
	MimeType  string
	Size      int64
	CreatedAt time.Time
}

// Profile field names used in the user collection.
const (
	FieldAccountID = "accountId"
	FieldUsername  = "username"
	FieldEmail     = "email"
	FieldAvatar    = "avatar"
)

// Post field names used in the video collection.
const (
	FieldTitle     = "title"
	FieldThumbnail = "thumbnail"
	FieldVideo     = "video"
	FieldPrompt    = "prompt"
	FieldCreator   = "creator"
)

// FieldCreatedAt is the system attribute holding a document's creation time.
const FieldCreatedAt = "$createdAt"

// ProfileFromDocument maps a user collection document onto a UserProfile.
func ProfileFromDocument(doc Document) UserProfile {
	return UserProfile{
		ID:        doc.ID,
		AccountID: doc.String(FieldAccountID),
		Username:  doc.String(FieldUsername),
		Email:     doc.String(FieldEmail),
		Avatar:    doc.String(FieldAvatar),
		CreatedAt: doc.CreatedAt,
	}
}

// PostFromDocument maps a video collection document onto a VideoPost.
func PostFromDocument(doc Document) VideoPost {
	return VideoPost{
		ID:        doc.ID,
		Title:     doc.String(FieldTitle),
		Thumbnail: doc.String(FieldThumbnail),
		Video:     doc.String(FieldVideo),
		Prompt:    doc.String(FieldPrompt),
		CreatorID: doc.String(FieldCreator),
		CreatedAt: doc.CreatedAt,
	}
}
