package shortener

import (
	"errors"
	"time"
)

var (
	// ErrInvalidURL is returned when a long URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")

	// ErrNotFound is returned when no short link exists for a code.
	ErrNotFound = errors.New("short link not found")

	// ErrCodeTaken is returned when a code already belongs to another owner or another URL.
	ErrCodeTaken = errors.New("short code already taken")

	// ErrNotOwner is returned when deleting a link owned by someone else.
	ErrNotOwner = errors.New("short link belongs to another user")

	// ErrUserNotFound is returned when no user record exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionNotFound is returned when no session record exists.
	ErrSessionNotFound = errors.New("session not found")
)

// ShortLink is the primary link record, stored under ("shortLink", ShortCode).
type ShortLink struct {
	ShortCode   string     `json:"shortCode"             cbor:"shortCode"`
	LongURL     string     `json:"longUrl"               cbor:"longUrl"`
	OwnerID     string     `json:"userId"                cbor:"userId"`
	CreatedAt   time.Time  `json:"createdAt"             cbor:"createdAt"`
	ClickCount  int64      `json:"clickCount"            cbor:"clickCount"`
	LastClickAt *time.Time `json:"lastClickAt,omitempty" cbor:"lastClickAt,omitempty"`
}

// IndexEntry marks ShortCode as owned by a user. It is stored under ("users", ownerID, ShortCode).
type IndexEntry struct {
	ShortCode string    `json:"shortCode" cbor:"shortCode"`
	CreatedAt time.Time `json:"createdAt" cbor:"createdAt"`
}

// Profile is the identity-provider snapshot taken at sign-in.
type Profile struct {
	Provider  string `json:"provider"            cbor:"provider"`
	Subject   string `json:"subject"             cbor:"subject"`
	Login     string `json:"login"               cbor:"login"`
	Name      string `json:"name,omitempty"      cbor:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty" cbor:"avatarUrl,omitempty"`
	HTMLURL   string `json:"htmlUrl,omitempty"   cbor:"htmlUrl,omitempty"`
}

// UserID is the stable user identifier derived from the profile.
func (p Profile) UserID() string {
	return p.Provider + ":" + p.Subject
}

// User is stored under ("users", ID).
type User struct {
	ID          string    `json:"userId"      cbor:"userId"`
	Provider    string    `json:"provider"    cbor:"provider"`
	Profile     Profile   `json:"profile"     cbor:"profile"`
	CreatedAt   time.Time `json:"createdAt"   cbor:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt" cbor:"lastLoginAt"`
}

// Session maps an opaque session id to a user. It is stored under ("sessions", ID).
type Session struct {
	ID        string    `json:"sessionId" cbor:"sessionId"`
	UserID    string    `json:"userId"    cbor:"userId"`
	CreatedAt time.Time `json:"createdAt" cbor:"createdAt"`
}
