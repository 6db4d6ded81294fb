// Package models defines server-side data models persisted in the database.
package models

import "time"

// Identity providers.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Identity is an authenticated principal. It is owned by the auth service;
// authorization data lives on the matching Profile.
type Identity struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Provider     string
	Disabled     bool
	CreatedAt    time.Time
}

// Profile carries the role of an identity. Exactly one per identity,
// keyed by the identity id.
type Profile struct {
	UID         string
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
}

type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
