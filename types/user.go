package types

import "time"

// User represents an account in the system.
type User struct {
	// ID is the opaque unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. It is unique across accounts.
	Email string `json:"email" db:"email"`

	// ProfilePicture is the file identifier of the user's avatar in the
	// file bucket. Empty when the user has no picture.
	ProfilePicture string `json:"profilePicture,omitempty" db:"profile_picture"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
